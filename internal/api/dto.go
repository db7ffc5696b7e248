package api

import (
	"github.com/shopspring/decimal"

	"frizo/margin_engine/internal/asset"
	"frizo/margin_engine/internal/margin"
)

// validateRequest body of POST /margin/validate.
// order_size and margin_client accept a JSON number or a string and are
// parsed from their literal text, never through float64.
type validateRequest struct {
	Asset        string          `json:"asset" binding:"required"`
	OrderSize    decimal.Decimal `json:"order_size"`
	Side         string          `json:"side" binding:"omitempty,oneof=long short LONG SHORT"`
	Leverage     int             `json:"leverage"`
	MarginClient decimal.Decimal `json:"margin_client"`
}

func (r validateRequest) toRequest() (margin.Request, error) {
	side, err := margin.ParseSide(r.Side)
	if err != nil {
		return margin.Request{}, err
	}
	return margin.Request{
		Asset:        r.Asset,
		OrderSize:    r.OrderSize,
		Side:         side,
		Leverage:     r.Leverage,
		MarginClient: r.MarginClient,
	}, nil
}

// cents renders as a bare JSON number with exactly two decimals (6.20)
type cents decimal.Decimal

func (c cents) MarshalJSON() ([]byte, error) {
	return []byte(margin.FormatCents(decimal.Decimal(c))), nil
}

// number renders as a bare JSON number with the exact decimal digits
type number decimal.Decimal

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

type decisionResponse struct {
	Status         margin.Status `json:"status"`
	Message        string        `json:"message,omitempty"`
	MarginRequired cents         `json:"margin_required"`
}

func newDecisionResponse(d margin.Decision) decisionResponse {
	return decisionResponse{
		Status:         d.Status,
		Message:        d.Message,
		MarginRequired: cents(d.MarginRequired),
	}
}

// rejectionResponse mirrors the bad-request body the front-end reads ("detail")
type rejectionResponse struct {
	Detail string `json:"detail"`
}

type assetResponse struct {
	Symbol          string `json:"symbol"`
	MarkPrice       number `json:"mark_price"`
	ContractValue   number `json:"contract_value"`
	AllowedLeverage []int  `json:"allowed_leverage"`
}

type assetsResponse struct {
	Assets []assetResponse `json:"assets"`
}

func newAssetResponse(cfg asset.Config) assetResponse {
	return assetResponse{
		Symbol:          cfg.Symbol,
		MarkPrice:       number(cfg.MarkPrice),
		ContractValue:   number(cfg.ContractValue),
		AllowedLeverage: cfg.AllowedLeverage,
	}
}
