package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"frizo/margin_engine/internal/margin"
)

const (
	exitBusinessRejection = 1
	exitBoundaryRejection = 2
)

type validateOptions struct {
	asset        string
	orderSize    string
	side         string
	leverage     int
	marginClient string
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Validate one margin request and print the decision",
		Example: "  margin_engine validate --asset BTC --size 2 --leverage 20 --margin 6.2",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.asset, "asset", "", "Asset symbol (case-insensitive)")
	cmd.Flags().StringVar(&opts.orderSize, "size", "", "Order size in contracts")
	cmd.Flags().StringVar(&opts.side, "side", "long", "Order side (long, short)")
	cmd.Flags().IntVar(&opts.leverage, "leverage", 0, "Leverage")
	cmd.Flags().StringVar(&opts.marginClient, "margin", "0", "Margin submitted by the client")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("size")
	_ = cmd.MarkFlagRequired("leverage")

	return cmd
}

type decisionOutput struct {
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	MarginRequired string `json:"margin_required"`
}

func runValidate(cmd *cobra.Command, root *rootOptions, opts *validateOptions) error {
	cfg, _, err := root.load()
	if err != nil {
		return err
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	// audit lines go to stderr so stdout only carries the decision
	sink, err := auditPipeline(cfg, os.Stderr, nil, nil)
	if err != nil {
		return err
	}
	defer sink.Close()

	validator := margin.NewValidator(catalog, sink)

	req, err := opts.request()
	if err != nil {
		rej := validator.RejectMalformed(err)
		return &exitError{code: exitBoundaryRejection, err: rej}
	}

	decision, err := validator.Validate(req)
	if err != nil {
		return &exitError{code: exitBoundaryRejection, err: err}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(decisionOutput{
		Status:         string(decision.Status),
		Message:        decision.Message,
		MarginRequired: margin.FormatCents(decision.MarginRequired),
	}); err != nil {
		return err
	}

	if !decision.OK() {
		return &exitError{code: exitBusinessRejection, err: errors.New(decision.Message)}
	}
	return nil
}

func (o *validateOptions) request() (margin.Request, error) {
	size, err := decimal.NewFromString(o.orderSize)
	if err != nil {
		return margin.Request{}, errors.Wrap(err, "order size")
	}
	client, err := decimal.NewFromString(o.marginClient)
	if err != nil {
		return margin.Request{}, errors.Wrap(err, "margin")
	}
	side, err := margin.ParseSide(o.side)
	if err != nil {
		return margin.Request{}, err
	}

	return margin.Request{
		Asset:        o.asset,
		OrderSize:    size,
		Side:         side,
		Leverage:     o.leverage,
		MarginClient: client,
	}, nil
}
