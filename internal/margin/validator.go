package margin

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"frizo/margin_engine/internal/asset"
	"frizo/margin_engine/internal/audit"
)

// Catalog asset lookup used by the validator
type Catalog interface {
	Lookup(symbol string) (asset.Config, error)
}

// Validator checks client submitted margin against the backend computed
// required margin. It holds no per-call state and is safe for concurrent use.
type Validator struct {
	catalog Catalog
	sink    audit.Sink
}

func NewValidator(catalog Catalog, sink audit.Sink) *Validator {
	if sink == nil {
		sink = audit.Discard
	}
	return &Validator{
		catalog: catalog,
		sink:    sink,
	}
}

// =====================================================
// pipeline
// =====================================================

// stage how far an evaluation got
type stage int

const (
	stageStart stage = iota
	stageAssetResolved
	stageLeverageChecked
	stageSizeChecked
	stageMarginComputed
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageStart:
		return "start"
	case stageAssetResolved:
		return "asset_resolved"
	case stageLeverageChecked:
		return "leverage_checked"
	case stageSizeChecked:
		return "size_checked"
	case stageMarginComputed:
		return "margin_computed"
	case stageDone:
		return "done"
	default:
		return "unknown"
	}
}

type evaluation struct {
	req    Request
	symbol string
	stage  stage

	asset    asset.Config
	calc     Computation
	client   decimal.Decimal // MarginClient rounded to cents
	required decimal.Decimal
}

// outcome terminal result of a failed step
type outcome struct {
	reason    string
	decision  Decision
	rejection *RejectionError
	fields    audit.Fields
}

// step returns nil to advance to the next step
type step func(v *Validator, e *evaluation) *outcome

// order matters: each step relies on the state the previous ones established
var pipeline = []step{
	(*Validator).checkOperands,
	(*Validator).resolveAsset,
	(*Validator).checkLeverage,
	(*Validator).checkOrderSize,
	(*Validator).computeMargin,
	(*Validator).checkZeroMargin,
	(*Validator).checkSufficiency,
}

// Validate runs the validation pipeline for req.
//
// A non-nil error is always a *RejectionError: the request was refused
// before a decision could be made. Every other outcome, including business
// rule failures, is reported through the returned Decision.
func (v *Validator) Validate(req Request) (Decision, error) {
	e := &evaluation{
		req:    req,
		symbol: asset.Normalize(req.Asset),
	}

	for _, s := range pipeline {
		if out := s(v, e); out != nil {
			return v.finish(e, out)
		}
	}

	e.stage = stageDone
	fields := e.computedFields()
	v.emit(audit.EventValidationSuccess, fields)

	return Decision{
		Status:         StatusOK,
		MarginRequired: e.required,
	}, nil
}

// RejectMalformed records a request whose fields could not be decoded
// (non-numeric order size or margin, wrong types) and returns the
// boundary rejection to send back.
func (v *Validator) RejectMalformed(cause error) *RejectionError {
	rej := &RejectionError{
		Reason:  audit.ReasonMalformedRequest,
		Message: MsgMalformedRequest,
		Cause:   cause,
	}
	fields := audit.Fields{
		audit.FieldReason: rej.Reason,
		"stage":           stageStart.String(),
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	v.emit(audit.EventValidationFailed, fields)
	return rej
}

func (v *Validator) finish(e *evaluation, out *outcome) (Decision, error) {
	fields := out.fields
	if fields == nil {
		fields = audit.Fields{}
	}
	fields[audit.FieldReason] = out.reason
	fields["stage"] = e.stage.String()
	v.emit(audit.EventValidationFailed, fields)

	e.stage = stageDone
	if out.rejection != nil {
		return Decision{}, out.rejection
	}
	return out.decision, nil
}

// emit a failing or panicking sink must not change the decision
func (v *Validator) emit(event string, fields audit.Fields) {
	defer func() { _ = recover() }()
	v.sink.Emit(event, fields)
}

// =====================================================
// steps
// =====================================================

// checkOperands refuses figures too large or too precise to compute with.
// Fields carry exponents only; rendering such a value is itself unbounded.
func (v *Validator) checkOperands(e *evaluation) *outcome {
	for _, op := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"order_size", e.req.OrderSize},
		{"margin_client", e.req.MarginClient},
	} {
		if err := CheckOperand(op.value); err != nil {
			rej := &RejectionError{
				Reason:  audit.ReasonMalformedRequest,
				Message: MsgMalformedRequest,
				Cause:   fmt.Errorf("%s: %w", op.name, err),
			}
			return &outcome{
				reason:    rej.Reason,
				rejection: rej,
				fields: audit.Fields{
					"asset":    e.symbol,
					"field":    op.name,
					"exponent": op.value.Exponent(),
				},
			}
		}
	}
	return nil
}

func (v *Validator) resolveAsset(e *evaluation) *outcome {
	cfg, err := v.catalog.Lookup(e.symbol)
	if err != nil {
		return &outcome{
			reason:    audit.ReasonUnsupportedAsset,
			rejection: &RejectionError{Reason: audit.ReasonUnsupportedAsset, Message: MsgUnsupportedAsset, Cause: err},
			fields:    audit.Fields{"asset": e.symbol},
		}
	}

	e.asset = cfg
	e.stage = stageAssetResolved
	return nil
}

func (v *Validator) checkLeverage(e *evaluation) *outcome {
	if !e.asset.AllowsLeverage(e.req.Leverage) {
		return &outcome{
			reason:    audit.ReasonInvalidLeverage,
			rejection: &RejectionError{Reason: audit.ReasonInvalidLeverage, Message: MsgInvalidLeverage},
			fields: audit.Fields{
				"asset":    e.symbol,
				"leverage": e.req.Leverage,
			},
		}
	}

	e.stage = stageLeverageChecked
	return nil
}

func (v *Validator) checkOrderSize(e *evaluation) *outcome {
	if !e.req.OrderSize.IsPositive() {
		return &outcome{
			reason:   audit.ReasonInvalidOrderSize,
			decision: errorDecision(MsgInvalidOrderSize, decimal.Zero),
			fields: audit.Fields{
				"asset":      e.symbol,
				"order_size": e.req.OrderSize.String(),
				"leverage":   e.req.Leverage,
			},
		}
	}

	e.stage = stageSizeChecked
	return nil
}

// computeMargin also normalizes the client margin and emits MARGIN_COMPUTED
// before any check on the computed figures runs.
func (v *Validator) computeMargin(e *evaluation) *outcome {
	calc, err := Compute(e.asset, e.req.OrderSize, e.req.Leverage)
	if err != nil {
		// unreachable once the leverage is one of the asset's tiers
		return &outcome{
			reason:    audit.ReasonInvalidLeverage,
			rejection: &RejectionError{Reason: audit.ReasonInvalidLeverage, Message: MsgInvalidLeverage, Cause: err},
		}
	}

	e.calc = calc
	e.required = calc.Required
	e.client = RoundCents(e.req.MarginClient)
	e.stage = stageMarginComputed

	fields := e.computedFields()
	fields["margin_raw"] = calc.Raw.String()
	v.emit(audit.EventMarginComputed, fields)
	return nil
}

func (v *Validator) checkZeroMargin(e *evaluation) *outcome {
	if e.required.IsZero() {
		return &outcome{
			reason:   audit.ReasonZeroMarginOrder,
			decision: errorDecision(MsgZeroMarginOrder, decimal.Zero),
			fields:   e.computedFields(),
		}
	}
	return nil
}

func (v *Validator) checkSufficiency(e *evaluation) *outcome {
	if e.client.LessThan(e.required) {
		return &outcome{
			reason:   audit.ReasonInsufficientMargin,
			decision: errorDecision(MsgInsufficientMargin, e.required),
			fields:   e.computedFields(),
		}
	}
	return nil
}

// =====================================================
// support methods
// =====================================================

func errorDecision(message string, required decimal.Decimal) Decision {
	return Decision{
		Status:         StatusError,
		Message:        message,
		MarginRequired: RoundCents(required),
	}
}

func (e *evaluation) computedFields() audit.Fields {
	return audit.Fields{
		"asset":           e.symbol,
		"side":            e.req.Side.String(),
		"order_size":      e.req.OrderSize.String(),
		"leverage":        e.req.Leverage,
		"margin_required": FormatCents(e.required),
		"margin_client":   FormatCents(e.client),
	}
}

// IsRejection reports whether err is a boundary rejection and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
