// Package audit carries the structured records emitted while validating
// margin requests. Sinks are fire-and-forget: Emit never blocks the caller
// and never reports failure.
package audit

import (
	"io"
	"maps"
	"time"

	"frizo/margin_engine/internal/common"
)

const (
	EventValidationFailed  = "VALIDATION_FAILED"
	EventMarginComputed    = "MARGIN_COMPUTED"
	EventValidationSuccess = "VALIDATION_SUCCESS"
)

// Reason values carried by VALIDATION_FAILED records
const (
	ReasonUnsupportedAsset   = "unsupported_asset"
	ReasonInvalidLeverage    = "invalid_leverage"
	ReasonInvalidOrderSize   = "invalid_order_size"
	ReasonZeroMarginOrder    = "zero_margin_order"
	ReasonInsufficientMargin = "insufficient_margin"
	ReasonMalformedRequest   = "malformed_request"
)

const (
	FieldEventID   = "event_id"
	FieldTimestamp = "timestamp"
	FieldReason    = "reason"
)

// TimestampLayout ISO-8601 with microseconds and numeric offset
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Fields record payload, values are primitives (string, number, bool)
type Fields map[string]any

// Sink accepts audit records.
type Sink interface {
	Emit(event string, fields Fields)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event string, fields Fields)

func (f SinkFunc) Emit(event string, fields Fields) { f(event, fields) }

// Discard drops every record.
var Discard Sink = SinkFunc(func(string, Fields) {})

// Multi fans a record out to every sink.
type Multi []Sink

func (m Multi) Emit(event string, fields Fields) {
	for _, s := range m {
		s.Emit(event, fields)
	}
}

// Close closes every sink that implements io.Closer and returns the first error.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Stamper adds an event id and a timestamp in a fixed zone to every record,
// then forwards a private copy of the fields to next.
type Stamper struct {
	next     Sink
	location *time.Location
	now      func() time.Time
}

func NewStamper(next Sink, location *time.Location) *Stamper {
	if location == nil {
		location = time.UTC
	}
	return &Stamper{
		next:     next,
		location: location,
		now:      time.Now,
	}
}

func (s *Stamper) Emit(event string, fields Fields) {
	stamped := make(Fields, len(fields)+2)
	maps.Copy(stamped, fields)
	stamped[FieldEventID] = common.GenerateEventID()
	stamped[FieldTimestamp] = s.now().In(s.location).Format(TimestampLayout)

	s.next.Emit(event, stamped)
}

// Close closes the wrapped sink when it supports it.
func (s *Stamper) Close() error {
	if c, ok := s.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
