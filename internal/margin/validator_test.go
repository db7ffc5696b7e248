package margin

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frizo/margin_engine/internal/asset"
	"frizo/margin_engine/internal/audit"
)

type emitted struct {
	event  string
	fields audit.Fields
}

type recorder struct {
	mu      sync.Mutex
	records []emitted
}

func (r *recorder) Emit(event string, fields audit.Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, emitted{event, fields})
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.event)
	}
	return out
}

func (r *recorder) last() emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[len(r.records)-1]
}

// Test helpers
func newTestValidator() (*Validator, *recorder) {
	rec := &recorder{}
	return NewValidator(asset.Default(), rec), rec
}

func btcRequest(size, client string, leverage int) Request {
	return Request{
		Asset:        "BTC",
		OrderSize:    d(size),
		Side:         LONG,
		Leverage:     leverage,
		MarginClient: d(client),
	}
}

func assertCents(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, FormatCents(got))
}

func TestValidateSuccess(t *testing.T) {
	v, rec := newTestValidator()

	decision, err := v.Validate(btcRequest("2", "6.2", 20))
	require.NoError(t, err)

	assert.Equal(t, StatusOK, decision.Status)
	assert.True(t, decision.OK())
	assert.Empty(t, decision.Message)
	assertCents(t, "6.20", decision.MarginRequired)

	assert.Equal(t, []string{audit.EventMarginComputed, audit.EventValidationSuccess}, rec.events())

	computed := rec.records[0].fields
	assert.Equal(t, "BTC", computed["asset"])
	assert.Equal(t, "long", computed["side"])
	assert.Equal(t, "2", computed["order_size"])
	assert.Equal(t, 20, computed["leverage"])
	assert.Equal(t, "6.20", computed["margin_required"])
	assert.Equal(t, "6.20", computed["margin_client"])
	assert.Equal(t, "6.2", computed["margin_raw"])
}

func TestValidateInsufficientMargin(t *testing.T) {
	v, rec := newTestValidator()

	decision, err := v.Validate(btcRequest("2", "6.19", 20))
	require.NoError(t, err)

	assert.Equal(t, StatusError, decision.Status)
	assert.Equal(t, MsgInsufficientMargin, decision.Message)
	assertCents(t, "6.20", decision.MarginRequired)

	assert.Equal(t, []string{audit.EventMarginComputed, audit.EventValidationFailed}, rec.events())
	failed := rec.last().fields
	assert.Equal(t, audit.ReasonInsufficientMargin, failed[audit.FieldReason])
	assert.Equal(t, "6.20", failed["margin_required"])
	assert.Equal(t, "6.19", failed["margin_client"])
}

func TestValidateClientMarginIsRounded(t *testing.T) {
	v, _ := newTestValidator()

	// 6.195 -> 6.20
	decision, err := v.Validate(btcRequest("2", "6.195", 20))
	require.NoError(t, err)
	assert.True(t, decision.OK())

	// 6.1949 -> 6.19
	decision, err = v.Validate(btcRequest("2", "6.1949", 20))
	require.NoError(t, err)
	assert.Equal(t, MsgInsufficientMargin, decision.Message)
}

func TestValidateRoundHalfUp(t *testing.T) {
	v, _ := newTestValidator()

	t.Run("ThirdDecimalFive", func(t *testing.T) {
		decision, err := v.Validate(Request{
			Asset:        "eth",
			OrderSize:    d("0.97578125"), // raw 6.245
			Leverage:     5,
			MarginClient: d("6.25"),
		})
		require.NoError(t, err)
		assert.True(t, decision.OK())
		assertCents(t, "6.25", decision.MarginRequired)

		decision, err = v.Validate(Request{
			Asset:        "eth",
			OrderSize:    d("0.97578125"),
			Leverage:     5,
			MarginClient: d("6.24"),
		})
		require.NoError(t, err)
		assert.Equal(t, MsgInsufficientMargin, decision.Message)
	})

	t.Run("PrecedingEvenDigit", func(t *testing.T) {
		// raw 0.465, banker's rounding would give 0.46
		decision, err := v.Validate(btcRequest("0.15", "0.47", 20))
		require.NoError(t, err)
		assert.True(t, decision.OK())
		assertCents(t, "0.47", decision.MarginRequired)
	})

	t.Run("FourthDecimalDoesNotCarry", func(t *testing.T) {
		// raw 6.24495
		decision, err := v.Validate(btcRequest("2.0145", "6.25", 20))
		require.NoError(t, err)
		assert.True(t, decision.OK())
		assertCents(t, "6.24", decision.MarginRequired)
	})
}

func TestValidateZeroMargin(t *testing.T) {
	v, rec := newTestValidator()

	decision, err := v.Validate(btcRequest("0.0000001", "0", 20))
	require.NoError(t, err)

	assert.Equal(t, StatusError, decision.Status)
	assert.Contains(t, decision.Message, "rounds to zero")
	assert.True(t, decision.MarginRequired.IsZero())

	// figures are audited before the rejection
	assert.Equal(t, []string{audit.EventMarginComputed, audit.EventValidationFailed}, rec.events())
	assert.Equal(t, audit.ReasonZeroMarginOrder, rec.last().fields[audit.FieldReason])

	t.Run("SmallestPositiveCentPasses", func(t *testing.T) {
		decision, err := v.Validate(Request{
			Asset:        "ETH",
			OrderSize:    d("0.0078125"), // raw 0.005
			Leverage:     50,
			MarginClient: d("0.01"),
		})
		require.NoError(t, err)
		assert.True(t, decision.OK())
		assertCents(t, "0.01", decision.MarginRequired)
	})

	t.Run("JustBelowHalfCent", func(t *testing.T) {
		decision, err := v.Validate(Request{
			Asset:        "ETH",
			OrderSize:    d("0.0078124"),
			Leverage:     50,
			MarginClient: d("100"),
		})
		require.NoError(t, err)
		assert.Contains(t, decision.Message, "rounds to zero")
	})
}

func TestValidateOrderSize(t *testing.T) {
	for _, size := range []string{"0", "-2", "-0.0001", "0.000"} {
		t.Run(size, func(t *testing.T) {
			v, rec := newTestValidator()

			// client margin and leverage do not matter once the asset/leverage pass
			decision, err := v.Validate(btcRequest(size, "1000000", 100))
			require.NoError(t, err)

			assert.Equal(t, StatusError, decision.Status)
			assert.Equal(t, MsgInvalidOrderSize, decision.Message)
			assert.True(t, decision.MarginRequired.IsZero())

			assert.Equal(t, []string{audit.EventValidationFailed}, rec.events())
			assert.Equal(t, audit.ReasonInvalidOrderSize, rec.last().fields[audit.FieldReason])
			assert.Equal(t, "leverage_checked", rec.last().fields["stage"])
		})
	}
}

func TestValidateInvalidLeverage(t *testing.T) {
	for _, leverage := range []int{15, 0, -20, 1000} {
		v, rec := newTestValidator()

		decision, err := v.Validate(btcRequest("-5", "0", leverage))
		require.Error(t, err)

		rej, ok := IsRejection(err)
		require.True(t, ok)
		assert.Equal(t, MsgInvalidLeverage, rej.Message)
		assert.Equal(t, audit.ReasonInvalidLeverage, rej.Reason)
		assert.Equal(t, Decision{}, decision)

		require.Equal(t, []string{audit.EventValidationFailed}, rec.events())
		assert.Equal(t, leverage, rec.last().fields["leverage"])
		assert.Equal(t, audit.ReasonInvalidLeverage, rec.last().fields[audit.FieldReason])
	}

	t.Run("TierOfAnotherAsset", func(t *testing.T) {
		v, _ := newTestValidator()
		// 25 is an ETH tier, not a BTC one
		_, err := v.Validate(btcRequest("1", "100", 25))
		rej, ok := IsRejection(err)
		require.True(t, ok)
		assert.Equal(t, MsgInvalidLeverage, rej.Message)
	})
}

func TestValidateUnsupportedAsset(t *testing.T) {
	for _, symbol := range []string{"DOGE", "doge", "", "BTCUSDT"} {
		v, rec := newTestValidator()

		req := btcRequest("2", "6.2", 15) // leverage is invalid too, asset wins
		req.Asset = symbol
		_, err := v.Validate(req)

		rej, ok := IsRejection(err)
		require.True(t, ok, symbol)
		assert.Equal(t, MsgUnsupportedAsset, rej.Message)
		assert.ErrorIs(t, err, asset.ErrAssetNotFound)

		require.Len(t, rec.records, 1)
		assert.Equal(t, audit.ReasonUnsupportedAsset, rec.last().fields[audit.FieldReason])
		assert.Equal(t, "start", rec.last().fields["stage"])
	}
}

func TestValidateAssetCaseInsensitive(t *testing.T) {
	v, rec := newTestValidator()

	req := btcRequest("2", "6.2", 20)
	req.Asset = " btc"
	decision, err := v.Validate(req)
	require.NoError(t, err)
	assert.True(t, decision.OK())
	assert.Equal(t, "BTC", rec.last().fields["asset"])
}

func TestRejectMalformed(t *testing.T) {
	v, rec := newTestValidator()

	rej := v.RejectMalformed(assert.AnError)
	assert.Equal(t, audit.ReasonMalformedRequest, rej.Reason)
	assert.Equal(t, MsgMalformedRequest, rej.Message)
	assert.ErrorIs(t, rej, assert.AnError)

	require.Len(t, rec.records, 1)
	assert.Equal(t, audit.EventValidationFailed, rec.last().event)
	assert.Equal(t, audit.ReasonMalformedRequest, rec.last().fields[audit.FieldReason])
}

func TestValidateOperandOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"TinyOrderSize", btcRequest("1e-20000000", "6.2", 20), "order_size"},
		{"OrderSizeNearInt32Limit", btcRequest("1e-2147483000", "6.2", 20), "order_size"},
		{"HugeMargin", btcRequest("2", "1e20000000", 20), "margin_client"},
		{"UnknownAssetStillMalformed", Request{Asset: "DOGE", OrderSize: d("1e-30"), Leverage: 20}, "order_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, rec := newTestValidator()

			_, err := v.Validate(tt.req)
			rej, ok := IsRejection(err)
			require.True(t, ok, "expected rejection, got %v", err)
			assert.Equal(t, audit.ReasonMalformedRequest, rej.Reason)
			assert.Equal(t, MsgMalformedRequest, rej.Message)
			assert.ErrorIs(t, err, ErrOperandOutOfRange)

			assert.Equal(t, []string{audit.EventValidationFailed}, rec.events())
			assert.Equal(t, tt.field, rec.last().fields["field"])
			assert.Equal(t, "start", rec.last().fields["stage"])
		})
	}
}

// For every tier and size: submitting exactly the required margin passes,
// one cent less fails.
func TestValidateRequiredMarginBoundary(t *testing.T) {
	catalog := asset.Default()
	v := NewValidator(catalog, nil)
	sizes := []string{"0.01", "0.15", "0.333", "1", "2.0145", "7.77777", "123.456789"}

	for _, cfg := range catalog.List() {
		for _, leverage := range cfg.AllowedLeverage {
			for _, size := range sizes {
				calc, err := Compute(cfg, d(size), leverage)
				require.NoError(t, err)
				if calc.Required.IsZero() {
					continue
				}

				req := Request{Asset: cfg.Symbol, OrderSize: d(size), Leverage: leverage, MarginClient: calc.Required}
				decision, err := v.Validate(req)
				require.NoError(t, err)
				assert.True(t, decision.OK(), "%s x%d size %s", cfg.Symbol, leverage, size)
				assert.True(t, decision.MarginRequired.Equal(calc.Required))

				req.MarginClient = calc.Required.Sub(d("0.01"))
				decision, err = v.Validate(req)
				require.NoError(t, err)
				assert.Equal(t, MsgInsufficientMargin, decision.Message, "%s x%d size %s", cfg.Symbol, leverage, size)
				assert.True(t, decision.MarginRequired.Equal(calc.Required))
			}
		}
	}
}

func TestValidateIdempotent(t *testing.T) {
	v, _ := newTestValidator()
	req := btcRequest("0.15", "0.46", 20)

	first, err1 := v.Validate(req)
	second, err2 := v.Validate(req)

	assert.Equal(t, err1, err2)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Message, second.Message)
	assert.True(t, first.MarginRequired.Equal(second.MarginRequired))
}

func TestValidateSinkPanicDoesNotAlterDecision(t *testing.T) {
	v := NewValidator(asset.Default(), audit.SinkFunc(func(string, audit.Fields) {
		panic("sink down")
	}))

	decision, err := v.Validate(btcRequest("2", "6.2", 20))
	require.NoError(t, err)
	assert.True(t, decision.OK())
	assertCents(t, "6.20", decision.MarginRequired)
}

func TestValidateConcurrent(t *testing.T) {
	v, _ := newTestValidator()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				client := "6.2"
				if (i+j)%2 == 1 {
					client = "6.19"
				}
				decision, err := v.Validate(btcRequest("2", client, 20))
				if err != nil {
					t.Error(err)
					return
				}
				if decision.OK() != (client == "6.2") {
					t.Errorf("unexpected decision %+v for client %s", decision, client)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkValidate(b *testing.B) {
	v := NewValidator(asset.Default(), nil)
	req := btcRequest("2.0145", "6.25", 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = v.Validate(req)
	}
}
