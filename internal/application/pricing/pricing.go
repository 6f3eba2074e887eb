package pricing

import (
	"fmt"
	"sync"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"

	"github.com/otc-market/otc-market/internal/domain/order"
)

// TierConfig parameterizes the platform's tiered commission rule: a flat
// fee up to and including Threshold, a percentage of the amount above it.
type TierConfig struct {
	Threshold decimal.Decimal
	FlatFee   decimal.Decimal
	PctRate   decimal.Decimal
}

// Engine computes commissions and settlement totals. Computations stay at
// full precision; rounding to 2 decimals happens only at display or
// persistence via Round.
type Engine struct {
	tier TierConfig
}

func NewEngine(tier TierConfig) *Engine {
	return &Engine{tier: tier}
}

// ComputeCommission applies the order's commission policy to amount.
func (e *Engine) ComputeCommission(amount decimal.Decimal, policy order.CommissionPolicy) (decimal.Decimal, error) {
	switch policy.Type {
	case order.CommissionPercent:
		return amount.Mul(policy.Value).Div(decimal.NewFromInt(100)), nil
	case order.CommissionFixed:
		return policy.Value, nil
	case order.CommissionTiered:
		if amount.LessThanOrEqual(e.tier.Threshold) {
			return e.tier.FlatFee, nil
		}
		return amount.Mul(e.tier.PctRate), nil
	case order.CommissionExpression:
		return evaluateExpression(policy.Expression, amount)
	default:
		return decimal.Zero, fmt.Errorf("unsupported commission type: %s", policy.Type)
	}
}

// ComputeTotal is the amount the buyer owes in asset units.
func (e *Engine) ComputeTotal(amount, commission decimal.Decimal) decimal.Decimal {
	return amount.Add(commission)
}

// Convert expresses an asset total in settlement currency at the given rate.
func (e *Engine) Convert(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate)
}

// Round applies the display/persistence rounding policy: half-up to 2
// fractional digits. Intermediate computations must not use it.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// evaluateExpression computes a fee formula over "amount". The expression
// is operator input, not end-user input; a malformed one fails the
// computation rather than silently charging zero.
func evaluateExpression(expr string, amount decimal.Decimal) (decimal.Decimal, error) {
	if expr == "" {
		return decimal.Zero, fmt.Errorf("empty commission expression")
	}
	parsed, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse commission expression: %w", err)
	}
	amt, _ := amount.Float64()
	result, err := parsed.Evaluate(map[string]interface{}{"amount": amt})
	if err != nil {
		return decimal.Zero, fmt.Errorf("evaluate commission expression: %w", err)
	}
	f, ok := result.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("commission expression did not evaluate to a number")
	}
	return decimal.NewFromFloat(f), nil
}

// RateSource holds the process-wide settlement rate override. While unset,
// each order's own rate applies; once the admin sets it, it supersedes
// order rates for every later conversion. Last writer wins, no versioning.
type RateSource struct {
	mu   sync.RWMutex
	rate decimal.Decimal
	set  bool
}

func NewRateSource() *RateSource {
	return &RateSource{}
}

// Override returns the active override, if any.
func (r *RateSource) Override() (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate, r.set
}

func (r *RateSource) Set(rate decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = rate
	r.set = true
}

// EffectiveRate resolves the rate for a conversion: the override when set,
// the order's rate otherwise.
func (r *RateSource) EffectiveRate(orderRate decimal.Decimal) decimal.Decimal {
	if override, ok := r.Override(); ok {
		return override
	}
	return orderRate
}
