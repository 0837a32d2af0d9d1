package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateProvider resolves a conversion rate between two currencies, optionally
// as of a given date.
type RateProvider interface {
	Rate(ctx context.Context, base, quote string, on *time.Time) (decimal.Decimal, error)
}

// FixedRates is an in-memory RateProvider for tests. Keys are "BASE/QUOTE"
// pairs; unknown pairs resolve to 1.
type FixedRates map[string]decimal.Decimal

func (r FixedRates) Rate(_ context.Context, base, quote string, _ *time.Time) (decimal.Decimal, error) {
	if base == quote {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := r[base+"/"+quote]; ok {
		return rate, nil
	}
	return decimal.NewFromInt(1), nil
}
