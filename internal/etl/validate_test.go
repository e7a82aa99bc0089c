package etl

import (
	"testing"

	"github.com/salesmart/etl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allChecks() config.ChecksConfig {
	return config.ChecksConfig{
		RevenueBalance:      true,
		OverallBalance:      true,
		QuantityBalance:     true,
		RefundedNonpositive: true,
	}
}

// balancedRecord returns a record that passes every check.
func balancedRecord() RawRecord {
	return RawRecord{
		TransactionID:      validInt8(100),
		TotalRevenue:       100,
		PriceReductions:    -10,
		Refunds:            0,
		FinalRevenue:       90,
		SalesTax:           9,
		OverallRevenue:     99,
		FinalQuantity:      10,
		PurchasedItemCount: 10,
		RefundedItemCount:  0,
	}
}

func TestValidatorRevenueBalance(t *testing.T) {
	v := &Validator{
		Checks:       config.ChecksConfig{RevenueBalance: true},
		Tolerance:    0.01,
		MaxErrorRate: 1,
		Reporter:     &testReporter{},
	}

	ok := balancedRecord() // final_revenue = 100 + (-10) + 0 = 90
	accepted, rejected, err := v.Apply([]RawRecord{ok})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
	assert.Empty(t, rejected)

	bad := balancedRecord()
	bad.FinalRevenue = 95
	accepted, rejected, err = v.Apply([]RawRecord{bad})
	require.NoError(t, err)
	assert.Empty(t, accepted)
	assert.Len(t, rejected, 1)
}

func TestValidatorToleranceIsInclusive(t *testing.T) {
	v := &Validator{
		Checks:       config.ChecksConfig{RevenueBalance: true},
		Tolerance:    0.01,
		MaxErrorRate: 1,
		Reporter:     &testReporter{},
	}

	r := balancedRecord()
	r.FinalRevenue = 90.01 // exactly at tolerance
	accepted, _, err := v.Apply([]RawRecord{r})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
}

func TestValidatorQuantityBalanceIsExact(t *testing.T) {
	v := &Validator{
		Checks:       config.ChecksConfig{QuantityBalance: true},
		Tolerance:    100, // tolerance never applies to the quantity check
		MaxErrorRate: 1,
		Reporter:     &testReporter{},
	}

	r := balancedRecord()
	r.FinalQuantity = 11
	accepted, rejected, err := v.Apply([]RawRecord{r})
	require.NoError(t, err)
	assert.Empty(t, accepted)
	assert.Len(t, rejected, 1)
}

func TestValidatorRefundedNonpositive(t *testing.T) {
	v := &Validator{
		Checks:       config.ChecksConfig{RefundedNonpositive: true},
		MaxErrorRate: 1,
		Reporter:     &testReporter{},
	}

	ok := balancedRecord()
	ok.RefundedItemCount = -2
	bad := balancedRecord()
	bad.RefundedItemCount = 1

	accepted, rejected, err := v.Apply([]RawRecord{ok, bad})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
	assert.Len(t, rejected, 1)
	assert.Equal(t, int64(1), rejected[0].RefundedItemCount)
}

func TestValidatorThreshold(t *testing.T) {
	ok := balancedRecord()
	bad := balancedRecord()
	bad.FinalRevenue = 50 // fails revenue_balance

	// drop_rate 0.5 == max_error_rate 0.5: strictly-greater comparison only.
	v := &Validator{Checks: allChecks(), Tolerance: 0.01, MaxErrorRate: 0.5, Reporter: &testReporter{}}
	accepted, rejected, err := v.Apply([]RawRecord{ok, bad})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
	assert.Len(t, rejected, 1)

	// drop_rate 0.5 > max_error_rate 0.1: fatal, nothing returned.
	v = &Validator{Checks: allChecks(), Tolerance: 0.01, MaxErrorRate: 0.1, Reporter: &testReporter{}}
	accepted, rejected, err = v.Apply([]RawRecord{ok, bad})
	var vte *ValidationThresholdExceededError
	require.ErrorAs(t, err, &vte)
	assert.InDelta(t, 0.5, vte.Observed, 1e-9)
	assert.InDelta(t, 0.1, vte.Allowed, 1e-9)
	assert.Contains(t, err.Error(), "50.00%")
	assert.Nil(t, accepted)
	assert.Nil(t, rejected)
}

func TestValidatorZeroInputRows(t *testing.T) {
	v := &Validator{Checks: allChecks(), MaxErrorRate: 0, Reporter: &testReporter{}}
	accepted, rejected, err := v.Apply(nil)
	require.NoError(t, err)
	assert.Empty(t, accepted)
	assert.Empty(t, rejected)
}

func TestValidatorDisabledChecksAreNoOps(t *testing.T) {
	// Every row here violates every check, but nothing is enabled.
	r := RawRecord{
		TotalRevenue:       1,
		FinalRevenue:       500,
		OverallRevenue:     -3,
		FinalQuantity:      7,
		PurchasedItemCount: 1,
		RefundedItemCount:  4,
	}
	v := &Validator{Checks: config.ChecksConfig{}, MaxErrorRate: 0, Reporter: &testReporter{}}
	accepted, rejected, err := v.Apply([]RawRecord{r, r})
	require.NoError(t, err)
	assert.Len(t, accepted, 2)
	assert.Empty(t, rejected)
}

func TestValidatorDropRateMonotonicInChecks(t *testing.T) {
	records := []RawRecord{balancedRecord()}
	{
		r := balancedRecord()
		r.FinalRevenue = 10 // fails revenue_balance and overall_balance
		records = append(records, r)
	}
	{
		r := balancedRecord()
		r.RefundedItemCount = 5 // fails quantity_balance and refunded_nonpositive
		records = append(records, r)
	}

	configs := []config.ChecksConfig{
		{},
		{RevenueBalance: true},
		{RevenueBalance: true, OverallBalance: true},
		{RevenueBalance: true, OverallBalance: true, QuantityBalance: true},
		allChecks(),
	}

	prev := -1
	for _, checks := range configs {
		v := &Validator{Checks: checks, Tolerance: 0.01, MaxErrorRate: 1, Reporter: &testReporter{}}
		_, rejected, err := v.Apply(records)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(rejected), prev, "enabling more checks must never drop fewer rows")
		prev = len(rejected)
	}
}

func TestValidatorPreservesOriginalRowIdentity(t *testing.T) {
	a := balancedRecord()
	a.TransactionID = validInt8(1)
	b := balancedRecord()
	b.TransactionID = validInt8(2)
	b.FinalRevenue = 0 // rejected
	c := balancedRecord()
	c.TransactionID = validInt8(3)

	v := &Validator{Checks: allChecks(), Tolerance: 0.01, MaxErrorRate: 1, Reporter: &testReporter{}}
	accepted, rejected, err := v.Apply([]RawRecord{a, b, c})
	require.NoError(t, err)

	require.Len(t, accepted, 2)
	assert.Equal(t, int64(1), accepted[0].TransactionID.Int64)
	assert.Equal(t, int64(3), accepted[1].TransactionID.Int64)

	require.Len(t, rejected, 1)
	assert.Equal(t, b, rejected[0])
}
