package etl

// validate.go applies the configurable balance checks to fact candidate
// rows. Checks run as a sequential filter in a fixed order; each check only
// sees rows that survived the checks before it. A drop rate above the
// configured ceiling fails the whole step before anything is persisted.

import (
	"math"

	"github.com/salesmart/etl/internal/config"
)

// factCandidate pairs a raw record with its transient validation-check
// columns. Candidates never leave this file: accepted rows are returned as
// the original records, with the check columns stripped by construction.
type factCandidate struct {
	index  int
	record RawRecord

	revenueCheck  float64 // total_revenue + price_reductions + refunds
	overallCheck  float64 // final_revenue + sales_tax
	quantityCheck int64   // purchased_item_count + refunded_item_count
}

// Validator partitions fact candidate rows into accepted and rejected sets
// and enforces the global error-rate ceiling.
type Validator struct {
	Checks       config.ChecksConfig
	Tolerance    float64
	MaxErrorRate float64
	Reporter     Reporter
}

// Apply runs the enabled checks over records. It returns the accepted rows
// and the rejected rows, both in original input order and identity. If the
// drop rate strictly exceeds MaxErrorRate it returns a
// ValidationThresholdExceededError and no rows.
func (v *Validator) Apply(records []RawRecord) (accepted, rejected []RawRecord, err error) {
	total := len(records)

	cands := make([]factCandidate, total)
	for i, r := range records {
		cands[i] = factCandidate{
			index:         i,
			record:        r,
			revenueCheck:  r.TotalRevenue + r.PriceReductions + r.Refunds,
			overallCheck:  r.FinalRevenue + r.SalesTax,
			quantityCheck: r.PurchasedItemCount + r.RefundedItemCount,
		}
	}

	if v.Checks.RevenueBalance {
		cands = keep(cands, func(c factCandidate) bool {
			return math.Abs(c.record.FinalRevenue-c.revenueCheck) <= v.Tolerance
		})
	}
	if v.Checks.OverallBalance {
		cands = keep(cands, func(c factCandidate) bool {
			return math.Abs(c.record.OverallRevenue-c.overallCheck) <= v.Tolerance
		})
	}
	if v.Checks.QuantityBalance {
		cands = keep(cands, func(c factCandidate) bool {
			return c.record.FinalQuantity == c.quantityCheck
		})
	}
	if v.Checks.RefundedNonpositive {
		cands = keep(cands, func(c factCandidate) bool {
			return c.record.RefundedItemCount <= 0
		})
	}

	dropped := total - len(cands)
	dropRate := float64(dropped) / math.Max(float64(total), 1)
	v.Reporter.Info("validation complete",
		"accepted", len(cands),
		"dropped", dropped,
		"drop_rate", dropRate,
	)

	if dropRate > v.MaxErrorRate {
		return nil, nil, &ValidationThresholdExceededError{
			Observed: dropRate,
			Allowed:  v.MaxErrorRate,
		}
	}

	acceptedIdx := make(map[int]bool, len(cands))
	accepted = make([]RawRecord, 0, len(cands))
	for _, c := range cands {
		acceptedIdx[c.index] = true
		accepted = append(accepted, c.record)
	}
	for i, r := range records {
		if !acceptedIdx[i] {
			rejected = append(rejected, r)
		}
	}
	return accepted, rejected, nil
}

// keep filters candidates in place, preserving order.
func keep(cands []factCandidate, pred func(factCandidate) bool) []factCandidate {
	out := cands[:0]
	for _, c := range cands {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}
