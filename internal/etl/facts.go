package etl

// facts.go joins validated fact candidates against the post-reconciliation
// dimension state. A candidate that cannot resolve all three surrogate keys,
// or whose transaction_id is absent, is dropped; the counts are reported as
// warnings but never fail the run.

// ResolveFacts produces surrogate-keyed fact rows from the accepted
// candidates. keys must reflect the warehouse state after the incremental
// dimension inserts, so rows referencing freshly inserted dimension values
// resolve too.
func ResolveFacts(records []RawRecord, keys DimensionKeys, rep Reporter) []FactRow {
	facts := make([]FactRow, 0, len(records))
	missingKeys := 0
	missingTxn := 0

	for _, r := range records {
		var (
			dateKey, itemKey, buyerKey int64
			ok                         bool
		)
		resolved := true
		if !r.Date.Valid {
			resolved = false
		} else if dateKey, ok = keys.Dates[isoDate(r.Date.Time)]; !ok {
			resolved = false
		}
		if itemKey, ok = keys.Items[r.ItemCode]; !ok {
			resolved = false
		}
		if !r.BuyerID.Valid {
			resolved = false
		} else if buyerKey, ok = keys.Buyers[r.BuyerID.Int64]; !ok {
			resolved = false
		}
		if !resolved {
			missingKeys++
			continue
		}
		if !r.TransactionID.Valid {
			missingTxn++
			continue
		}

		facts = append(facts, FactRow{
			DateKey:            dateKey,
			ItemKey:            itemKey,
			BuyerKey:           buyerKey,
			TransactionID:      r.TransactionID.Int64,
			FinalQuantity:      r.FinalQuantity,
			TotalRevenue:       r.TotalRevenue,
			PriceReductions:    r.PriceReductions,
			Refunds:            r.Refunds,
			FinalRevenue:       r.FinalRevenue,
			SalesTax:           r.SalesTax,
			OverallRevenue:     r.OverallRevenue,
			RefundedItemCount:  r.RefundedItemCount,
			PurchasedItemCount: r.PurchasedItemCount,
		})
	}

	if missingKeys > 0 {
		rep.Warn("rows dropped due to missing FK references", "count", missingKeys)
	}
	if missingTxn > 0 {
		rep.Warn("rows dropped due to null transaction_id", "count", missingTxn)
	}
	return facts
}
