package etl

// reconcile.go computes the insert-only incremental delta for each
// dimension: the candidate rows whose natural key is not yet persisted.
// Existing rows are never re-inserted or mutated, which is what makes
// re-running the pipeline against unchanged input idempotent.

// NewDateRows returns the candidates whose full_date is absent from the
// persisted key set, preserving candidate order.
func NewDateRows(candidates []DateRow, existing map[string]int64) []DateRow {
	var out []DateRow
	for _, row := range candidates {
		if _, ok := existing[isoDate(row.FullDate)]; ok {
			continue
		}
		out = append(out, row)
	}
	return out
}

// NewItemRows returns the candidates whose item_code is absent from the
// persisted key set, preserving candidate order.
func NewItemRows(candidates []ItemRow, existing map[string]int64) []ItemRow {
	var out []ItemRow
	for _, row := range candidates {
		if _, ok := existing[row.ItemCode]; ok {
			continue
		}
		out = append(out, row)
	}
	return out
}

// NewBuyerRows returns the candidates whose buyer_id is absent from the
// persisted key set, preserving candidate order.
func NewBuyerRows(candidates []BuyerRow, existing map[int64]int64) []BuyerRow {
	var out []BuyerRow
	for _, row := range candidates {
		if _, ok := existing[row.BuyerID]; ok {
			continue
		}
		out = append(out, row)
	}
	return out
}
