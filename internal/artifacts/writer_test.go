package artifacts

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/salesmart/etl/internal/etl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readArtifact(t *testing.T, dir, name string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriterSavesCleanedRecords(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(filepath.Join(dir, "processed")) // not pre-created

	records := []etl.RawRecord{
		{
			TransactionID: pgtype.Int8{Int64: 1001, Valid: true},
			BuyerID:       pgtype.Int8{Int64: 55, Valid: true},
			ItemID:        pgtype.Int8{},
			ItemCode:      "SKU-A",
			ItemName:      "Widget",
			Category:      "Electronics",
			Version:       "V2",
			Date:          pgtype.Date{Time: time.Date(2025, time.November, 2, 0, 0, 0, 0, time.UTC), Valid: true},
			FinalQuantity: 10,
			FinalRevenue:  900.5,
		},
	}
	require.NoError(t, w.SaveCleaned(records))

	rows := readArtifact(t, filepath.Join(dir, "processed"), "orders_cleaned.csv")
	require.Len(t, rows, 2)
	assert.Equal(t, "transaction_id", rows[0][0])

	got := rows[1]
	assert.Equal(t, "1001", got[0])
	assert.Equal(t, "55", got[1])
	assert.Equal(t, "", got[2], "null identifiers render as empty cells")
	assert.Equal(t, "SKU-A", got[3])
	assert.Equal(t, "2025-11-02", got[7])
	assert.Equal(t, "900.5", got[12])
}

func TestWriterSavesDimensions(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	require.NoError(t, w.SaveDateDimension([]etl.DateRow{
		{FullDate: time.Date(2025, time.November, 2, 0, 0, 0, 0, time.UTC), Year: 2025, Quarter: 4, Month: 11, Day: 2, IsWeekend: true},
	}))
	require.NoError(t, w.SaveItemDimension([]etl.ItemRow{
		{ItemCode: "SKU-A", ItemID: 7, ItemName: "Widget", Category: "Electronics", Version: "V2"},
	}))
	require.NoError(t, w.SaveBuyerDimension([]etl.BuyerRow{{BuyerID: 55}}))

	dates := readArtifact(t, dir, "dim_date.csv")
	require.Len(t, dates, 2)
	assert.Equal(t, []string{"2025-11-02", "2025", "4", "11", "2", "true"}, dates[1])

	items := readArtifact(t, dir, "dim_item.csv")
	require.Len(t, items, 2)
	assert.Equal(t, []string{"SKU-A", "7", "Widget", "Electronics", "V2"}, items[1])

	buyers := readArtifact(t, dir, "dim_buyer.csv")
	require.Len(t, buyers, 2)
	assert.Equal(t, []string{"55"}, buyers[1])
}

func TestWriterSavesRejectedRowsVerbatim(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	header := []string{"txn_id", "order_date", "net"}
	records := []etl.RawRecord{
		{Raw: []string{"T-9", "bad-date", "oops"}},
	}
	require.NoError(t, w.SaveRejected(header, records))

	rows := readArtifact(t, dir, "rejected_rows.csv")
	require.Len(t, rows, 2)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"T-9", "bad-date", "oops"}, rows[1])
}

func TestWriterOverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	require.NoError(t, w.SaveValidated([]etl.RawRecord{{ItemCode: "A"}, {ItemCode: "B"}}))
	require.NoError(t, w.SaveValidated([]etl.RawRecord{{ItemCode: "C"}}))

	rows := readArtifact(t, dir, "validated_fact_data.csv")
	require.Len(t, rows, 2)
	assert.Equal(t, "C", rows[1][3])
}
