package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/salesmart/etl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testColumnMap() config.ColumnMap {
	return config.ColumnMap{
		Date:               "order_date",
		ItemCode:           "product_code",
		ItemID:             "product_id",
		ItemName:           "product_name",
		Category:           "category",
		Version:            "version",
		BuyerID:            "customer_id",
		TransactionID:      "txn_id",
		FinalQuantity:      "qty",
		TotalRevenue:       "gross",
		PriceReductions:    "discounts",
		Refunds:            "refunds",
		FinalRevenue:       "net",
		SalesTax:           "tax",
		OverallRevenue:     "gross_total",
		RefundedItemCount:  "refunded_qty",
		PurchasedItemCount: "purchased_qty",
	}
}

func writeExport(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func sourceFor(t *testing.T, contents string) *CSVSource {
	t.Helper()
	cfg := &config.Config{
		DataSource: config.DataSourceConfig{
			CSVPath:    writeExport(t, contents),
			Delimiter:  ",",
			DateColumn: "order_date",
			DateLayout: "2006-01-02",
		},
		Columns: testColumnMap(),
	}
	return NewCSVSource(cfg)
}

const exportHeader = "txn_id,order_date,product_code,product_id,product_name,category,version,customer_id,qty,gross,discounts,refunds,net,tax,gross_total,refunded_qty,purchased_qty\n"

func TestCSVSourceLoadsTypedRecords(t *testing.T) {
	src := sourceFor(t, exportHeader+
		"T-1001,2025-11-02,SKU-A,7,widget,Electronics,v2,55,10,\"$1,000.00\",(100.00),0,900.00,90.00,990.00,0,10\n"+
		"n/a,bad-date,SKU-B,,gadget,Home,v1,??,2,40,0,0,40,4,44,0,2\n")

	set, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Records, 2)
	assert.Equal(t, "txn_id", set.Header[0])

	r := set.Records[0]
	assert.Equal(t, int64(1001), r.TransactionID.Int64)
	assert.Equal(t, int64(55), r.BuyerID.Int64)
	assert.Equal(t, int64(7), r.ItemID.Int64)
	assert.Equal(t, "SKU-A", r.ItemCode)
	assert.Equal(t, "widget", r.ItemName)
	require.True(t, r.Date.Valid)
	assert.Equal(t, time.Date(2025, time.November, 2, 0, 0, 0, 0, time.UTC), r.Date.Time)
	assert.Equal(t, int64(10), r.FinalQuantity)
	assert.InDelta(t, 1000.0, r.TotalRevenue, 1e-9)
	assert.InDelta(t, -100.0, r.PriceReductions, 1e-9)
	assert.InDelta(t, 900.0, r.FinalRevenue, 1e-9)
	assert.InDelta(t, 990.0, r.OverallRevenue, 1e-9)
	assert.Equal(t, 2, r.Line)

	// Garbled identifiers and dates come out absent, not zero.
	bad := set.Records[1]
	assert.False(t, bad.TransactionID.Valid)
	assert.False(t, bad.BuyerID.Valid)
	assert.False(t, bad.ItemID.Valid)
	assert.False(t, bad.Date.Valid)
	assert.Equal(t, 3, bad.Line)
}

func TestCSVSourcePreservesRawCells(t *testing.T) {
	src := sourceFor(t, exportHeader+
		"T-1,2025-01-05,A,1,x,y,v1,9,1,10,0,0,10,1,11,0,1\n")

	set, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Records, 1)
	assert.Equal(t, "T-1", set.Records[0].Raw[0])
	assert.Len(t, set.Records[0].Raw, len(set.Header))
}

func TestCSVSourceHeaderMatchingIsCaseInsensitive(t *testing.T) {
	upper := "TXN_ID,Order_Date,PRODUCT_CODE,product_id,product_name,category,version,customer_id,qty,gross,discounts,refunds,net,tax,gross_total,refunded_qty,purchased_qty\n"
	src := sourceFor(t, upper+"T-1,2025-01-05,A,1,x,y,v1,9,1,10,0,0,10,1,11,0,1\n")

	set, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, set.Records, 1)
}

func TestCSVSourceSkipsByteOrderMark(t *testing.T) {
	src := sourceFor(t, "\xEF\xBB\xBF"+exportHeader+
		"T-1,2025-01-05,A,1,x,y,v1,9,1,10,0,0,10,1,11,0,1\n")

	set, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Records, 1)
	assert.True(t, set.Records[0].TransactionID.Valid)
}

func TestCSVSourceMissingMappedColumns(t *testing.T) {
	src := sourceFor(t, "txn_id,order_date\nT-1,2025-01-05\n")

	_, err := src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mapped columns")
	assert.Contains(t, err.Error(), "product_code")
}

func TestCSVSourceEmptyFile(t *testing.T) {
	src := sourceFor(t, "")
	_, err := src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestCSVSourceMissingFile(t *testing.T) {
	cfg := &config.Config{
		DataSource: config.DataSourceConfig{CSVPath: filepath.Join(t.TempDir(), "absent.csv"), DateLayout: "2006-01-02"},
		Columns:    testColumnMap(),
	}
	_, err := NewCSVSource(cfg).Load(context.Background())
	require.Error(t, err)
}

func TestCSVSourceCustomDelimiter(t *testing.T) {
	semiHeader := "txn_id;order_date;product_code;product_id;product_name;category;version;customer_id;qty;gross;discounts;refunds;net;tax;gross_total;refunded_qty;purchased_qty\n"
	cfg := &config.Config{
		DataSource: config.DataSourceConfig{
			CSVPath:    writeExport(t, semiHeader+"T-1;2025-01-05;A;1;x;y;v1;9;1;10;0;0;10;1;11;0;1\n"),
			Delimiter:  ";",
			DateLayout: "2006-01-02",
		},
		Columns: testColumnMap(),
	}

	set, err := NewCSVSource(cfg).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Records, 1)
	assert.Equal(t, int64(1), set.Records[0].ItemID.Int64)
}
