package etl

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// RawRecord is one transaction row after type coercion. Identifiers and the
// transaction date are null-aware: ingestion leaves them invalid (absent)
// when the raw value could not be parsed, never zero. A RawRecord is
// produced once and immutable thereafter.
type RawRecord struct {
	TransactionID pgtype.Int8
	BuyerID       pgtype.Int8
	ItemID        pgtype.Int8
	ItemCode      string
	ItemName      string
	Category      string
	Version       string
	Date          pgtype.Date

	FinalQuantity      int64
	TotalRevenue       float64
	PriceReductions    float64
	Refunds            float64
	FinalRevenue       float64
	SalesTax           float64
	OverallRevenue     float64
	RefundedItemCount  int64
	PurchasedItemCount int64

	// Line is the 1-indexed source line, for audit output.
	Line int

	// Raw holds the original CSV cells so rejected rows can be written back
	// verbatim.
	Raw []string
}

// RecordSet is the output of the ingestion collaborator: the original header
// plus the typed records.
type RecordSet struct {
	Header  []string
	Records []RawRecord
}

// RecordSource supplies the raw transactional export. Implemented by the
// ingest package; tests use in-memory sources.
type RecordSource interface {
	Load(ctx context.Context) (*RecordSet, error)
}

// DateRow is one calendar day of the date dimension.
type DateRow struct {
	FullDate  time.Time
	Year      int
	Quarter   int
	Month     int
	Day       int
	IsWeekend bool
}

// ItemRow is one item dimension candidate, keyed by its natural key ItemCode.
type ItemRow struct {
	ItemCode string
	ItemID   int64
	ItemName string
	Category string
	Version  string
}

// BuyerRow is one buyer dimension candidate.
type BuyerRow struct {
	BuyerID int64
}

// FactRow is a surrogate-keyed sales fact. Field order matches the persisted
// column order: the four key columns first, then the nine measures.
type FactRow struct {
	DateKey       int64
	ItemKey       int64
	BuyerKey      int64
	TransactionID int64

	FinalQuantity      int64
	TotalRevenue       float64
	PriceReductions    float64
	Refunds            float64
	FinalRevenue       float64
	SalesTax           float64
	OverallRevenue     float64
	RefundedItemCount  int64
	PurchasedItemCount int64
}

// DimensionKeys is the current surrogate-key state of the three dimensions,
// read from the warehouse. Keys are assigned by the warehouse; the core only
// ever reads them.
type DimensionKeys struct {
	// Dates maps ISO full_date (2006-01-02) to date_key.
	Dates map[string]int64
	// Items maps item_code to item_key.
	Items map[string]int64
	// Buyers maps buyer_id to buyer_key.
	Buyers map[int64]int64
}

// Store is the warehouse collaborator. A transaction scopes all writes of
// one persist stage so a mid-load failure rolls back as a unit.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx exposes the read/append primitives of the warehouse within one
// transactional scope. Reads observe writes made earlier in the same
// transaction, which is what lets the fact resolver see freshly inserted
// dimension rows.
type Tx interface {
	DateKeys(ctx context.Context) (map[string]int64, error)
	ItemKeys(ctx context.Context) (map[string]int64, error)
	BuyerKeys(ctx context.Context) (map[int64]int64, error)

	InsertDates(ctx context.Context, rows []DateRow) error
	InsertItems(ctx context.Context, rows []ItemRow) error
	InsertBuyers(ctx context.Context, rows []BuyerRow) error
	InsertFacts(ctx context.Context, rows []FactRow) error
	RecordRun(ctx context.Context, audit RunAudit) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RunAudit summarizes one persisted run for the warehouse audit table.
type RunAudit struct {
	RunID      string
	Project    string
	Version    string
	StartedAt  time.Time
	FinishedAt time.Time

	RawRows      int
	AcceptedRows int
	RejectedRows int
	NewDates     int
	NewItems     int
	NewBuyers    int
	FactRows     int
}

// ArtifactSink receives the intermediate CSV artifacts a run produces.
// Implemented by the artifacts package; a nil sink disables artifact output.
type ArtifactSink interface {
	SaveCleaned(records []RawRecord) error
	SaveDateDimension(rows []DateRow) error
	SaveItemDimension(rows []ItemRow) error
	SaveBuyerDimension(rows []BuyerRow) error
	SaveValidated(records []RawRecord) error
	SaveRejected(header []string, records []RawRecord) error
}

// isoDate renders a date the way dimension natural keys are compared.
func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}
