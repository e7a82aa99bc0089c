// Package warehouse implements the PostgreSQL storage collaborator. All
// writes of one run happen inside a single transaction; dimension reads made
// in that transaction observe its own inserts, which is what fact resolution
// relies on.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salesmart/etl/internal/config"
	"github.com/salesmart/etl/internal/etl"
)

// Warehouse table names. The dimension tables come from etl.Dimension; these
// are the rest.
const (
	factTable  = "fact_sales"
	auditTable = "etl_run_audit"
)

// Postgres is a pgx-backed etl.Store.
type Postgres struct {
	pool      *pgxpool.Pool
	schema    string
	chunkSize int
}

// Connect opens a pool against the configured warehouse and verifies the
// connection.
func Connect(ctx context.Context, cfg *config.Config) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.Postgres.URL())
	if err != nil {
		return nil, fmt.Errorf("opening warehouse pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging warehouse: %w", err)
	}
	return New(pool, cfg.Postgres.Schema, cfg.Pipeline.ChunkSize), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, schema string, chunkSize int) *Postgres {
	return &Postgres{pool: pool, schema: schema, chunkSize: chunkSize}
}

// Close releases the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Begin starts the transaction scoping one persist stage.
func (p *Postgres) Begin(ctx context.Context) (etl.Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx, schema: p.schema, chunkSize: p.chunkSize}, nil
}

type pgTx struct {
	tx        pgx.Tx
	schema    string
	chunkSize int
}

// table returns the quoted, schema-qualified name.
func (t *pgTx) table(name string) string {
	return pgx.Identifier{t.schema, name}.Sanitize()
}

func (t *pgTx) dimTable(dim etl.Dimension) (string, error) {
	name, err := dim.Table()
	if err != nil {
		return "", err
	}
	return t.table(name), nil
}

func (t *pgTx) DateKeys(ctx context.Context) (map[string]int64, error) {
	table, err := t.dimTable(etl.DimensionDate)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, fmt.Sprintf("SELECT full_date, date_key FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	keys := map[string]int64{}
	for rows.Next() {
		var d pgtype.Date
		var key int64
		if err := rows.Scan(&d, &key); err != nil {
			return nil, err
		}
		keys[d.Time.Format("2006-01-02")] = key
	}
	return keys, rows.Err()
}

func (t *pgTx) ItemKeys(ctx context.Context) (map[string]int64, error) {
	table, err := t.dimTable(etl.DimensionItem)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, fmt.Sprintf("SELECT item_code, item_key FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	keys := map[string]int64{}
	for rows.Next() {
		var code string
		var key int64
		if err := rows.Scan(&code, &key); err != nil {
			return nil, err
		}
		keys[code] = key
	}
	return keys, rows.Err()
}

func (t *pgTx) BuyerKeys(ctx context.Context) (map[int64]int64, error) {
	table, err := t.dimTable(etl.DimensionBuyer)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, fmt.Sprintf("SELECT buyer_id, buyer_key FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	keys := map[int64]int64{}
	for rows.Next() {
		var id, key int64
		if err := rows.Scan(&id, &key); err != nil {
			return nil, err
		}
		keys[id] = key
	}
	return keys, rows.Err()
}

func (t *pgTx) InsertDates(ctx context.Context, rows []etl.DateRow) error {
	table, err := t.dimTable(etl.DimensionDate)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(
		"INSERT INTO %s (full_date, year, quarter, month, day, is_weekend) VALUES ($1, $2, $3, $4, $5, $6)",
		table)
	return t.sendChunks(ctx, len(rows), func(b *pgx.Batch, i int) {
		r := rows[i]
		b.Queue(sql,
			pgtype.Date{Time: r.FullDate, Valid: true},
			r.Year, r.Quarter, r.Month, r.Day, r.IsWeekend)
	})
}

func (t *pgTx) InsertItems(ctx context.Context, rows []etl.ItemRow) error {
	table, err := t.dimTable(etl.DimensionItem)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf(
		"INSERT INTO %s (item_code, item_id, item_name, category, version) VALUES ($1, $2, $3, $4, $5)",
		table)
	return t.sendChunks(ctx, len(rows), func(b *pgx.Batch, i int) {
		r := rows[i]
		b.Queue(sql, r.ItemCode, r.ItemID, r.ItemName, r.Category, r.Version)
	})
}

func (t *pgTx) InsertBuyers(ctx context.Context, rows []etl.BuyerRow) error {
	table, err := t.dimTable(etl.DimensionBuyer)
	if err != nil {
		return err
	}
	sql := fmt.Sprintf("INSERT INTO %s (buyer_id) VALUES ($1)", table)
	return t.sendChunks(ctx, len(rows), func(b *pgx.Batch, i int) {
		b.Queue(sql, rows[i].BuyerID)
	})
}

func (t *pgTx) InsertFacts(ctx context.Context, rows []etl.FactRow) error {
	sql := fmt.Sprintf(`INSERT INTO %s
		(date_key, item_key, buyer_key, transaction_id,
		 final_quantity, total_revenue, price_reductions, refunds,
		 final_revenue, sales_tax, overall_revenue,
		 refunded_item_count, purchased_item_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.table(factTable))
	return t.sendChunks(ctx, len(rows), func(b *pgx.Batch, i int) {
		r := rows[i]
		b.Queue(sql,
			r.DateKey, r.ItemKey, r.BuyerKey, r.TransactionID,
			r.FinalQuantity, r.TotalRevenue, r.PriceReductions, r.Refunds,
			r.FinalRevenue, r.SalesTax, r.OverallRevenue,
			r.RefundedItemCount, r.PurchasedItemCount)
	})
}

func (t *pgTx) RecordRun(ctx context.Context, audit etl.RunAudit) error {
	sql := fmt.Sprintf(`INSERT INTO %s
		(run_id, project, version, started_at, finished_at,
		 raw_rows, accepted_rows, rejected_rows,
		 new_dates, new_items, new_buyers, fact_rows)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.table(auditTable))
	_, err := t.tx.Exec(ctx, sql,
		audit.RunID, audit.Project, audit.Version,
		timestamptz(audit.StartedAt), timestamptz(audit.FinishedAt),
		audit.RawRows, audit.AcceptedRows, audit.RejectedRows,
		audit.NewDates, audit.NewItems, audit.NewBuyers, audit.FactRows)
	if err != nil {
		return fmt.Errorf("inserting run audit: %w", err)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// sendChunks queues n statements in chunkSize batches and sends each batch
// over the transaction's connection.
func (t *pgTx) sendChunks(ctx context.Context, n int, queue func(b *pgx.Batch, i int)) error {
	for _, r := range chunkRanges(n, t.chunkSize) {
		b := &pgx.Batch{}
		for i := r[0]; i < r[1]; i++ {
			queue(b, i)
		}
		if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
			return err
		}
	}
	return nil
}

// chunkRanges splits [0,n) into ordered half-open [start,end) ranges of at
// most size elements.
func chunkRanges(n, size int) [][2]int {
	if size <= 0 {
		size = 1
	}
	ranges := make([][2]int, 0, n/size+1)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
