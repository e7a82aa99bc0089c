package warehouse

// ddl.go holds the star-schema DDL. EnsureSchema is idempotent so repeated
// runs against the same warehouse are safe; it never alters existing tables
// (schema migration is out of scope).

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var tableDDL = []struct {
	name string
	ddl  string
}{
	{"dim_date", `CREATE TABLE IF NOT EXISTS %s (
		date_key   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		full_date  DATE NOT NULL UNIQUE,
		year       INT NOT NULL,
		quarter    INT NOT NULL,
		month      INT NOT NULL,
		day        INT NOT NULL,
		is_weekend BOOLEAN NOT NULL
	)`},
	{"dim_item", `CREATE TABLE IF NOT EXISTS %s (
		item_key  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		item_code TEXT NOT NULL UNIQUE,
		item_id   BIGINT NOT NULL,
		item_name TEXT NOT NULL,
		category  TEXT NOT NULL,
		version   TEXT NOT NULL
	)`},
	{"dim_buyer", `CREATE TABLE IF NOT EXISTS %s (
		buyer_key BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		buyer_id  BIGINT NOT NULL UNIQUE
	)`},
	{factTable, `CREATE TABLE IF NOT EXISTS %s (
		fact_key             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		date_key             BIGINT NOT NULL,
		item_key             BIGINT NOT NULL,
		buyer_key            BIGINT NOT NULL,
		transaction_id       BIGINT NOT NULL,
		final_quantity       BIGINT NOT NULL,
		total_revenue        DOUBLE PRECISION NOT NULL,
		price_reductions     DOUBLE PRECISION NOT NULL,
		refunds              DOUBLE PRECISION NOT NULL,
		final_revenue        DOUBLE PRECISION NOT NULL,
		sales_tax            DOUBLE PRECISION NOT NULL,
		overall_revenue      DOUBLE PRECISION NOT NULL,
		refunded_item_count  BIGINT NOT NULL,
		purchased_item_count BIGINT NOT NULL
	)`},
	{auditTable, `CREATE TABLE IF NOT EXISTS %s (
		run_id        UUID PRIMARY KEY,
		project       TEXT NOT NULL,
		version       TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ NOT NULL,
		raw_rows      INT NOT NULL,
		accepted_rows INT NOT NULL,
		rejected_rows INT NOT NULL,
		new_dates     INT NOT NULL,
		new_items     INT NOT NULL,
		new_buyers    INT NOT NULL,
		fact_rows     INT NOT NULL
	)`},
}

// EnsureSchema creates the schema and the warehouse tables if absent.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	schema := pgx.Identifier{p.schema}.Sanitize()
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("creating schema %s: %w", p.schema, err)
	}
	for _, t := range tableDDL {
		qualified := pgx.Identifier{p.schema, t.name}.Sanitize()
		if _, err := p.pool.Exec(ctx, fmt.Sprintf(t.ddl, qualified)); err != nil {
			return fmt.Errorf("creating table %s: %w", t.name, err)
		}
	}
	return nil
}
