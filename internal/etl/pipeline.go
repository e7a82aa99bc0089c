package etl

// pipeline.go sequences the core components as a state machine:
//
//	Loaded → Cleaned → Dimensioned → Validated →
//	    (DryRunComplete | Reconciled → Resolved → Persisted)
//
// Any fatal component error moves the pipeline to Failed and aborts without
// further writes. The persist stage runs inside a single warehouse
// transaction, acquired at its start and released (commit or rollback) on
// every exit path; the dry-run path never acquires it at all.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/salesmart/etl/internal/config"
)

// State is the orchestrator's current stage.
type State string

// Pipeline states, in transition order.
const (
	StateCreated        State = "created"
	StateLoaded         State = "loaded"
	StateCleaned        State = "cleaned"
	StateDimensioned    State = "dimensioned"
	StateValidated      State = "validated"
	StateDryRunComplete State = "dry_run_complete"
	StateReconciled     State = "reconciled"
	StateResolved       State = "resolved"
	StatePersisted      State = "persisted"
	StateFailed         State = "failed"
)

// Summary reports the artifact sizes of one run.
type Summary struct {
	RunID string
	State State

	RawRows      int
	DateRows     int
	ItemRows     int
	BuyerRows    int
	AcceptedRows int
	RejectedRows int

	// Persist-stage counts; zero on dry runs.
	NewDates  int
	NewItems  int
	NewBuyers int
	FactRows  int
}

// Pipeline orchestrates one batch load. Construct with New and call Run
// exactly once; a Pipeline is not reusable across runs.
type Pipeline struct {
	cfg      *config.Config
	source   RecordSource
	store    Store
	sink     ArtifactSink
	rep      Reporter
	canon    *Canonicalizer
	strategy ItemStrategy
	runID    string
	state    State
}

// Option adjusts a pipeline at construction time.
type Option func(*Pipeline)

// WithRunID overrides the generated run identifier, letting callers stamp
// logs and the audit record with the same id.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// New builds a pipeline from its collaborators. store may be nil when the
// configuration requests a dry run; sink may be nil to disable artifact
// output.
func New(cfg *config.Config, source RecordSource, store Store, sink ArtifactSink, rep Reporter, opts ...Option) (*Pipeline, error) {
	strategy, err := ItemStrategyFor(cfg.Pipeline.Canonicalize.ItemAttributes)
	if err != nil {
		return nil, err
	}
	if !cfg.Pipeline.DryRun && store == nil {
		return nil, fmt.Errorf("a warehouse store is required unless dry_run is set")
	}
	p := &Pipeline{
		cfg:      cfg,
		source:   source,
		store:    store,
		sink:     sink,
		rep:      rep,
		canon:    NewCanonicalizer(cfg.Pipeline.Canonicalize),
		strategy: strategy,
		runID:    uuid.NewString(),
		state:    StateCreated,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunID returns the identifier stamped on this run's logs and audit record.
func (p *Pipeline) RunID() string { return p.runID }

// State returns the stage the pipeline last completed (or Failed).
func (p *Pipeline) State() State { return p.state }

// Run executes the batch. It returns the run summary alongside any fatal
// error; on failure the summary carries the counts computed up to the
// failing stage.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: p.runID, State: StateFailed}
	fail := func(err error) (*Summary, error) {
		p.state = StateFailed
		return sum, err
	}

	// Load.
	set, err := p.source.Load(ctx)
	if err != nil {
		return fail(fmt.Errorf("loading raw data: %w", err))
	}
	p.state = StateLoaded
	sum.RawRows = len(set.Records)
	p.profile(set.Records)

	// Clean.
	cleaned := p.canon.Records(set.Records)
	p.state = StateCleaned
	if p.sink != nil {
		if err := p.sink.SaveCleaned(cleaned); err != nil {
			return fail(fmt.Errorf("saving cleaned artifact: %w", err))
		}
	}

	// Dimension.
	p.rep.Info("generating dimensions")
	dates, err := BuildDateDimension(cleaned, p.cfg.DataSource.DateColumn)
	if err != nil {
		return fail(err)
	}
	items := BuildItemDimension(cleaned, p.strategy, p.rep)
	buyers := BuildBuyerDimension(cleaned, p.rep)
	p.state = StateDimensioned
	sum.DateRows, sum.ItemRows, sum.BuyerRows = len(dates), len(items), len(buyers)
	if p.sink != nil {
		if err := p.sink.SaveDateDimension(dates); err != nil {
			return fail(fmt.Errorf("saving date dimension artifact: %w", err))
		}
		if err := p.sink.SaveItemDimension(items); err != nil {
			return fail(fmt.Errorf("saving item dimension artifact: %w", err))
		}
		if err := p.sink.SaveBuyerDimension(buyers); err != nil {
			return fail(fmt.Errorf("saving buyer dimension artifact: %w", err))
		}
	}

	// Validate.
	validator := &Validator{
		Checks:       p.cfg.Validation.Checks,
		Tolerance:    p.cfg.Validation.Tolerance,
		MaxErrorRate: p.cfg.Validation.MaxErrorRate,
		Reporter:     p.rep,
	}
	accepted, rejected, err := validator.Apply(cleaned)
	if err != nil {
		return fail(err)
	}
	p.state = StateValidated
	sum.AcceptedRows, sum.RejectedRows = len(accepted), len(rejected)
	if p.sink != nil {
		if err := p.sink.SaveValidated(accepted); err != nil {
			return fail(fmt.Errorf("saving validated artifact: %w", err))
		}
		if len(rejected) > 0 {
			if err := p.sink.SaveRejected(set.Header, rejected); err != nil {
				return fail(fmt.Errorf("saving rejected artifact: %w", err))
			}
		}
	}

	if p.cfg.Pipeline.DryRun {
		p.state = StateDryRunComplete
		sum.State = StateDryRunComplete
		p.rep.Info("dry run complete, nothing written to the warehouse",
			"dim_date_rows", len(dates),
			"dim_item_rows", len(items),
			"dim_buyer_rows", len(buyers),
			"validated_fact_rows", len(accepted),
			"rejected_rows", len(rejected),
		)
		return sum, nil
	}

	// Persist stage: one transaction scopes reconciliation, fact resolution
	// and all writes.
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return fail(fmt.Errorf("beginning warehouse transaction: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	// Reconcile: insert-only deltas, fixed order dates, items, buyers.
	newDates, err := p.reconcileDates(ctx, tx, dates)
	if err != nil {
		return fail(err)
	}
	newItems, err := p.reconcileItems(ctx, tx, items)
	if err != nil {
		return fail(err)
	}
	newBuyers, err := p.reconcileBuyers(ctx, tx, buyers)
	if err != nil {
		return fail(err)
	}
	p.state = StateReconciled
	sum.NewDates, sum.NewItems, sum.NewBuyers = newDates, newItems, newBuyers

	// Resolve: re-read the key state so freshly inserted rows participate.
	var keys DimensionKeys
	if keys.Dates, err = tx.DateKeys(ctx); err != nil {
		return fail(fmt.Errorf("reading date keys: %w", err))
	}
	if keys.Items, err = tx.ItemKeys(ctx); err != nil {
		return fail(fmt.Errorf("reading item keys: %w", err))
	}
	if keys.Buyers, err = tx.BuyerKeys(ctx); err != nil {
		return fail(fmt.Errorf("reading buyer keys: %w", err))
	}
	facts := ResolveFacts(accepted, keys, p.rep)
	p.state = StateResolved
	sum.FactRows = len(facts)

	// Persist facts and the run audit record.
	p.rep.Info("loading fact rows", "count", len(facts))
	if err := tx.InsertFacts(ctx, facts); err != nil {
		return fail(fmt.Errorf("inserting fact rows: %w", err))
	}
	if err := tx.RecordRun(ctx, RunAudit{
		RunID:        p.runID,
		Project:      p.cfg.Project.Name,
		Version:      p.cfg.Project.Version,
		StartedAt:    start,
		FinishedAt:   time.Now(),
		RawRows:      sum.RawRows,
		AcceptedRows: sum.AcceptedRows,
		RejectedRows: sum.RejectedRows,
		NewDates:     newDates,
		NewItems:     newItems,
		NewBuyers:    newBuyers,
		FactRows:     len(facts),
	}); err != nil {
		return fail(fmt.Errorf("recording run audit: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("committing warehouse transaction: %w", err))
	}
	committed = true
	p.state = StatePersisted
	sum.State = StatePersisted
	p.rep.Info("etl run persisted",
		"new_dates", newDates,
		"new_items", newItems,
		"new_buyers", newBuyers,
		"fact_rows", len(facts),
		"elapsed", time.Since(start).String(),
	)
	return sum, nil
}

func (p *Pipeline) reconcileDates(ctx context.Context, tx Tx, candidates []DateRow) (int, error) {
	existing, err := tx.DateKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading existing dim_date rows: %w", err)
	}
	delta := NewDateRows(candidates, existing)
	if len(delta) == 0 {
		p.rep.Info("no new dim_date rows to insert")
		return 0, nil
	}
	p.rep.Info("inserting new dim_date rows", "count", len(delta))
	if err := tx.InsertDates(ctx, delta); err != nil {
		return 0, fmt.Errorf("inserting dim_date rows: %w", err)
	}
	return len(delta), nil
}

func (p *Pipeline) reconcileItems(ctx context.Context, tx Tx, candidates []ItemRow) (int, error) {
	existing, err := tx.ItemKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading existing dim_item rows: %w", err)
	}
	delta := NewItemRows(candidates, existing)
	if len(delta) == 0 {
		p.rep.Info("no new dim_item rows to insert")
		return 0, nil
	}
	p.rep.Info("inserting new dim_item rows", "count", len(delta))
	if err := tx.InsertItems(ctx, delta); err != nil {
		return 0, fmt.Errorf("inserting dim_item rows: %w", err)
	}
	return len(delta), nil
}

func (p *Pipeline) reconcileBuyers(ctx context.Context, tx Tx, candidates []BuyerRow) (int, error) {
	existing, err := tx.BuyerKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading existing dim_buyer rows: %w", err)
	}
	delta := NewBuyerRows(candidates, existing)
	if len(delta) == 0 {
		p.rep.Info("no new dim_buyer rows to insert")
		return 0, nil
	}
	p.rep.Info("inserting new dim_buyer rows", "count", len(delta))
	if err := tx.InsertBuyers(ctx, delta); err != nil {
		return 0, fmt.Errorf("inserting dim_buyer rows: %w", err)
	}
	return len(delta), nil
}

// profile logs shape and null counts of the loaded records, mirroring what
// operators want to see first when a load misbehaves.
func (p *Pipeline) profile(records []RawRecord) {
	var nullTxn, nullBuyer, nullItem, nullDate int
	for _, r := range records {
		if !r.TransactionID.Valid {
			nullTxn++
		}
		if !r.BuyerID.Valid {
			nullBuyer++
		}
		if !r.ItemID.Valid {
			nullItem++
		}
		if !r.Date.Valid {
			nullDate++
		}
	}
	p.rep.Info("raw data loaded",
		"rows", len(records),
		"null_transaction_ids", nullTxn,
		"null_buyer_ids", nullBuyer,
		"null_item_ids", nullItem,
		"null_dates", nullDate,
	)
}
