package ingest

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/skywatch/internal/registry"
)

// Notifier is told about finished runs. Implementations must not block the
// pipeline; send failures are logged and dropped.
type Notifier interface {
	Send(ctx context.Context, r *Run) error
}

// Pipeline fetches raw batches from a feed and merges them into the registry.
// It performs no automatic retries: a failed run stays failed, and retrying
// means calling Run again, which always creates a fresh IngestionRun.
type Pipeline struct {
	runs         RunStore
	reg          *registry.Registry
	feed         FeedSource
	logger       log.Logger
	metrics      *registry.Metrics
	notifier     Notifier
	fetchTimeout time.Duration
}

// NewPipeline creates an ingestion pipeline. fetchTimeout bounds every feed
// call; notifier may be nil.
func NewPipeline(runs RunStore, reg *registry.Registry, feed FeedSource, logger log.Logger, metrics *registry.Metrics, notifier Notifier, fetchTimeout time.Duration) *Pipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		runs:         runs,
		reg:          reg,
		feed:         feed,
		logger:       logger,
		metrics:      metrics,
		notifier:     notifier,
		fetchTimeout: fetchTimeout,
	}
}

// Run executes one ingestion run: fetch, validate+merge, finalize. A
// transport failure fails the run before any merge happens. A merge failure
// after partial success still reports the partial imported count, since
// committed merges are not rolled back. The returned error covers run
// bookkeeping only; fetch and merge failures land in the run record.
func (p *Pipeline) Run(ctx context.Context, apiKey string) (*Run, error) {
	run := &Run{
		ID:        ulid.Make().String(),
		StartedAt: time.Now().UTC(),
		Outcome:   OutcomePending,
	}
	if err := p.runs.PutRun(ctx, run); err != nil {
		return nil, err
	}

	L := p.logger.With("run_id", run.ID)
	L.Info(ctx, "ingestion run started")

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	raws, err := p.feed.Fetch(fetchCtx, apiKey)
	cancel()
	if err != nil {
		L.Error(ctx, err, "feed fetch failed")
		// A fetch failure may be the caller's cancellation; the run record
		// still has to reach its terminal state.
		return p.finalize(context.WithoutCancel(ctx), run, OutcomeFailed, 0, err.Error())
	}

	// Caller cancellation is honored up to here; once merging starts,
	// per-record commits stand.
	if err := ctx.Err(); err != nil {
		L.Warn(ctx, "run cancelled before merge", "error", err)
		return p.finalize(context.WithoutCancel(ctx), run, OutcomeFailed, 0, err.Error())
	}

	res, mergeErr := p.reg.IngestBatch(ctx, raws)
	imported := 0
	if res != nil {
		imported = res.Accepted
	}
	if mergeErr != nil {
		L.Error(ctx, mergeErr, "merge failed", "imported", imported)
		return p.finalize(context.WithoutCancel(ctx), run, OutcomeFailed, imported, mergeErr.Error())
	}

	L.Info(ctx, "ingestion run complete",
		"imported", imported, "rejected", res.Rejected, "fetched", len(raws))
	return p.finalize(ctx, run, OutcomeSuccess, imported, "")
}

// finalize sets the run's outcome exactly once and records metrics.
func (p *Pipeline) finalize(ctx context.Context, run *Run, outcome Outcome, imported int, detail string) (*Run, error) {
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Outcome = outcome
	run.AlertsImported = imported
	run.ErrorDetail = detail

	if err := p.runs.PutRun(ctx, run); err != nil {
		p.logger.Error(ctx, err, "failed to persist run outcome", "run_id", run.ID)
		return run, err
	}

	if p.metrics != nil {
		p.metrics.RunsTotal.WithLabelValues(string(outcome)).Inc()
		p.metrics.RunDuration.WithLabelValues(string(outcome)).Observe(now.Sub(run.StartedAt).Seconds())
		p.metrics.RunAlertsMerged.Observe(float64(imported))
	}

	if p.notifier != nil {
		if err := p.notifier.Send(ctx, run); err != nil {
			p.logger.Warn(ctx, "run notification failed", "run_id", run.ID, "error", err)
		}
	}

	return run, nil
}

// GetRun retrieves a run record by id.
func (p *Pipeline) GetRun(ctx context.Context, id string) (*Run, bool, error) {
	return p.runs.GetRun(ctx, id)
}

// ListRuns returns all recorded runs.
func (p *Pipeline) ListRuns(ctx context.Context) ([]*Run, error) {
	return p.runs.ListRuns(ctx)
}
