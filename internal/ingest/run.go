// Package ingest pulls alert batches from an external feed and merges them
// into the registry. Each invocation is one IngestionRun with an append-only
// outcome record; runs are never resumed or merged together.
package ingest

import (
	"context"
	"time"
)

// Outcome is the final state of an ingestion run.
type Outcome string

const (
	// OutcomePending means the run is still in flight
	OutcomePending Outcome = "Pending"

	// OutcomeSuccess means fetch and merge both completed
	OutcomeSuccess Outcome = "Success"

	// OutcomeFailed means the run stopped on a fetch or merge error
	OutcomeFailed Outcome = "Failed"
)

// Run records one execution of the pipeline. Once Outcome leaves Pending it
// never changes again.
type Run struct {
	ID             string     `json:"run_id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Outcome        Outcome    `json:"outcome"`
	AlertsImported int        `json:"alerts_imported"`
	ErrorDetail    string     `json:"error_detail,omitempty"`
}

// RunStore is the persistence interface for ingestion runs.
type RunStore interface {
	PutRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, bool, error)
	ListRuns(ctx context.Context) ([]*Run, error)
}
