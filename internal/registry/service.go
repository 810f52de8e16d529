package registry

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// defaultLockWait bounds how long a write waits for a concurrent write on the
// same alert before giving up with ConflictTimeoutError.
const defaultLockWait = 5 * time.Second

// Rejection explains why one record in a batch was not ingested.
type Rejection struct {
	NameID string `json:"name_id"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// IngestResult summarizes one batch ingestion.
type IngestResult struct {
	Accepted   int         `json:"accepted"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

// Registry is the business boundary for alert operations. Reads are fully
// concurrent; writes serialize per alert identity through keyed locks.
type Registry struct {
	store    Store
	logger   log.Logger
	metrics  *Metrics
	locks    *keyedLocks
	lockWait time.Duration
}

// NewRegistry creates a new alert registry.
func NewRegistry(store Store, logger log.Logger, metrics *Metrics) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	return &Registry{
		store:    store,
		logger:   logger,
		metrics:  metrics,
		locks:    newKeyedLocks(),
		lockWait: defaultLockWait,
	}
}

// IngestBatch validates and merges a batch of raw feed records. Invalid
// records are rejected individually and never abort the batch. Records whose
// name_id already exists update the existing alert (last write wins) without
// touching its status; new records get a fresh id and start as New.
//
// This is the only write path that creates alert identities.
func (r *Registry) IngestBatch(ctx context.Context, raws []RawAlert) (*IngestResult, error) {
	res := &IngestResult{}

	for _, raw := range raws {
		et, ts, verr := validate(raw)
		if verr != nil {
			res.Rejected++
			res.Rejections = append(res.Rejections, Rejection{
				NameID: verr.NameID,
				Field:  verr.Field,
				Reason: verr.Reason,
			})
			if r.metrics != nil {
				r.metrics.IngestedTotal.WithLabelValues("rejected").Inc()
			}
			r.logger.Warn(ctx, "rejected alert record",
				"name_id", verr.NameID, "field", verr.Field, "reason", verr.Reason)
			continue
		}

		if err := r.mergeOne(ctx, raw, et, ts); err != nil {
			return res, err
		}
		res.Accepted++
	}

	r.logger.Info(ctx, "batch ingested", "accepted", res.Accepted, "rejected", res.Rejected)
	return res, nil
}

// mergeOne upserts a single validated record under its name_id lock. Updates
// to an existing alert additionally take that alert's per-id scope, the same
// one TransitionStatus holds, so an ingestion update and a concurrent
// transition on the same alert always serialize.
func (r *Registry) mergeOne(ctx context.Context, raw RawAlert, et EventType, ts time.Time) error {
	release, err := r.locks.acquire(ctx, "name:"+raw.NameID, r.lockWait)
	if err != nil {
		if errors.Is(err, errLockTimeout) {
			return &ConflictTimeoutError{AlertID: raw.NameID}
		}
		return err
	}
	defer release()

	existing, ok, err := r.store.GetByNameID(ctx, raw.NameID)
	if err != nil {
		return err
	}

	if !ok {
		a := &Alert{
			ID:          ulid.Make().String(),
			NameID:      raw.NameID,
			EventType:   et,
			Timestamp:   ts,
			RA:          raw.RA,
			Dec:         raw.Dec,
			Source:      raw.Source,
			Description: raw.Description,
			Status:      StatusNew,
			Confidence:  raw.Confidence,
		}
		if r.metrics != nil {
			r.metrics.IngestedTotal.WithLabelValues("accepted").Inc()
		}
		return r.store.Put(ctx, a)
	}

	releaseID, err := r.locks.acquire(ctx, "id:"+existing.ID, r.lockWait)
	if err != nil {
		if errors.Is(err, errLockTimeout) {
			return &ConflictTimeoutError{AlertID: existing.ID}
		}
		return err
	}
	defer releaseID()

	// Re-read under the per-id scope: a transition may have committed between
	// the name_id lookup and here, and its status must not be clobbered.
	a, ok, err := r.store.Get(ctx, existing.ID)
	if err != nil {
		return err
	}
	if !ok {
		a = existing
	}

	// Identity, detection time, confidence, and the reviewed status survive
	// re-ingestion; descriptive fields take the new values.
	a.EventType = et
	a.RA = raw.RA
	a.Dec = raw.Dec
	a.Source = raw.Source
	a.Description = raw.Description
	if r.metrics != nil {
		r.metrics.IngestedTotal.WithLabelValues("updated").Inc()
	}
	return r.store.Put(ctx, a)
}

// TransitionStatus moves an alert to newStatus, appending exactly one audit
// record atomically with the status update. Self-transitions fail with
// InvalidTransitionError and leave no audit entry. Concurrent transitions on
// the same alert serialize; a bounded wait that elapses surfaces as
// ConflictTimeoutError rather than deadlocking.
func (r *Registry) TransitionStatus(ctx context.Context, alertID string, newStatus Status, actor string) (*StatusChangeRecord, error) {
	if _, err := ParseStatus(string(newStatus)); err != nil {
		return nil, &ValidationError{NameID: alertID, Field: "status", Reason: err.Error()}
	}

	release, err := r.locks.acquire(ctx, "id:"+alertID, r.lockWait)
	if err != nil {
		if errors.Is(err, errLockTimeout) {
			if r.metrics != nil {
				r.metrics.TransitionsTotal.WithLabelValues("conflict_timeout").Inc()
			}
			return nil, &ConflictTimeoutError{AlertID: alertID}
		}
		return nil, err
	}
	defer release()

	a, ok, err := r.store.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if r.metrics != nil {
			r.metrics.TransitionsTotal.WithLabelValues("not_found").Inc()
		}
		return nil, ErrNotFound
	}

	if a.Status == newStatus {
		if r.metrics != nil {
			r.metrics.TransitionsTotal.WithLabelValues("invalid").Inc()
		}
		return nil, &InvalidTransitionError{AlertID: alertID, From: a.Status, To: newStatus}
	}

	rec := &StatusChangeRecord{
		AlertID:   alertID,
		From:      a.Status,
		To:        newStatus,
		ChangedAt: time.Now().UTC(),
		Actor:     actor,
	}
	a.Status = newStatus

	if err := r.store.RecordTransition(ctx, a, rec); err != nil {
		if r.metrics != nil {
			r.metrics.TransitionsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.TransitionsTotal.WithLabelValues("ok").Inc()
	}
	r.logger.Info(ctx, "status transition",
		"alert_id", alertID, "from", rec.From, "to", rec.To, "actor", actor)
	return rec, nil
}

// Get retrieves a single alert by id.
func (r *Registry) Get(ctx context.Context, id string) (*Alert, error) {
	a, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Query returns the alerts matching filter, ordered per s. It never mutates
// state and is safe for unlimited concurrent callers.
func (r *Registry) Query(ctx context.Context, filter Filter, s Sort) ([]*Alert, error) {
	start := time.Now()
	alerts, err := r.store.Scan(ctx, filter.matches)
	if err != nil {
		return nil, err
	}
	sortAlerts(alerts, s)
	if r.metrics != nil {
		r.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	return alerts, nil
}

// AuditTrail returns the alert's status change records, oldest first.
func (r *Registry) AuditTrail(ctx context.Context, alertID string) ([]StatusChangeRecord, error) {
	if _, ok, err := r.store.Get(ctx, alertID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}
	return r.store.AuditTrail(ctx, alertID)
}
