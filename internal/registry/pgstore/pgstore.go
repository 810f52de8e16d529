// Package pgstore provides a PostgreSQL implementation of registry.Store and
// ingest.RunStore.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/skywatch/internal/ingest"
	"github.com/linnemanlabs/skywatch/internal/registry"
)

var tracer = otel.Tracer("github.com/linnemanlabs/skywatch/internal/registry/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts, audit records, and ingestion runs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, name_id, event_type, detected_at, ra, dec, source, description, status, confidence`

// Get retrieves an alert by ID.
func (s *Store) Get(ctx context.Context, id string) (*registry.Alert, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlertRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// GetByNameID retrieves an alert by its designation.
func (s *Store) GetByNameID(ctx context.Context, nameID string) (*registry.Alert, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByNameID", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE name_id = $1`
	a, err := scanAlertRow(s.pool.QueryRow(ctx, query, nameID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if a == nil {
		return nil, false, nil
	}
	return a, true, nil
}

// Put inserts an alert or updates an existing row's descriptive fields. The
// conflict update deliberately leaves status alone; status only moves through
// RecordTransition.
func (s *Store) Put(ctx context.Context, a *registry.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			event_type = EXCLUDED.event_type,
			ra = EXCLUDED.ra,
			dec = EXCLUDED.dec,
			source = EXCLUDED.source,
			description = EXCLUDED.description,
			confidence = EXCLUDED.confidence`
	_, err := s.pool.Exec(ctx, query,
		a.ID, a.NameID, string(a.EventType), a.Timestamp, a.RA, a.Dec,
		a.Source, a.Description, string(a.Status), a.Confidence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("put alert: %w", err)
	}
	return nil
}

// List returns all alerts. Row order is unspecified.
func (s *Store) List(ctx context.Context) ([]*registry.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []*registry.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}

// Scan returns all alerts satisfying keep. The predicate runs client-side;
// the registry's filters are cheap relative to a full result decode, so no
// WHERE pushdown is attempted here.
func (s *Store) Scan(ctx context.Context, keep func(*registry.Alert) bool) ([]*registry.Alert, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// RecordTransition applies the status update and appends the audit record in
// one transaction.
func (s *Store) RecordTransition(ctx context.Context, a *registry.Alert, rec *registry.StatusChangeRecord) error {
	ctx, span := tracer.Start(ctx, "pgstore.RecordTransition", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE alerts SET status = $2 WHERE id = $1`, a.ID, string(a.Status))
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update status: alert %s missing", a.ID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO status_changes (alert_id, from_status, to_status, changed_at, actor)
			 VALUES ($1, $2, $3, $4, $5)`,
			rec.AlertID, string(rec.From), string(rec.To), rec.ChangedAt, rec.Actor)
		if err != nil {
			return fmt.Errorf("append audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// AuditTrail returns the alert's status change records, oldest first.
func (s *Store) AuditTrail(ctx context.Context, alertID string) ([]registry.StatusChangeRecord, error) {
	ctx, span := tracer.Start(ctx, "pgstore.AuditTrail", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT alert_id, from_status, to_status, changed_at, actor
		 FROM status_changes WHERE alert_id = $1 ORDER BY id`, alertID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("audit trail: %w", err)
	}
	defer rows.Close()

	var out []registry.StatusChangeRecord
	for rows.Next() {
		var rec registry.StatusChangeRecord
		var from, to string
		if err := rows.Scan(&rec.AlertID, &from, &to, &rec.ChangedAt, &rec.Actor); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("audit trail scan: %w", err)
		}
		rec.From = registry.Status(from)
		rec.To = registry.Status(to)
		rec.ChangedAt = rec.ChangedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("audit trail: %w", err)
	}
	return out, nil
}

// PutRun inserts or overwrites an ingestion run record.
func (s *Store) PutRun(ctx context.Context, r *ingest.Run) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutRun", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `
		INSERT INTO ingestion_runs (run_id, started_at, completed_at, outcome, alerts_imported, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			completed_at = EXCLUDED.completed_at,
			outcome = EXCLUDED.outcome,
			alerts_imported = EXCLUDED.alerts_imported,
			error_detail = EXCLUDED.error_detail`
	_, err := s.pool.Exec(ctx, query,
		r.ID, r.StartedAt, r.CompletedAt, string(r.Outcome), r.AlertsImported, r.ErrorDetail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("put run: %w", err)
	}
	return nil
}

// GetRun retrieves an ingestion run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*ingest.Run, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetRun", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	r, err := scanRunRow(s.pool.QueryRow(ctx,
		`SELECT run_id, started_at, completed_at, outcome, alerts_imported, error_detail
		 FROM ingestion_runs WHERE run_id = $1`, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]*ingest.Run, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListRuns", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT run_id, started_at, completed_at, outcome, alerts_imported, error_detail
		 FROM ingestion_runs ORDER BY started_at`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*ingest.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAlertRow scans a single-row query, mapping no-rows to nil.
func scanAlertRow(row pgx.Row) (*registry.Alert, error) {
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func scanAlert(row rowScanner) (*registry.Alert, error) {
	var a registry.Alert
	var et, st string
	if err := row.Scan(&a.ID, &a.NameID, &et, &a.Timestamp, &a.RA, &a.Dec,
		&a.Source, &a.Description, &st, &a.Confidence); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	a.EventType = registry.EventType(et)
	a.Status = registry.Status(st)
	a.Timestamp = a.Timestamp.UTC()
	return &a, nil
}

// scanRunRow scans a single-row query, mapping no-rows to nil.
func scanRunRow(row pgx.Row) (*ingest.Run, error) {
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func scanRun(row rowScanner) (*ingest.Run, error) {
	var r ingest.Run
	var outcome string
	var completed *time.Time
	if err := row.Scan(&r.ID, &r.StartedAt, &completed, &outcome, &r.AlertsImported, &r.ErrorDetail); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Outcome = ingest.Outcome(outcome)
	r.StartedAt = r.StartedAt.UTC()
	if completed != nil {
		c := completed.UTC()
		r.CompletedAt = &c
	}
	return &r, nil
}
