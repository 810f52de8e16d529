// Package memstore provides an in-memory implementation of registry.Store and
// ingest.RunStore. Suitable for dev/testing.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/skywatch/internal/ingest"
	"github.com/linnemanlabs/skywatch/internal/registry"
)

// Store holds alerts, audit records, and ingestion runs in memory. All reads
// return copies; RecordTransition applies the status and its audit entry
// under one lock so readers never see them diverge.
type Store struct {
	mu       sync.RWMutex
	alerts   map[string]*registry.Alert // alert ID -> alert
	byName   map[string]string          // name_id -> alert ID
	audit    map[string][]registry.StatusChangeRecord
	runs     map[string]*ingest.Run
	runOrder []string
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		alerts: make(map[string]*registry.Alert),
		byName: make(map[string]string),
		audit:  make(map[string][]registry.StatusChangeRecord),
		runs:   make(map[string]*ingest.Run),
	}
}

// Get retrieves an alert by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*registry.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

// GetByNameID retrieves an alert by its designation, for ingestion dedup.
// Returns a copy.
func (s *Store) GetByNameID(_ context.Context, nameID string) (*registry.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[nameID]
	if !ok {
		return nil, false, nil
	}
	cp := *s.alerts[id]
	return &cp, true, nil
}

// Put stores a copy of the alert, keyed by id with a secondary name_id index.
// An existing alert keeps its current status; only RecordTransition moves
// status.
func (s *Store) Put(_ context.Context, a *registry.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	if prev, ok := s.alerts[a.ID]; ok {
		cp.Status = prev.Status
	}
	s.alerts[a.ID] = &cp
	s.byName[a.NameID] = a.ID
	return nil
}

// List returns copies of all alerts in unspecified order.
func (s *Store) List(_ context.Context) ([]*registry.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*registry.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// Scan returns copies of all alerts satisfying keep.
func (s *Store) Scan(_ context.Context, keep func(*registry.Alert) bool) ([]*registry.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*registry.Alert
	for _, a := range s.alerts {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RecordTransition applies the alert's new status and appends the audit
// record atomically.
func (s *Store) RecordTransition(_ context.Context, a *registry.Alert, rec *registry.StatusChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.alerts[a.ID] = &cp
	s.byName[a.NameID] = a.ID
	s.audit[rec.AlertID] = append(s.audit[rec.AlertID], *rec)
	return nil
}

// AuditTrail returns the alert's status change records in append order.
func (s *Store) AuditTrail(_ context.Context, alertID string) ([]registry.StatusChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.audit[alertID]
	out := make([]registry.StatusChangeRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// PutRun stores a copy of the ingestion run.
func (s *Store) PutRun(_ context.Context, r *ingest.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; !ok {
		s.runOrder = append(s.runOrder, r.ID)
	}
	cp := *r
	s.runs[r.ID] = &cp
	return nil
}

// GetRun retrieves an ingestion run by its ID. Returns a copy.
func (s *Store) GetRun(_ context.Context, id string) (*ingest.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// ListRuns returns copies of all runs in creation order.
func (s *Store) ListRuns(_ context.Context) ([]*ingest.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ingest.Run, 0, len(s.runOrder))
	for _, id := range s.runOrder {
		cp := *s.runs[id]
		out = append(out, &cp)
	}
	return out, nil
}
