package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/skywatch/internal/ingest"
	"github.com/linnemanlabs/skywatch/internal/registry"
)

// openStore connects to the test database, applies the schema, and truncates
// all tables. Tests are skipped unless SKYWATCH_TEST_DATABASE_URL is set.
func openStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("SKYWATCH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SKYWATCH_TEST_DATABASE_URL not set; skipping pgstore integration tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := New(ctx, pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE status_changes, alerts, ingestion_runs`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func testAlert(id, nameID string) *registry.Alert {
	return &registry.Alert{
		ID:          id,
		NameID:      nameID,
		EventType:   registry.EventSupernova,
		Timestamp:   time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC),
		RA:          123.456,
		Dec:         -23.789,
		Source:      "Hubble Space Telescope",
		Description: "Type Ia supernova",
		Status:      registry.StatusNew,
		Confidence:  0.95,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert("01A", "SN2024A")
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "01A")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.NameID != a.NameID || got.EventType != a.EventType || got.Status != a.Status {
		t.Errorf("got %+v", got)
	}
	if !got.Timestamp.Equal(a.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, a.Timestamp)
	}
	if got.RA != a.RA || got.Dec != a.Dec || got.Confidence != a.Confidence {
		t.Errorf("coordinates/confidence differ: %+v", got)
	}

	_, ok, err = s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if ok {
		t.Error("ok = true for missing alert")
	}
}

func TestGetByNameID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testAlert("01A", "SN2024A")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.GetByNameID(ctx, "SN2024A")
	if err != nil || !ok {
		t.Fatalf("GetByNameID: ok=%v err=%v", ok, err)
	}
	if got.ID != "01A" {
		t.Errorf("id = %q, want 01A", got.ID)
	}

	_, ok, err = s.GetByNameID(ctx, "SN9999Z")
	if err != nil {
		t.Fatalf("GetByNameID missing: %v", err)
	}
	if ok {
		t.Error("ok = true for missing name_id")
	}
}

func TestPutUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert("01A", "SN2024A")
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	a.Description = "revised light curve"
	a.Confidence = 0.5
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	got, _, _ := s.Get(ctx, "01A")
	if got.Description != "revised light curve" || got.Confidence != 0.5 {
		t.Errorf("got %+v", got)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len = %d, want 1", len(all))
	}
}

func TestPutUpsertKeepsExistingStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert("01A", "SN2024A")
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	a.Status = registry.StatusDismissed
	if err := s.RecordTransition(ctx, a, &registry.StatusChangeRecord{
		AlertID: "01A", From: registry.StatusNew, To: registry.StatusDismissed,
		ChangedAt: time.Now().UTC(), Actor: "op1",
	}); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}

	// upsert carrying a stale status; the row's status must not move
	stale := testAlert("01A", "SN2024A")
	stale.Status = registry.StatusNew
	stale.Description = "revised"
	if err := s.Put(ctx, stale); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	got, _, _ := s.Get(ctx, "01A")
	if got.Status != registry.StatusDismissed {
		t.Errorf("status = %q, want Dismissed (conflict update leaves status alone)", got.Status)
	}
	if got.Description != "revised" {
		t.Errorf("description = %q, want revised", got.Description)
	}
}

func TestScanPredicate(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for i, nameID := range []string{"SN2024A", "GRB2024B", "SN2024C"} {
		a := testAlert(string(rune('1'+i))+"X", nameID)
		if nameID == "GRB2024B" {
			a.EventType = registry.EventGammaRayBurst
		}
		if err := s.Put(ctx, a); err != nil {
			t.Fatalf("Put %s: %v", nameID, err)
		}
	}

	out, err := s.Scan(ctx, func(a *registry.Alert) bool {
		return a.EventType == registry.EventSupernova
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("matched = %d, want 2", len(out))
	}
}

func TestRecordTransitionAtomic(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert("01A", "SN2024A")
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	a.Status = registry.StatusUnderReview
	rec := &registry.StatusChangeRecord{
		AlertID:   "01A",
		From:      registry.StatusNew,
		To:        registry.StatusUnderReview,
		ChangedAt: time.Now().UTC().Truncate(time.Microsecond),
		Actor:     "op1",
	}
	if err := s.RecordTransition(ctx, a, rec); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}

	got, _, _ := s.Get(ctx, "01A")
	if got.Status != registry.StatusUnderReview {
		t.Errorf("status = %q, want Under Review", got.Status)
	}

	trail, err := s.AuditTrail(ctx, "01A")
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(trail) != 1 {
		t.Fatalf("trail len = %d, want 1", len(trail))
	}
	if trail[0].From != registry.StatusNew || trail[0].To != registry.StatusUnderReview {
		t.Errorf("record = %+v", trail[0])
	}
	if !trail[0].ChangedAt.Equal(rec.ChangedAt) {
		t.Errorf("changed_at = %v, want %v", trail[0].ChangedAt, rec.ChangedAt)
	}
}

func TestRecordTransition_MissingAlertRollsBack(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ghost := testAlert("ghost", "SN0000X")
	ghost.Status = registry.StatusDismissed
	err := s.RecordTransition(ctx, ghost, &registry.StatusChangeRecord{
		AlertID: "ghost", From: registry.StatusNew, To: registry.StatusDismissed,
		ChangedAt: time.Now().UTC(), Actor: "op1",
	})
	if err == nil {
		t.Fatal("expected error for missing alert")
	}

	// the audit insert must have rolled back with the update
	trail, err := s.AuditTrail(ctx, "ghost")
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(trail) != 0 {
		t.Errorf("trail len = %d, want 0 after rollback", len(trail))
	}
}

func TestAuditTrailOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert("01A", "SN2024A")
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	seq := []registry.Status{registry.StatusUnderReview, registry.StatusFollowUp, registry.StatusDismissed}
	from := registry.StatusNew
	for _, to := range seq {
		a.Status = to
		if err := s.RecordTransition(ctx, a, &registry.StatusChangeRecord{
			AlertID: "01A", From: from, To: to, ChangedAt: time.Now().UTC(), Actor: "op1",
		}); err != nil {
			t.Fatalf("RecordTransition to %s: %v", to, err)
		}
		from = to
	}

	trail, _ := s.AuditTrail(ctx, "01A")
	if len(trail) != 3 {
		t.Fatalf("trail len = %d, want 3", len(trail))
	}
	for i, to := range seq {
		if trail[i].To != to {
			t.Errorf("trail[%d].To = %q, want %q", i, trail[i].To, to)
		}
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r := &ingest.Run{
		ID:        "run-01",
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
		Outcome:   ingest.OutcomePending,
	}
	if err := s.PutRun(ctx, r); err != nil {
		t.Fatalf("PutRun: %v", err)
	}

	got, ok, err := s.GetRun(ctx, "run-01")
	if err != nil || !ok {
		t.Fatalf("GetRun: ok=%v err=%v", ok, err)
	}
	if got.Outcome != ingest.OutcomePending || got.CompletedAt != nil {
		t.Errorf("run = %+v", got)
	}

	done := time.Now().UTC().Truncate(time.Microsecond)
	r.CompletedAt = &done
	r.Outcome = ingest.OutcomeFailed
	r.AlertsImported = 2
	r.ErrorDetail = "feed fetch: connection refused"
	if err := s.PutRun(ctx, r); err != nil {
		t.Fatalf("PutRun update: %v", err)
	}

	got, _, _ = s.GetRun(ctx, "run-01")
	if got.Outcome != ingest.OutcomeFailed || got.AlertsImported != 2 || got.ErrorDetail == "" {
		t.Errorf("run = %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, done)
	}

	_, ok, err = s.GetRun(ctx, "run-99")
	if err != nil {
		t.Fatalf("GetRun missing: %v", err)
	}
	if ok {
		t.Error("ok = true for missing run")
	}
}

func TestListRunsOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		r := &ingest.Run{
			ID:        "run-0" + string(rune('1'+i)),
			StartedAt: base.Add(time.Duration(i) * time.Second),
			Outcome:   ingest.OutcomeSuccess,
		}
		if err := s.PutRun(ctx, r); err != nil {
			t.Fatalf("PutRun: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len = %d, want 3", len(runs))
	}
	for i, want := range []string{"run-01", "run-02", "run-03"} {
		if runs[i].ID != want {
			t.Errorf("runs[%d] = %s, want %s", i, runs[i].ID, want)
		}
	}
}
