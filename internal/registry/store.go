package registry

import "context"

// Store is the persistence interface for alerts and their audit trail.
//
// Implementations must make RecordTransition atomic: the status update and the
// audit append land together or not at all. Put never changes the status of an
// alert that already exists; status only moves through RecordTransition, so a
// stale Put can never undo a committed transition. Ordering of List/Scan
// output is unspecified; the Registry sorts query results itself.
type Store interface {
	Get(ctx context.Context, id string) (*Alert, bool, error)
	GetByNameID(ctx context.Context, nameID string) (*Alert, bool, error)
	Put(ctx context.Context, a *Alert) error
	List(ctx context.Context) ([]*Alert, error)
	Scan(ctx context.Context, keep func(*Alert) bool) ([]*Alert, error)
	RecordTransition(ctx context.Context, a *Alert, rec *StatusChangeRecord) error
	AuditTrail(ctx context.Context, alertID string) ([]StatusChangeRecord, error)
}
