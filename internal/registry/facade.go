package registry

import "context"

// highConfidenceFloor is the score at which the dashboard counts an alert as
// high confidence.
const highConfidenceFloor = 0.8

// Summary holds the dashboard counters over the full current alert set.
type Summary struct {
	Total          int `json:"total"`
	New            int `json:"new"`
	UnderReview    int `json:"under_review"`
	HighConfidence int `json:"high_confidence"`
}

// Facade is the stateless read API for presentation layers. It composes
// Registry reads and adds nothing else; every call reflects registry state as
// of that call.
type Facade struct {
	reg *Registry
}

// NewFacade creates a read facade over the registry.
func NewFacade(reg *Registry) *Facade {
	return &Facade{reg: reg}
}

// List returns alerts matching filter, ordered per s.
func (f *Facade) List(ctx context.Context, filter Filter, s Sort) ([]*Alert, error) {
	return f.reg.Query(ctx, filter, s)
}

// Summary computes the dashboard counts over all alerts.
func (f *Facade) Summary(ctx context.Context) (*Summary, error) {
	alerts, err := f.reg.store.List(ctx)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Status {
		case StatusNew:
			sum.New++
		case StatusUnderReview:
			sum.UnderReview++
		}
		if a.Confidence >= highConfidenceFloor {
			sum.HighConfidence++
		}
	}
	return sum, nil
}
