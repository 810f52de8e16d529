package registry

import (
	"sort"
	"strings"
)

// SortKey selects the field query results are ordered by.
type SortKey string

const (
	SortByTimestamp  SortKey = "timestamp"
	SortByConfidence SortKey = "confidence_score"
	SortByNameID     SortKey = "name_id"
)

// Filter is a conjunction over the supported match criteria. Zero values
// match everything.
type Filter struct {
	// Search is a case-insensitive substring match against name_id,
	// description, or source.
	Search string
	// Status, when non-empty, must match exactly.
	Status Status
	// EventType, when non-empty, must match exactly.
	EventType EventType
}

// Sort specifies result ordering. Ties always break by id ascending so
// identical queries return identical sequences.
type Sort struct {
	Key        SortKey
	Descending bool
}

// matches reports whether a satisfies every criterion in f.
func (f Filter) matches(a *Alert) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(a.NameID), needle) &&
			!strings.Contains(strings.ToLower(a.Description), needle) &&
			!strings.Contains(strings.ToLower(a.Source), needle) {
			return false
		}
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.EventType != "" && a.EventType != f.EventType {
		return false
	}
	return true
}

// sortAlerts orders alerts in place per s. Unknown sort keys fall back to
// timestamp, matching the feed's default presentation.
func sortAlerts(alerts []*Alert, s Sort) {
	less := func(a, b *Alert) bool {
		switch s.Key {
		case SortByConfidence:
			if a.Confidence != b.Confidence {
				return a.Confidence < b.Confidence
			}
		case SortByNameID:
			an, bn := strings.ToLower(a.NameID), strings.ToLower(b.NameID)
			if an != bn {
				return an < bn
			}
		default:
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.Before(b.Timestamp)
			}
		}
		return false
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if less(a, b) {
			if s.Descending {
				return false
			}
			return true
		}
		if less(b, a) {
			return s.Descending
		}
		// tie-break by id ascending regardless of direction
		return a.ID < b.ID
	})
}
