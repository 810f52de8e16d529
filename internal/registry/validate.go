package registry

import (
	"time"
)

// validate checks a raw feed record against the ingestion invariants and
// returns the normalized fields. A nil error means the record is acceptable.
func validate(raw RawAlert) (EventType, time.Time, *ValidationError) {
	fail := func(field, reason string) (EventType, time.Time, *ValidationError) {
		return "", time.Time{}, &ValidationError{NameID: raw.NameID, Field: field, Reason: reason}
	}

	if raw.NameID == "" {
		return fail("name_id", "required")
	}
	if raw.Source == "" {
		return fail("source", "required")
	}

	et, err := ParseEventType(raw.EventType)
	if err != nil {
		return fail("event_type", err.Error())
	}

	if raw.Timestamp == "" {
		return fail("timestamp", "required")
	}
	ts, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return fail("timestamp", "not a valid RFC3339 instant")
	}

	if raw.RA < 0 || raw.RA >= 360 {
		return fail("ra", "must be in [0,360)")
	}
	if raw.Dec < -90 || raw.Dec > 90 {
		return fail("dec", "must be in [-90,90]")
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return fail("confidence_score", "must be in [0,1]")
	}

	return et, ts.UTC(), nil
}
