package registry

import (
	"fmt"
	"time"
)

// Status tracks where an alert is in its review lifecycle.
type Status string

const (
	// StatusNew means ingested, not yet looked at
	StatusNew Status = "New"

	// StatusUnderReview means an operator is actively analyzing it
	StatusUnderReview Status = "Under Review"

	// StatusFollowUp means follow-up observation has been requested
	StatusFollowUp Status = "Follow-up Needed"

	// StatusDismissed means reviewed and ruled out
	StatusDismissed Status = "Dismissed"
)

// Statuses lists every valid status, in lifecycle order.
var Statuses = []Status{StatusNew, StatusUnderReview, StatusFollowUp, StatusDismissed}

// ParseStatus validates a raw status label.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// EventType classifies the astronomical phenomenon behind an alert.
type EventType string

const (
	EventSupernova         EventType = "Supernova"
	EventGammaRayBurst     EventType = "Gamma-Ray Burst"
	EventGravitationalWave EventType = "Gravitational Wave"
	EventNeutrino          EventType = "Neutrino Event"
	EventFastRadioBurst    EventType = "Fast Radio Burst"
	EventOther             EventType = "Other"
)

// EventTypes lists every valid event type.
var EventTypes = []EventType{
	EventSupernova,
	EventGammaRayBurst,
	EventGravitationalWave,
	EventNeutrino,
	EventFastRadioBurst,
	EventOther,
}

// ParseEventType validates a raw event type label.
func ParseEventType(s string) (EventType, error) {
	for _, et := range EventTypes {
		if string(et) == s {
			return et, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Alert is one astronomical detection event record. Identity fields are
// immutable after ingestion; Status only changes through
// Registry.TransitionStatus.
type Alert struct {
	ID          string    `json:"id"`
	NameID      string    `json:"name_id"`
	EventType   EventType `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	RA          float64   `json:"ra"`
	Dec         float64   `json:"dec"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Confidence  float64   `json:"confidence_score"`
}

// StatusChangeRecord is one append-only audit entry for a status transition.
type StatusChangeRecord struct {
	AlertID   string    `json:"alert_id"`
	From      Status    `json:"from_status"`
	To        Status    `json:"to_status"`
	ChangedAt time.Time `json:"changed_at"`
	Actor     string    `json:"actor"`
}

// RawAlert is the loosely-typed pre-validation shape delivered by a feed.
// Field types mirror the upstream JSON; everything is checked during
// ingestion before an Alert identity is assigned.
type RawAlert struct {
	NameID      string  `json:"name_id"`
	EventType   string  `json:"event_type"`
	Timestamp   string  `json:"timestamp"`
	RA          float64 `json:"ra"`
	Dec         float64 `json:"dec"`
	Source      string  `json:"source"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence_score"`
}
