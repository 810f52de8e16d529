// Package registry provides the business boundary for Skywatch's alert
// registry. It defines the Alert domain model, the Store interface
// (persistence), the Registry service (batch ingestion, audited status
// transitions, filtered queries), and the read-only Facade used by
// presentation layers.
package registry
