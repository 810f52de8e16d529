package ingest

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/skywatch/internal/registry"
)

// FeedSource is an abstract external source of raw alert batches. Fetch must
// honor ctx cancellation and deadlines; transport-level failures (timeouts,
// auth rejections, unreachable endpoints) are reported as *TransportError.
type FeedSource interface {
	Fetch(ctx context.Context, apiKey string) ([]registry.RawAlert, error)
}

// TransportError reports a feed that could not be reached or refused the
// caller's credentials. It is fatal to the current run only.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
