package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
)

// Config adds skywatch-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	FeedEndpoint          string
	FeedTimeoutSeconds    int
	IngestToken           string
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.FeedEndpoint, "feed-endpoint", "https://api.nasa.gov", "base URL of the external alert feed")
	fs.IntVar(&c.FeedTimeoutSeconds, "feed-timeout-seconds", 30, "per-run bound on feed fetch calls (1..300)")
	fs.StringVar(&c.IngestToken, "ingest-token", "", "bearer token required to trigger ingestion runs (empty = unguarded)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for run notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Feed endpoint is required and must parse; ingestion cannot run without it
	if c.FeedEndpoint == "" {
		errs = append(errs, errors.New("FEED_ENDPOINT is required"))
	} else if u, err := url.Parse(c.FeedEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid FEED_ENDPOINT %q (must be an absolute URL)", c.FeedEndpoint))
	}

	// Feed timeout bounds every fetch; unbounded blocking is not allowed
	if c.FeedTimeoutSeconds <= 0 || c.FeedTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid FEED_TIMEOUT_SECONDS %d (must be 1..300)", c.FeedTimeoutSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
