package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/skywatch/internal/ingest"
	"github.com/linnemanlabs/skywatch/internal/registry"
)

// AlertService defines the registry operations alertapi needs.
type AlertService interface {
	Get(ctx context.Context, id string) (*registry.Alert, error)
	Query(ctx context.Context, f registry.Filter, s registry.Sort) ([]*registry.Alert, error)
	TransitionStatus(ctx context.Context, alertID string, newStatus registry.Status, actor string) (*registry.StatusChangeRecord, error)
	AuditTrail(ctx context.Context, alertID string) ([]registry.StatusChangeRecord, error)
}

// StatsService provides the dashboard summary.
type StatsService interface {
	Summary(ctx context.Context) (*registry.Summary, error)
}

// Ingestor triggers and reads ingestion runs.
type Ingestor interface {
	Run(ctx context.Context, apiKey string) (*ingest.Run, error)
	GetRun(ctx context.Context, id string) (*ingest.Run, bool, error)
	ListRuns(ctx context.Context) ([]*ingest.Run, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	alerts   AlertService
	stats    StatsService
	ingestor Ingestor
	ingestMW func(http.Handler) http.Handler
}

// New creates a new API handler. ingestMW optionally guards the ingest
// trigger route (e.g. bearer auth); nil means unguarded.
func New(logger log.Logger, alerts AlertService, stats StatsService, ingestor Ingestor, ingestMW func(http.Handler) http.Handler) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if alerts == nil {
		panic(xerrors.New("alert service is required"))
	}
	if stats == nil {
		panic(xerrors.New("stats service is required"))
	}
	if ingestor == nil {
		panic(xerrors.New("ingestor is required"))
	}
	return &API{
		logger:   logger,
		alerts:   alerts,
		stats:    stats,
		ingestor: ingestor,
		ingestMW: ingestMW,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alerts", a.handleListAlerts)
		r.Get("/alerts/{id}", a.handleGetAlert)
		r.Post("/alerts/{id}/status", a.handleTransition)
		r.Get("/alerts/{id}/audit", a.handleAuditTrail)
		r.Get("/stats", a.handleStats)
		r.Get("/runs", a.handleListRuns)
		r.Get("/runs/{id}", a.handleGetRun)
		r.Group(func(r chi.Router) {
			if a.ingestMW != nil {
				r.Use(a.ingestMW)
			}
			r.Post("/runs", a.handleStartRun)
		})
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes so the
// presentation layer can show the specific kind.
func (a *API) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		verr *registry.ValidationError
		ierr *registry.InvalidTransitionError
		cerr *registry.ConflictTimeoutError
		terr *ingest.TransportError
	)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		a.writeJSON(w, http.StatusNotFound, errBody("not_found", err))
	case errors.As(err, &verr):
		a.writeJSON(w, http.StatusBadRequest, errBody("validation", err))
	case errors.As(err, &ierr):
		a.writeJSON(w, http.StatusConflict, errBody("invalid_transition", err))
	case errors.As(err, &cerr):
		a.writeJSON(w, http.StatusConflict, errBody("conflict_timeout", err))
	case errors.As(err, &terr):
		a.writeJSON(w, http.StatusBadGateway, errBody("transport", err))
	default:
		a.logger.Error(ctx, err, "internal error")
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
	}
}

func errBody(kind string, err error) map[string]string {
	return map[string]string{"error": kind, "detail": err.Error()}
}
