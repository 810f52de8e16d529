package alertapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/skywatch/internal/ingest"
	"github.com/linnemanlabs/skywatch/internal/registry"
)

// handleStartRun triggers one ingestion run and reports its outcome,
// including partial import counts on failure. The caller supplies the feed
// API key; fire-and-forget is deliberately not offered.
func (a *API) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if body.APIKey == "" {
		a.writeError(r.Context(), w, &registry.ValidationError{Field: "api_key", Reason: "required"})
		return
	}

	run, err := a.ingestor.Run(r.Context(), body.APIKey)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("skywatch.run.id", run.ID),
		attribute.String("skywatch.run.outcome", string(run.Outcome)),
	)

	status := http.StatusOK
	if run.Outcome == ingest.OutcomeFailed {
		status = http.StatusBadGateway
	}
	a.writeJSON(w, status, run)
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, ok, err := a.ingestor.GetRun(r.Context(), id)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, run)
}

func (a *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.ingestor.ListRuns(r.Context())
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}
