package alertapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/skywatch/internal/registry"
)

// handleListAlerts serves filtered, sorted alert queries. Query params mirror
// the dashboard controls: q (free text), status, event_type, sort, order.
func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := registry.Filter{Search: q.Get("q")}

	if raw := q.Get("status"); raw != "" {
		st, err := registry.ParseStatus(raw)
		if err != nil {
			a.writeError(r.Context(), w, &registry.ValidationError{Field: "status", Reason: err.Error()})
			return
		}
		filter.Status = st
	}
	if raw := q.Get("event_type"); raw != "" {
		et, err := registry.ParseEventType(raw)
		if err != nil {
			a.writeError(r.Context(), w, &registry.ValidationError{Field: "event_type", Reason: err.Error()})
			return
		}
		filter.EventType = et
	}

	sort := registry.Sort{Key: registry.SortByTimestamp, Descending: true}
	switch q.Get("sort") {
	case "", string(registry.SortByTimestamp):
	case string(registry.SortByConfidence):
		sort.Key = registry.SortByConfidence
	case string(registry.SortByNameID):
		sort.Key = registry.SortByNameID
	default:
		a.writeError(r.Context(), w, &registry.ValidationError{Field: "sort", Reason: "unknown sort key"})
		return
	}
	switch q.Get("order") {
	case "", "desc":
	case "asc":
		sort.Descending = false
	default:
		a.writeError(r.Context(), w, &registry.ValidationError{Field: "order", Reason: "must be asc or desc"})
		return
	}

	alerts, err := a.alerts.Query(r.Context(), filter, sort)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("skywatch.alert.id", id))

	alert, err := a.alerts.Get(r.Context(), id)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	span.SetAttributes(attribute.String("skywatch.alert.status", string(alert.Status)))
	a.writeJSON(w, http.StatusOK, alert)
}

func (a *API) handleTransition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("skywatch.alert.id", id))

	var body struct {
		NewStatus string `json:"new_status"`
		Actor     string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if body.Actor == "" {
		a.writeError(r.Context(), w, &registry.ValidationError{Field: "actor", Reason: "required"})
		return
	}

	rec, err := a.alerts.TransitionStatus(r.Context(), id, registry.Status(body.NewStatus), body.Actor)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	span.SetAttributes(attribute.String("skywatch.alert.status", string(rec.To)))
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	recs, err := a.alerts.AuditTrail(r.Context(), id)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"alert_id": id,
		"changes":  recs,
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	sum, err := a.stats.Summary(r.Context())
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, sum)
}
