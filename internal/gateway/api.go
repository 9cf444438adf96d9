// ABOUTME: HTTP handlers for querying the invocation ledger
// ABOUTME: GET /api/stats aggregates invocations and GET /api/invocations lists recent ones

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/2389/alphabot/internal/store"
)

// maxListLimit caps the limit query parameter of GET /api/invocations.
const maxListLimit = 1000

// StatsResponse is the JSON response for GET /api/stats.
type StatsResponse struct {
	Invocations      int64   `json:"invocations"`
	Failures         int64   `json:"failures"`
	Sessions         int64   `json:"sessions"`
	TotalSteps       int64   `json:"total_steps"`
	TotalAnswerBytes int64   `json:"total_answer_bytes"`
	AvgDurationMs    float64 `json:"avg_duration_ms"`
	MaxDurationMs    float64 `json:"max_duration_ms"`
	LiveSessions     int     `json:"live_sessions"`
}

// InvocationResponse is one row of GET /api/invocations.
type InvocationResponse struct {
	ID          string  `json:"id"`
	SessionID   string  `json:"session_id"`
	AgentID     string  `json:"agent_id,omitempty"`
	Backend     string  `json:"backend"`
	StartedAt   string  `json:"started_at"`
	DurationMs  float64 `json:"duration_ms"`
	PromptBytes int     `json:"prompt_bytes"`
	AnswerBytes int     `json:"answer_bytes"`
	TraceEvents int     `json:"trace_events"`
	Steps       int     `json:"steps"`
	Error       string  `json:"error,omitempty"`
}

// handleStats returns ledger totals, optionally narrowed by session_id,
// since and until (RFC 3339).
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.sendJSONError(w, http.StatusNotImplemented, "invocation ledger disabled")
		return
	}

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := g.store.GetInvocationStats(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to get invocation stats", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	g.writeJSON(w, StatsResponse{
		Invocations:      stats.Count,
		Failures:         stats.Failures,
		Sessions:         stats.Sessions,
		TotalSteps:       stats.TotalSteps,
		TotalAnswerBytes: stats.TotalAnswerBytes,
		AvgDurationMs:    millis(stats.AvgDuration),
		MaxDurationMs:    millis(stats.MaxDuration),
		LiveSessions:     g.hub.Len(),
	})
}

// handleInvocations lists ledger rows, newest first.
func (g *Gateway) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.sendJSONError(w, http.StatusNotImplemented, "invocation ledger disabled")
		return
	}

	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxListLimit)
	}

	invs, err := g.store.ListInvocations(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list invocations", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to list invocations")
		return
	}

	resp := make([]InvocationResponse, len(invs))
	for i, inv := range invs {
		resp[i] = InvocationResponse{
			ID:          inv.ID,
			SessionID:   inv.SessionID,
			AgentID:     inv.AgentID,
			Backend:     inv.Backend,
			StartedAt:   inv.StartedAt.UTC().Format(time.RFC3339),
			DurationMs:  millis(inv.Duration),
			PromptBytes: inv.PromptBytes,
			AnswerBytes: inv.AnswerBytes,
			TraceEvents: inv.TraceEvents,
			Steps:       inv.Steps,
			Error:       inv.Error,
		}
	}
	g.writeJSON(w, map[string]any{"invocations": resp})
}

// parseFilter reads session_id, since and until from the query string.
func parseFilter(q url.Values) (store.InvocationFilter, error) {
	var filter store.InvocationFilter
	if v := q.Get("session_id"); v != "" {
		filter.SessionID = &v
	}
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		v := q.Get(bound.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s: must be RFC 3339", bound.name)
		}
		*bound.dst = &t
	}
	return filter, nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
