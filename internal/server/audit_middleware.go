package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mealbridge/rescue-service/internal/workflow"
)

var pathEntityTypes = map[string]string{
	"donations": workflow.EntityDonation,
	"claims":    workflow.EntityClaim,
	"tasks":     workflow.EntityTask,
	"pickups":   workflow.EntityPickupEvent,
	"feedback":  workflow.EntityFeedback,
	"actors":    "actor",
}

// auditMiddleware records every request/response pair through the
// AuditManager. Runs inside the router so the matched route is known.
func (s *Server) auditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		entry := AuditLogEntry{
			Timestamp: time.Now().UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
		}
		if route := mux.CurrentRoute(r); route != nil {
			entry.Handler = route.GetName()
		}
		if username, _, ok := r.BasicAuth(); ok {
			entry.Username = username
		}
		entry.EntityType, entry.EntityID = entityFromPath(r)

		// registration bodies carry passwords, keep those out of the log
		skipRequestBody := r.URL.Path == "/actors" && r.Method == http.MethodPost
		if !skipRequestBody && r.Body != nil {
			requestBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = string(requestBody)
		}

		tap := &responseTap{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(tap, r)

		entry.StatusCode = tap.status
		entry.Response = tap.body.String()

		s.audit.LogEntry(r.Context(), entry)
	})
}

// responseTap tees the handler's reply so the audit entry can carry the
// status and body without disturbing the client.
type responseTap struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (t *responseTap) WriteHeader(status int) {
	t.status = status
	t.ResponseWriter.WriteHeader(status)
}

func (t *responseTap) Write(b []byte) (int, error) {
	t.body.Write(b)
	return t.ResponseWriter.Write(b)
}

// entityFromPath maps the first two path segments to a workflow entity, so
// /donations/{id}/claims audits against the donation.
func entityFromPath(r *http.Request) (string, string) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 {
		return "", ""
	}
	entityType, ok := pathEntityTypes[parts[0]]
	if !ok || parts[1] == "overdue" {
		return "", ""
	}
	return entityType, parts[1]
}
