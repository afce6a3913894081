package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"incidentdesk.org/internal/audit"
	"incidentdesk.org/internal/directory"
	"incidentdesk.org/internal/incident"
	"incidentdesk.org/internal/obs"
	"incidentdesk.org/internal/session"
)

// ReadyProbe reports readiness (e.g. a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sessions  *session.Service
	incidents *incident.Service
	users     *directory.Service
	auditlog  *audit.Service

	rateBurst  int
	ratePerSec int
}

// New wires routes onto the service layer.
func New(rp ReadyProbe, version string, sessions *session.Service, incidents *incident.Service, users *directory.Service, auditlog *audit.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sessions:   sessions,
		incidents:  incidents,
		users:      users,
		auditlog:   auditlog,
		rateBurst:  20,
		ratePerSec: 10,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// sessions
	a.mux.HandleFunc("/v1/auth/signin", a.handleSignIn)
	a.mux.HandleFunc("/v1/auth/signout", a.handleSignOut)

	// incidents
	a.mux.HandleFunc("/v1/incidents", a.handleIncidentsCollection)
	a.mux.HandleFunc("/v1/incidents/", a.handleIncidentResource)

	// principals
	a.mux.HandleFunc("/v1/me", a.handleMe)
	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// audit trail
	a.mux.HandleFunc("/v1/audit", a.handleAuditLog)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "incidentdesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "incidentdesk-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
