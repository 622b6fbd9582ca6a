package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"garantias.org/internal/apperr"
	"garantias.org/internal/audit"
	"garantias.org/internal/auth"
	"garantias.org/internal/guarantee"
	"garantias.org/internal/obs"
	"garantias.org/internal/stream"
)

const serviceName = "garantias-api"

// ReadinessChecker reports whether dependencies are reachable.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Authenticator turns a bearer token into the acting identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Actor, error)
}

// Deps wires the services behind the HTTP layer.
type Deps struct {
	Version    string
	Logger     *zap.Logger
	Ready      ReadinessChecker
	Auth       Authenticator
	Profiles   auth.Directory
	Guarantees *guarantee.Service
	Audit      *audit.Service
	Events     *stream.Hub[guarantee.Event]

	MaxBodyBytes      int64
	RatePerSecond     float64
	RateBurst         int
	CORSOrigins       []string
	AuditDefaultLimit int
	// TrustedProxies are the peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix
}

// API is the HTTP layer.
type API struct {
	router     chi.Router
	logger     *zap.Logger
	ready      ReadinessChecker
	auth       Authenticator
	profiles   auth.Directory
	guarantees *guarantee.Service
	audit      *audit.Service
	events     *stream.Hub[guarantee.Event]
	version    string

	auditLimit int
}

func New(d Deps) *API {
	a := &API{
		logger:     d.Logger,
		ready:      d.Ready,
		auth:       d.Auth,
		profiles:   d.Profiles,
		guarantees: d.Guarantees,
		audit:      d.Audit,
		events:     d.Events,
		version:    d.Version,
		auditLimit: d.AuditDefaultLimit,
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.logger = a.logger.Named("http")
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.auditLimit <= 0 || a.auditLimit > audit.MaxLimit {
		a.auditLimit = audit.MaxLimit
	}
	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	perSecond, burst := d.RatePerSecond, d.RateBurst
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = 40
	}

	r := chi.NewRouter()
	r.Use(
		RequestID,
		ClientContext(d.TrustedProxies),
		AccessLog(a.logger),
		obs.Instrument(routePattern),
		SecurityHeaders,
		CORS(d.CORSOrigins),
		RateLimit(burst, perSecond),
		MaxBodyBytes(maxBody),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// health/ready/info
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)

	// Prometheus metrics
	r.Handle("/metrics", obs.Handler())

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)
		r.Get("/v1/me", a.Me)
		r.Route("/v1/guarantees", func(r chi.Router) {
			r.Post("/", a.createGuarantee)
			r.Get("/", a.listGuarantees)
			r.Get("/{id}", a.getGuarantee)
			r.Post("/{id}/deactivate", a.deactivateGuarantee)
		})
		r.Get("/v1/audit", a.listAudit)
		r.Get("/v1/stream", a.Stream)
	})

	a.router = r
	return a
}

// Handler returns the root http.Handler.
func (a *API) Handler() http.Handler {
	return a.router
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
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
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// Me returns the authenticated actor and, when available, its profile.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		a.handleServiceError(w, r, apperr.ErrUnauthenticated)
		return
	}
	resp := map[string]any{"actor": actor}
	if a.profiles != nil {
		p, err := a.profiles.Profile(r.Context(), actor.ID)
		if err != nil {
			a.handleServiceError(w, r, err)
			return
		}
		resp["profile"] = p
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
