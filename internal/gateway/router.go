package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/taskgate/taskgate/internal/identity"
	"github.com/taskgate/taskgate/internal/platform/httpx"
)

// Config collects the gateway routing dependencies.
type Config struct {
	Logger        *slog.Logger
	Verifier      identity.Verifier
	Forwarder     *Forwarder
	AuthURL       string
	TodoURL       string
	GatewaySecret string
}

// Router enforces the static route classification: auth endpoints forward
// unmodified, todo and user endpoints require a verified identity, anything
// else is a structured not-found instead of a blind forward.
type Router struct {
	logger        *slog.Logger
	verifier      identity.Verifier
	forwarder     *Forwarder
	authURL       string
	todoURL       string
	gatewaySecret string
	healthClient  *http.Client
}

// NewRouter constructs the gateway router.
func NewRouter(cfg Config) *Router {
	return &Router{
		logger:        cfg.Logger,
		verifier:      cfg.Verifier,
		forwarder:     cfg.Forwarder,
		authURL:       cfg.AuthURL,
		todoURL:       cfg.TodoURL,
		gatewaySecret: cfg.GatewaySecret,
		healthClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

// MountRoutes registers the gateway's route table.
func (g *Router) MountRoutes(r chi.Router) {
	r.Get("/health", g.handleHealth)
	r.Get("/health/upstreams", g.handleUpstreamHealth)
	r.Get("/api/todo-health", g.forwardTodoHealth)

	r.Handle("/api/auth/*", http.HandlerFunc(g.forwardPublic))
	r.Handle("/api/todos", http.HandlerFunc(g.forwardProtected))
	r.Handle("/api/todos/*", http.HandlerFunc(g.forwardProtected))
	r.Handle("/api/user", http.HandlerFunc(g.forwardProtected))
	r.Handle("/api/user/*", http.HandlerFunc(g.forwardProtected))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "route not found: "+req.URL.Path)
	})
}

func (g *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "gateway"})
}

// handleUpstreamHealth probes both upstreams concurrently and reports their
// reachability. Probe failures degrade the report, not the gateway itself.
func (g *Router) handleUpstreamHealth(w http.ResponseWriter, r *http.Request) {
	statuses := map[string]string{"auth": "unreachable", "todo": "unreachable"}
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(r.Context())
	probe := func(name, base string) func() error {
		return func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
			if err != nil {
				return nil
			}
			res, err := g.healthClient.Do(req)
			if err != nil {
				return nil
			}
			defer res.Body.Close()
			mu.Lock()
			if res.StatusCode == http.StatusOK {
				statuses[name] = "healthy"
			} else {
				statuses[name] = "unhealthy"
			}
			mu.Unlock()
			return nil
		}
	}
	eg.Go(probe("auth", g.authURL))
	eg.Go(probe("todo", g.todoURL))
	_ = eg.Wait()

	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "gateway",
		"upstreams": statuses,
	})
}

// forwardPublic relays auth-service traffic without identity injection. The
// anti-spoofing strip still applies: no caller-supplied identity or
// provenance header survives the hop.
func (g *Router) forwardPublic(w http.ResponseWriter, r *http.Request) {
	stripIdentityHeaders(r)
	g.forwarder.Forward(w, r, g.authURL, r.URL.Path)
}

func (g *Router) forwardTodoHealth(w http.ResponseWriter, r *http.Request) {
	stripIdentityHeaders(r)
	g.forwarder.Forward(w, r, g.todoURL, "/health")
}

// forwardProtected verifies the caller before anything reaches the upstream.
// Missing or malformed credentials fail here, with zero upstream calls.
func (g *Router) forwardProtected(w http.ResponseWriter, r *http.Request) {
	stripIdentityHeaders(r)

	token, err := identity.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	verified, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, httpx.ErrUnavailable) {
			g.logger.Error("verify upstream unavailable", slog.Any("error", err), slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusServiceUnavailable, "Upstream Unavailable", "authentication service unavailable")
			return
		}
		g.logger.Warn("token verification failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
		return
	}

	injectIdentityHeaders(r, verified, g.gatewaySecret)
	g.forwarder.Forward(w, r, g.todoURL, r.URL.Path)
}

// stripIdentityHeaders removes caller-supplied identity and provenance
// headers. The gateway is the only permitted injector.
func stripIdentityHeaders(r *http.Request) {
	r.Header.Del(identity.HeaderUserID)
	r.Header.Del(identity.HeaderUserEmail)
	r.Header.Del(identity.HeaderUserName)
	r.Header.Del(identity.HeaderGatewayAuth)
}

func injectIdentityHeaders(r *http.Request, verified *identity.VerifiedIdentity, secret string) {
	r.Header.Set(identity.HeaderUserID, strconv.FormatInt(verified.UserID, 10))
	r.Header.Set(identity.HeaderUserEmail, verified.Email)
	r.Header.Set(identity.HeaderUserName, verified.DisplayName)
	r.Header.Set(identity.HeaderGatewayAuth, secret)
}
