package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	apimiddleware "github.com/helixml/jembed/infrastructure/api/middleware"
	v1 "github.com/helixml/jembed/infrastructure/api/v1"
	mcpinternal "github.com/helixml/jembed/internal/mcp"
	"github.com/helixml/jembed/internal/metrics"
	"github.com/mark3labs/mcp-go/server"
)

// Embedder is the resident model the API serves.
type Embedder interface {
	v1.TextEmbedder

	// Model returns the identifier of the resident model.
	Model() string
}

// APIServer provides the embedding HTTP API.
type APIServer struct {
	embedder    Embedder
	auth        apimiddleware.AuthConfig
	corsOrigins []string
	mcpEnabled  bool
	idle        *apimiddleware.IdleTracker
	metrics     *metrics.Metrics
	version     string
	logger      *slog.Logger
	router      chi.Router
}

// APIServerOption configures an APIServer.
type APIServerOption func(*APIServer)

// WithAPIToken guards POST /embed (and /mcp) with a bearer token.
// An empty token leaves the API open.
func WithAPIToken(token string) APIServerOption {
	return func(a *APIServer) { a.auth = apimiddleware.NewAuthConfig(token) }
}

// WithCORSOrigins allows browser calls from the given origins.
func WithCORSOrigins(origins []string) APIServerOption {
	return func(a *APIServer) { a.corsOrigins = origins }
}

// WithMCP mounts the MCP endpoint at /mcp.
func WithMCP(enabled bool) APIServerOption {
	return func(a *APIServer) { a.mcpEnabled = enabled }
}

// WithIdleTracker records request activity on t.
func WithIdleTracker(t *apimiddleware.IdleTracker) APIServerOption {
	return func(a *APIServer) { a.idle = t }
}

// WithMetrics records request and encode metrics on m and serves them at
// GET /metrics.
func WithMetrics(m *metrics.Metrics) APIServerOption {
	return func(a *APIServer) { a.metrics = m }
}

// WithVersion sets the version reported by GET / and MCP.
func WithVersion(version string) APIServerOption {
	return func(a *APIServer) { a.version = version }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) APIServerOption {
	return func(a *APIServer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAPIServer creates a new APIServer backed by embedder.
func NewAPIServer(embedder Embedder, opts ...APIServerOption) *APIServer {
	a := &APIServer{
		embedder: embedder,
		auth:     apimiddleware.NewAuthConfig(""),
		version:  "dev",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the chi router with the API middleware applied.
// Add custom middleware with router.Use() before calling MountRoutes().
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	router := chi.NewRouter()
	router.Use(apimiddleware.CorrelationID)
	router.Use(apimiddleware.Logging(a.logger))
	if a.idle != nil {
		router.Use(a.idle.Middleware)
	}
	if a.metrics != nil {
		router.Use(a.metrics.Middleware)
	}
	if len(a.corsOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", apimiddleware.CorrelationIDHeader},
			ExposedHeaders:   []string{apimiddleware.CorrelationIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	a.router = router
	return a.router
}

// MountRoutes wires up all routes on the router.
func (a *APIServer) MountRoutes() {
	router := a.Router()

	var embedder Embedder = a.embedder
	if a.metrics != nil {
		embedder = instrumentedEmbedder{
			InstrumentedEmbedder: a.metrics.Instrument(a.embedder),
			model:                a.embedder.Model(),
		}
		router.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	embedRouter := v1.NewEmbedRouter(embedder, a.auth, a.logger)
	router.Mount("/embed", embedRouter.Routes())

	router.Get("/health", healthHandler)
	router.Get("/healthz", healthHandler)
	router.Get("/", a.rootHandler)

	router.Mount("/docs", a.DocsRouter("/docs/openapi.json").Routes())

	if a.mcpEnabled {
		// No timeout middleware: MCP streams responses and tracks its own sessions.
		mcpSrv := mcpinternal.NewServer(embedder, a.version, a.logger)
		router.Group(func(r chi.Router) {
			r.Use(apimiddleware.BearerAuth(a.auth))
			r.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
		})
	}
}

// instrumentedEmbedder keeps the model name on a metrics-wrapped embedder so
// the HTTP and MCP surfaces share one set of counters.
type instrumentedEmbedder struct {
	*metrics.InstrumentedEmbedder
	model string
}

func (e instrumentedEmbedder) Model() string { return e.model }

// DocsRouter returns a router for Swagger UI and OpenAPI spec.
func (a *APIServer) DocsRouter(specURL string) *DocsRouter {
	return NewDocsRouter(specURL)
}

// Handler returns the fully mounted router as an http.Handler.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.MountRoutes()
	}
	return a.router
}

// InfoResponse is the body of GET /.
type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Model   string `json:"model"`
	Docs    string `json:"docs"`
}

func (a *APIServer) rootHandler(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, InfoResponse{
		Name:    "jembed",
		Version: a.version,
		Model:   a.embedder.Model(),
		Docs:    "/docs",
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
