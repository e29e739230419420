package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/poanet/pkg/genesis"
	"github.com/cuemby/poanet/pkg/health"
	"github.com/cuemby/poanet/pkg/log"
	"github.com/cuemby/poanet/pkg/manager"
	"github.com/cuemby/poanet/pkg/metrics"
	"github.com/cuemby/poanet/pkg/reconciler"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Manager is the orchestrator surface served over HTTP
type Manager interface {
	ListNetworks() ([]*types.Network, error)
	GetNetwork(name string) (*types.Network, error)
	CreateNetwork(ctx context.Context, req manager.CreateNetworkRequest) (*types.Network, error)
	StartNetwork(ctx context.Context, name string) error
	StopNetwork(ctx context.Context, name string) error
	RemoveNetwork(ctx context.Context, name string) error
	NetworkStatus(ctx context.Context, name string) (*types.NetworkStatus, error)
	Genesis(name string) (*genesis.Document, error)

	AddNode(ctx context.Context, req manager.AddNodeRequest) (*types.Node, error)
	RemoveNode(ctx context.Context, network, node string) error
	StartNode(ctx context.Context, network, node string) error
	StopNode(ctx context.Context, network, node string) error
	NodeLogs(ctx context.Context, network, node string) (string, error)
	NodeHealth(ctx context.Context, network, node string) (*health.NodeReport, error)
}

// DriftChecker runs an on-demand roster drift check
type DriftChecker interface {
	Check(ctx context.Context) ([]*reconciler.Drift, error)
}

// Server serves the REST API together with the health and metrics endpoints
type Server struct {
	manager Manager
	drift   DriftChecker
	router  *mux.Router
	http    *http.Server
	logger  zerolog.Logger
}

// NewServer creates a new API server. drift may be nil, in which case the
// drift route is not registered.
func NewServer(mgr Manager, drift DriftChecker) *Server {
	s := &Server{
		manager: mgr,
		drift:   drift,
		router:  mux.NewRouter(),
		logger:  log.WithComponent("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/health", metrics.HealthHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.readyHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/networks", s.listNetworks).Methods(http.MethodGet)
	api.HandleFunc("/networks", s.createNetwork).Methods(http.MethodPost)
	api.HandleFunc("/networks/{network}", s.getNetwork).Methods(http.MethodGet)
	api.HandleFunc("/networks/{network}", s.removeNetwork).Methods(http.MethodDelete)
	api.HandleFunc("/networks/{network}/start", s.startNetwork).Methods(http.MethodPost)
	api.HandleFunc("/networks/{network}/stop", s.stopNetwork).Methods(http.MethodPost)
	api.HandleFunc("/networks/{network}/status", s.networkStatus).Methods(http.MethodGet)
	api.HandleFunc("/networks/{network}/genesis", s.genesis).Methods(http.MethodGet)

	api.HandleFunc("/networks/{network}/nodes", s.addNode).Methods(http.MethodPost)
	api.HandleFunc("/networks/{network}/nodes/{node}", s.removeNode).Methods(http.MethodDelete)
	api.HandleFunc("/networks/{network}/nodes/{node}/start", s.startNode).Methods(http.MethodPost)
	api.HandleFunc("/networks/{network}/nodes/{node}/stop", s.stopNode).Methods(http.MethodPost)
	api.HandleFunc("/networks/{network}/nodes/{node}/logs", s.nodeLogs).Methods(http.MethodGet)
	api.HandleFunc("/networks/{network}/nodes/{node}/health", s.nodeHealth).Methods(http.MethodGet)

	if s.drift != nil {
		api.HandleFunc("/drift", s.checkDrift).Methods(http.MethodGet)
	}

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path))
	})

	// A subrouter answers its own misses; without these a wrong method under
	// /api falls through as a 404.
	for _, r := range []*mux.Router{s.router, api} {
		r.NotFoundHandler = notFound
		r.MethodNotAllowedHandler = notAllowed
	}
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	metrics.UpdateComponent(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("addr", addr).Msg("API listening")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.UpdateComponent(metrics.ComponentAPI, false, err.Error())
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	return s.http.Shutdown(ctx)
}
