// Package webd is the HTTP read surface over the tile engine: raw
// tiles, composites, and store/coverage diagnostics for on-device
// collaborators.
package webd

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/elcano/mapd/api"
	"github.com/elcano/mapd/params"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig

	engine  *api.Engine
	logger  *slog.Logger
	server  *http.Server
	started time.Time
}

func NewWebDaemon(config *params.WebDaemonConfig, engine *api.Engine) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	return &WebDaemon{
		Config: config,
		engine: engine,
		logger: slog.With("d", "web"),
	}
}

// Run listens on the configured network/address (tcp or unix) and
// serves until the listener fails or Stop is called.
func (s *WebDaemon) Run() error {
	listener, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	s.started = time.Now()
	s.server = &http.Server{Handler: s.NewRouter()}
	s.logger.Info("Starting web daemon",
		"network", s.Config.Network, "address", s.Config.Address)
	if err := s.server.Serve(listener); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *WebDaemon) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping web daemon")
	return s.server.Shutdown(ctx)
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	// Image endpoints set their own content types.
	apiRoutes.Path("/tile/{z}/{x}/{y}").HandlerFunc(s.handleGetTile).Methods(http.MethodGet)
	apiRoutes.Path("/composite").HandlerFunc(s.handleComposite).Methods(http.MethodGet)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	jsonMiddleware := contentTypeMiddlewareFunc("application/json")
	apiJSONRoutes.Use(jsonMiddleware)

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/stores").HandlerFunc(s.handleListStores).Methods(http.MethodGet)
	apiJSONRoutes.Path("/layers").HandlerFunc(s.handleListLayers).Methods(http.MethodGet)
	apiJSONRoutes.Path("/zooms").HandlerFunc(s.handleListZooms).Methods(http.MethodGet)
	apiJSONRoutes.Path("/check").HandlerFunc(s.handleCheckLocation).Methods(http.MethodGet)
	apiJSONRoutes.Path("/grid").HandlerFunc(s.handleGrid).Methods(http.MethodGet)
	apiJSONRoutes.Path("/rescan").HandlerFunc(s.handleRescan).Methods(http.MethodPost)

	return router
}
