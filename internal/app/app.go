// Package app wires together config, database, vault, registry, admission,
// router, and the expiration sweeper into one running coordinator process.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/logging"

	"aq-coordinator/internal/admission"
	"aq-coordinator/internal/config"
	"aq-coordinator/internal/database"
	"aq-coordinator/internal/httpmw"
	"aq-coordinator/internal/keepalive"
	"aq-coordinator/internal/metrics"
	"aq-coordinator/internal/registry"
	"aq-coordinator/internal/router"
	"aq-coordinator/internal/vault"
)

// App holds the coordinator's process-wide state.
type App struct {
	cfg        *config.Config
	httpServer *http.Server
	mux        *http.ServeMux
	log        logging.LeveledLogger

	registry *registry.Registry
	admin    *admission.Handlers
	router   *router.Router

	sweepStop chan struct{}
}

// New builds a coordinator App from process configuration.
func New() (*App, error) {
	cfg := config.Load()
	log := createLogger(cfg)

	if err := database.Init(cfg.DatabaseURL, log); err != nil {
		return nil, err
	}

	v, err := vault.New(cfg.VaultKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential vault: %w", err)
	}

	reg := registry.New()
	ctrl := admission.New(v, log, cfg.JWTSecret, cfg.TicketTTL, cfg.RoomTTL, cfg.BanWindow, cfg.MaxFailedAttempts)
	admin := admission.NewHandlers(ctrl)
	rt := router.New(reg, log, cfg.JWTSecret, keepalive.ConfigFromApp(cfg))

	mux := http.NewServeMux()
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a := &App{
		cfg:        cfg,
		httpServer: httpServer,
		mux:        mux,
		log:        log,
		registry:   reg,
		admin:      admin,
		router:     rt,
		sweepStop:  make(chan struct{}),
	}

	a.routes()
	return a, nil
}

// routes registers the coordinator's HTTP surface (spec.md §6).
func (a *App) routes() {
	a.mux.HandleFunc("/ws", a.router.ServeHTTP)
	a.mux.HandleFunc("/rooms", a.admin.CreateRoom)
	a.mux.HandleFunc("/rooms/", a.roomSubrouter)
	a.mux.HandleFunc("/health", a.healthHandler)
	a.mux.HandleFunc("/metrics", a.metricsHandler)
}

// roomSubrouter dispatches `/rooms/{id}`, `/rooms/{id}/join`, and
// `/rooms/{id}/password` by hand, in the style of the teacher's own
// path-splitting REST routes (no external router dependency).
func (a *App) roomSubrouter(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/rooms/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	roomID := parts[0]

	switch {
	case len(parts) == 1:
		a.admin.GetRoom(w, r, roomID, a.registry)
	case len(parts) == 2 && parts[1] == "join":
		a.admin.Join(w, r, roomID)
	case len(parts) == 2 && parts[1] == "password":
		switch r.Method {
		case http.MethodPatch:
			a.admin.SetPassword(w, r, roomID)
		case http.MethodDelete:
			a.admin.ClearPassword(w, r, roomID)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"peers":     a.registry.TotalPeers(),
		"rooms":     len(a.registry.Snapshot()),
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		a.log.Errorf("health encode: %v", err)
	}
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if _, err := w.Write(metrics.Get().ToJSON()); err != nil {
		a.log.Errorf("metrics encode: %v", err)
	}
}

// Run starts the HTTP server, the expiration sweeper, and blocks until a
// shutdown signal arrives.
func (a *App) Run() error {
	handler := httpmw.New(a.mux)
	a.httpServer.Handler = handler

	go a.sweepExpiredRooms()

	serverErrors := make(chan error, 1)
	go func() {
		a.log.Infof("starting coordinator HTTP server on %s", a.httpServer.Addr)
		serverErrors <- a.httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.log.Infof("received signal %v, shutting down", sig)
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			a.log.Errorf("server error: %v", err)
			return err
		}
	}

	close(a.sweepStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Errorf("server shutdown error: %v", err)
		return err
	}

	if err := database.Close(); err != nil {
		a.log.Errorf("database close error: %v", err)
	}

	a.log.Infof("coordinator shutdown complete")
	return nil
}

// sweepExpiredRooms deactivates rooms whose TTL has passed on a fixed
// interval (spec.md §5's "Room Repository periodically sweeps").
func (a *App) sweepExpiredRooms() {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.sweepStop:
			return
		case <-ticker.C:
			n, err := database.DeactivateExpiredRooms(time.Now())
			if err != nil {
				a.log.Warnf("sweep: deactivate expired rooms: %v", err)
				continue
			}
			if n > 0 {
				a.log.Infof("sweep: deactivated %d expired room(s)", n)
			}
			metrics.RecordRoomsExpired(int(n))
		}
	}
}

// createLogger builds a leveled logger from the configured log level.
func createLogger(cfg *config.Config) logging.LeveledLogger {
	factory := logging.NewDefaultLoggerFactory()
	switch cfg.LogLevel {
	case "debug":
		factory.DefaultLogLevel = logging.LogLevelDebug
	case "warn":
		factory.DefaultLogLevel = logging.LogLevelWarn
	case "error":
		factory.DefaultLogLevel = logging.LogLevelError
	default:
		factory.DefaultLogLevel = logging.LogLevelInfo
	}
	return factory.NewLogger("aq-coordinator")
}
