// ABOUTME: Gateway orchestrator that wires the agent, sessions, ledger and web chat
// ABOUTME: Owns the HTTP server, optional tailscale node, health endpoints and lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"tailscale.com/tsnet"

	"github.com/2389/alphabot/internal/agent"
	"github.com/2389/alphabot/internal/auth"
	"github.com/2389/alphabot/internal/config"
	"github.com/2389/alphabot/internal/conversation"
	"github.com/2389/alphabot/internal/metrics"
	"github.com/2389/alphabot/internal/session"
	"github.com/2389/alphabot/internal/store"
	"github.com/2389/alphabot/internal/webchat"
)

// Gateway serves the chat UI and API for one agent alias.
type Gateway struct {
	config       *config.Config
	store        store.Store // nil when the ledger is disabled
	hub          *session.Hub
	broadcaster  *conversation.Broadcaster
	conversation *conversation.Service
	chat         *webchat.Chat
	metrics      *metrics.Metrics
	mux          *http.ServeMux
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
	logger       *slog.Logger

	// baseURL is where users reach the chat page
	baseURL string
}

// determineBaseURL resolves the public chat URL from config or environment.
func determineBaseURL(cfg *config.Config) string {
	if cfg.WebChat.BaseURL != "" {
		return cfg.WebChat.BaseURL
	}

	// ALPHABOT_URL includes the full tailnet DNS name when set
	if envURL := os.Getenv("ALPHABOT_URL"); envURL != "" {
		return envURL
	}

	if !cfg.Tailscale.Enabled {
		return "http://" + cfg.Server.HTTPAddr
	}
	return tailnetPortFor(cfg.Tailscale).scheme() + "://" + cfg.Tailscale.Hostname
}

// initStore opens the invocation ledger. An empty path disables it.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("ALPHABOT_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	if dbPath == "" {
		return nil, nil
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// sessionCookie builds the signed cookie codec, generating a secret when
// none is configured.
func sessionCookie(cfg *config.Config, logger *slog.Logger) (*auth.SessionCookie, error) {
	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		var err error
		if secret, err = auth.NewRandomSecret(); err != nil {
			return nil, err
		}
		logger.Info("no session.secret configured, using a random one; sessions end on restart")
	}

	return &auth.SessionCookie{
		Name:   cfg.Session.CookieName,
		Signer: auth.NewSessionSigner(secret),
		Secure: cfg.Tailscale.Enabled && tailnetPortFor(cfg.Tailscale).scheme() == "https",
	}, nil
}

// New creates a Gateway using the agent backend named in cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	invoker, err := NewInvoker(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewWithInvoker(cfg, invoker, logger)
}

// NewWithInvoker creates a Gateway that sends prompts to invoker.
func NewWithInvoker(cfg *config.Config, invoker agent.Invoker, logger *slog.Logger) (*Gateway, error) {
	if cfg.Metrics.Enabled {
		if err := config.CheckMetricsPath(cfg.Metrics.Path); err != nil {
			return nil, err
		}
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	cookie, err := sessionCookie(cfg, logger)
	if err != nil {
		if s != nil {
			_ = s.Close()
		}
		return nil, err
	}

	mux := http.NewServeMux()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.MustNewMetrics(registry)
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler(registry))
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	hub := session.NewHub(session.HubOptions{
		IdleTimeout: cfg.Session.IdleTimeout,
		ShowTrace:   cfg.Session.ShowTrace,
		OnExpire:    m.SetSessions,
		Logger:      logger,
	})
	broadcaster := conversation.NewBroadcaster(logger.With("component", "broadcaster"))

	opts := conversation.Options{
		Metrics:       m,
		Broadcaster:   broadcaster,
		AgentID:       cfg.Agent.AgentID,
		Backend:       cfg.Agent.Backend,
		InvokeTimeout: cfg.Agent.InvokeTimeout,
		Logger:        logger,
	}
	if s != nil {
		opts.Recorder = s
	}
	convService := conversation.New(invoker, opts)

	gw := &Gateway{
		config:       cfg,
		store:        s,
		hub:          hub,
		broadcaster:  broadcaster,
		conversation: convService,
		metrics:      m,
		mux:          mux,
		logger:       logger.With("component", "gateway"),
		baseURL:      determineBaseURL(cfg),
	}

	// Health endpoints
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	// Ledger queries
	mux.HandleFunc("GET /api/stats", gw.handleStats)
	mux.HandleFunc("GET /api/invocations", gw.handleInvocations)

	gw.chat = webchat.New(webchat.Config{
		Title:       cfg.WebChat.Title,
		Heading:     cfg.WebChat.Heading,
		Service:     convService,
		Hub:         hub,
		Cookie:      cookie,
		Broadcaster: broadcaster,
		Metrics:     m,
		Logger:      logger,
	})
	gw.chat.RegisterRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.mux
}

// BaseURL returns the URL users open to reach the chat page.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.joinTailnet(ctx)
	}
	return g.setupTCPListener()
}

// startServer serves HTTP in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "url", g.baseURL)
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts serving and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents stops background work in the chat, broadcaster and hub.
func (g *Gateway) closeComponents() {
	if g.chat != nil {
		g.chat.Close()
	}
	if g.broadcaster != nil {
		g.broadcaster.Close()
	}
	if g.hub != nil {
		g.hub.Close()
	}
}

// Shutdown gracefully stops the server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	g.closeComponents()

	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK when the ledger, if enabled, answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if g.store != nil {
		if err := g.store.Ping(r.Context()); err != nil {
			g.logger.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("ledger unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", g.hub.Len())
}
