// ABOUTME: Web chat UI and JSON/SSE API for alphabot sessions
// ABOUTME: Wires the conversation service, session hub and session cookie into HTTP routes

package webchat

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/alphabot/internal/auth"
	"github.com/2389/alphabot/internal/conversation"
	"github.com/2389/alphabot/internal/dedupe"
	"github.com/2389/alphabot/internal/metrics"
	"github.com/2389/alphabot/internal/session"
)

const (
	// nonceTTL is how long a submitted form nonce is remembered.
	nonceTTL = 10 * time.Minute

	// nonceCacheSize caps remembered nonces across all sessions.
	nonceCacheSize = 10000

	// heartbeatInterval spaces SSE comments that keep idle streams open.
	heartbeatInterval = 15 * time.Second
)

// Config holds the web chat dependencies. Service, Hub and Cookie are
// required; the rest are optional.
type Config struct {
	Title   string
	Heading string

	Service     *conversation.Service
	Hub         *session.Hub
	Cookie      *auth.SessionCookie
	Broadcaster *conversation.Broadcaster
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Chat handles the chat page and its API.
type Chat struct {
	title       string
	heading     string
	service     *conversation.Service
	hub         *session.Hub
	cookie      *auth.SessionCookie
	broadcaster *conversation.Broadcaster
	metrics     *metrics.Metrics
	nonces      *dedupe.Cache
	markdown    goldmark.Markdown
	page        *template.Template
	logger      *slog.Logger
}

// New creates the chat handler.
func New(cfg Config) *Chat {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Chat{
		title:       cfg.Title,
		heading:     cfg.Heading,
		service:     cfg.Service,
		hub:         cfg.Hub,
		cookie:      cfg.Cookie,
		broadcaster: cfg.Broadcaster,
		metrics:     cfg.Metrics,
		nonces:      dedupe.New(nonceTTL, nonceCacheSize),
		markdown:    newMarkdown(),
		page:        template.Must(template.ParseFS(templateFS, "templates/chat.html")),
		logger:      logger.With("component", "webchat"),
	}
}

// Close stops background work.
func (c *Chat) Close() {
	c.nonces.Close()
}

// RegisterRoutes registers the page and API routes on mux.
func (c *Chat) RegisterRoutes(mux *http.ServeMux) {
	// Browser page, session carried in the signed cookie
	mux.Handle("GET /{$}", c.cookie.Middleware(http.HandlerFunc(c.handleIndex)))
	mux.Handle("POST /send", c.cookie.Middleware(http.HandlerFunc(c.handleSend)))
	mux.Handle("POST /trace", c.cookie.Middleware(http.HandlerFunc(c.handleToggleTrace)))
	mux.Handle("POST /new", c.cookie.Middleware(http.HandlerFunc(c.handleNewChat)))
	mux.HandleFunc("GET /static/style.css", c.handleStyle)

	// API, session carried explicitly
	mux.HandleFunc("POST /api/send", c.handleAPISend)
	mux.HandleFunc("GET /api/sessions/{id}", c.handleAPISession)
	mux.HandleFunc("POST /api/sessions/{id}/trace", c.handleAPITrace)
	mux.HandleFunc("GET /api/sessions/{id}/events", c.handleAPIEvents)

	c.logger.Info("chat routes registered")
}

// browserSession returns the session named by the request's cookie,
// creating one and setting the cookie when there is none.
func (c *Chat) browserSession(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	id, _ := auth.SessionIDFromContext(r.Context())
	sess, created := c.hub.GetOrCreate(id)
	if created {
		c.metrics.SetSessions(c.hub.Len())
		if err := c.cookie.Write(w, sess.ID); err != nil {
			c.hub.Remove(sess.ID)
			return nil, err
		}
	}
	return sess, nil
}
