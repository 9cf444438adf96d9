// Package gateway wires the alphabot server together and runs it.
//
// # Overview
//
// A Gateway owns every long-lived component: the agent invoker, the session
// hub, the message broadcaster, the conversation service, the optional
// invocation ledger and Prometheus registry, and the web chat. New builds the
// invoker named by agent.backend; NewWithInvoker accepts one directly.
//
// # Listeners
//
// By default the HTTP server listens on server.http_addr. With tailscale
// enabled the gateway joins the tailnet through tsnet and listens on :80, on
// :443 with tailnet certificates (tailscale.https), or publicly through
// Funnel (tailscale.funnel). Session cookies are marked Secure in the two
// HTTPS modes.
//
// # HTTP Endpoints
//
// Besides the chat routes registered by the webchat package:
//
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check; pings the ledger when enabled
//   - GET /api/stats - Ledger totals, filtered by session_id, since, until
//   - GET /api/invocations - Recent ledger rows, newest first (limit)
//   - GET /metrics - Prometheus exposition, when metrics.enabled is set
//
// The ledger endpoints answer 501 when database.path is empty.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	err = gw.Run(ctx) // blocks; shuts down when ctx is canceled
package gateway
