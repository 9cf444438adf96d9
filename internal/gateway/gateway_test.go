// ABOUTME: Tests for the Gateway orchestrator, health endpoints and ledger API
// ABOUTME: Runs the echo backend against a temp-dir SQLite ledger

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/alphabot/internal/agent"
	"github.com/2389/alphabot/internal/auth"
	"github.com/2389/alphabot/internal/config"
)

// testConfig creates a minimal echo-backend config with an available port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ALPHABOT_DB_PATH", "")
	t.Setenv("ALPHABOT_URL", "")

	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	httpAddr := httpListener.Addr().String()
	httpListener.Close()

	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPAddr: httpAddr},
		Agent:    config.AgentConfig{Backend: config.BackendEcho},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "ledger.db")},
		Session:  config.SessionConfig{Secret: "test-secret"},
		Metrics:  config.MetricsConfig{Enabled: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()
	gw, err := New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw
}

func (g *Gateway) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	return rec
}

func (g *Gateway) get(path string) *httptest.ResponseRecorder {
	return g.serve(httptest.NewRequest(http.MethodGet, path, nil))
}

// ask runs n prompts in one new session and returns its ID.
func (g *Gateway) ask(t *testing.T, n int) string {
	t.Helper()
	sess := g.hub.Create()
	for i := range n {
		_, err := g.conversation.Ask(context.Background(), sess, "prompt "+string(rune('a'+i)))
		require.NoError(t, err)
	}
	return sess.ID
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t)
	gw := newTestGateway(t, cfg)

	assert.Same(t, cfg, gw.config)
	assert.NotNil(t, gw.store)
	assert.NotNil(t, gw.hub)
	assert.NotNil(t, gw.conversation)
	assert.NotNil(t, gw.chat)
	assert.NotNil(t, gw.metrics)
	assert.Equal(t, "http://"+cfg.Server.HTTPAddr, gw.BaseURL())
}

func TestGatewayNew_LedgerAndMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = ""
	cfg.Metrics.Enabled = false
	gw := newTestGateway(t, cfg)

	assert.Nil(t, gw.store)
	assert.Nil(t, gw.metrics)

	_, err := gw.conversation.Ask(context.Background(), gw.hub.Create(), "hi")
	require.NoError(t, err, "prompts work without a ledger")

	assert.Equal(t, http.StatusNotFound, gw.get("/metrics").Code)
	assert.Equal(t, http.StatusNotImplemented, gw.get("/api/stats").Code)
	assert.Equal(t, http.StatusNotImplemented, gw.get("/api/invocations").Code)
}

func TestGatewayNew_MetricsPathCollision(t *testing.T) {
	for _, path := range []string{"/health", "/health/ready", "/api/stats", "/static/style.css", "/"} {
		t.Run(path, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Metrics.Path = path

			var gw *Gateway
			var err error
			require.NotPanics(t, func() { gw, err = New(cfg, testLogger()) })
			require.Error(t, err)
			assert.Nil(t, gw)
			assert.Contains(t, err.Error(), "metrics.path")
			assert.NoFileExists(t, cfg.Database.Path, "the ledger is not opened")
		})
	}
}

func TestGatewayNew_MetricsPathCollisionIgnoredWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	cfg.Metrics.Path = "/health"
	gw := newTestGateway(t, cfg)

	assert.Equal(t, "OK", gw.get("/health").Body.String())
}

func TestGatewayRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	gw, err := New(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.HTTPAddr + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(body) == "OK"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("gateway did not shutdown in time")
	}
}

func TestGatewayRun_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.HTTPAddr = ln.Addr().String()
	gw := newTestGateway(t, cfg)

	err = gw.Run(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on HTTP address")
}

func TestReadyEndpoint(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	gw.hub.Create()

	rec := gw.get("/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready (1 sessions)", rec.Body.String())

	require.NoError(t, gw.store.Close())

	rec = gw.get("/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ledger unavailable", rec.Body.String())
}

func TestChatRoutesMounted(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	rec := gw.get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>"+config.DefaultTitle+"</title>")
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.DefaultCookieName, cookies[0].Name)
	assert.False(t, cookies[0].Secure)
	assert.Equal(t, 1, gw.hub.Len())
}

func TestStatsEndpoint(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	gw.ask(t, 2)

	rec := gw.get("/api/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.Invocations)
	assert.Equal(t, int64(0), stats.Failures)
	assert.Equal(t, int64(1), stats.Sessions)
	assert.Equal(t, int64(12), stats.TotalSteps)
	assert.Positive(t, stats.TotalAnswerBytes)
	assert.Equal(t, 1, stats.LiveSessions)
}

func TestStatsEndpoint_Filters(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	first := gw.ask(t, 2)
	gw.ask(t, 1)

	decode := func(rec *httptest.ResponseRecorder) StatsResponse {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code)
		var stats StatsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
		return stats
	}

	assert.Equal(t, int64(3), decode(gw.get("/api/stats")).Invocations)
	assert.Equal(t, int64(2), decode(gw.get("/api/stats?session_id="+first)).Invocations)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	assert.Equal(t, int64(0), decode(gw.get("/api/stats?since="+future)).Invocations)
	assert.Equal(t, int64(3), decode(gw.get("/api/stats?until="+future)).Invocations)

	rec := gw.get("/api/stats?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid since")
}

func TestInvocationsEndpoint(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	sessionID := gw.ask(t, 3)

	rec := gw.get("/api/invocations?limit=2")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Invocations []InvocationResponse `json:"invocations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Invocations, 2)
	for _, inv := range resp.Invocations {
		assert.Equal(t, sessionID, inv.SessionID)
		assert.Equal(t, config.BackendEcho, inv.Backend)
		assert.Equal(t, 6, inv.Steps)
		assert.Empty(t, inv.Error)
	}
	assert.GreaterOrEqual(t, resp.Invocations[0].StartedAt, resp.Invocations[1].StartedAt)

	for _, bad := range []string{"0", "-1", "lots"} {
		rec := gw.get("/api/invocations?limit=" + bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
	}
}

func TestInvocationsEndpoint_Empty(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	rec := gw.get("/api/invocations")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"invocations": []}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	gw.ask(t, 1)

	rec := gw.get("/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `alphabot_agent_invocations_total{backend="echo",outcome="ok"} 1`)
	assert.Contains(t, body, "alphabot_agent_trace_steps")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewInvoker(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "missing"))

	t.Run("echo", func(t *testing.T) {
		cfg := &config.Config{Agent: config.AgentConfig{Backend: config.BackendEcho}}
		inv, err := NewInvoker(context.Background(), cfg, testLogger())
		require.NoError(t, err)
		assert.IsType(t, &agent.EchoInvoker{}, inv)
	})

	t.Run("bedrock with static credentials", func(t *testing.T) {
		cfg := &config.Config{
			Agent: config.AgentConfig{
				Backend:      config.BackendBedrock,
				AgentID:      "AGENT123",
				AgentAliasID: "ALIAS456",
				Region:       "us-east-1",
			},
			AWS: config.AWSConfig{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"},
		}
		inv, err := NewInvoker(context.Background(), cfg, testLogger())
		require.NoError(t, err)
		assert.IsType(t, &agent.BedrockInvoker{}, inv)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{Agent: config.AgentConfig{Backend: "carrier-pigeon"}}
		_, err := NewInvoker(context.Background(), cfg, testLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "carrier-pigeon")
	})
}

func TestLoadAWSConfig_StaticCredentials(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "missing"))

	cfg := &config.Config{
		Agent: config.AgentConfig{Region: "eu-west-1"},
		AWS:   config.AWSConfig{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret", SessionToken: "token"},
	}

	awsCfg, err := loadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
	assert.Equal(t, "token", creds.SessionToken)
}

func TestDetermineBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		env  string
		want string
	}{
		{
			name: "explicit",
			cfg:  config.Config{WebChat: config.WebChatConfig{BaseURL: "https://chat.example.com"}},
			env:  "https://ignored.example.com",
			want: "https://chat.example.com",
		},
		{
			name: "environment",
			cfg:  config.Config{Server: config.ServerConfig{HTTPAddr: "localhost:8080"}},
			env:  "https://alphabot.tailnet.ts.net",
			want: "https://alphabot.tailnet.ts.net",
		},
		{
			name: "tcp",
			cfg:  config.Config{Server: config.ServerConfig{HTTPAddr: "localhost:8080"}},
			want: "http://localhost:8080",
		},
		{
			name: "tailscale http",
			cfg:  config.Config{Tailscale: config.TailscaleConfig{Enabled: true, Hostname: "alphabot"}},
			want: "http://alphabot",
		},
		{
			name: "tailscale https",
			cfg:  config.Config{Tailscale: config.TailscaleConfig{Enabled: true, Hostname: "alphabot", HTTPS: true}},
			want: "https://alphabot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ALPHABOT_URL", tt.env)
			assert.Equal(t, tt.want, determineBaseURL(&tt.cfg))
		})
	}
}

func TestSessionCookie(t *testing.T) {
	t.Run("configured secret", func(t *testing.T) {
		cfg := &config.Config{Session: config.SessionConfig{Secret: "s3cret", CookieName: "chat"}}
		cookie, err := sessionCookie(cfg, testLogger())
		require.NoError(t, err)
		assert.Equal(t, "chat", cookie.Name)
		assert.False(t, cookie.Secure)

		token, err := cookie.Signer.Sign("abcde-fg", 0)
		require.NoError(t, err)
		again, err := sessionCookie(cfg, testLogger())
		require.NoError(t, err)
		id, err := again.Signer.Verify(token)
		require.NoError(t, err, "the same secret verifies across restarts")
		assert.Equal(t, "abcde-fg", id)
	})

	t.Run("random secret", func(t *testing.T) {
		cfg := &config.Config{}
		a, err := sessionCookie(cfg, testLogger())
		require.NoError(t, err)
		b, err := sessionCookie(cfg, testLogger())
		require.NoError(t, err)

		token, err := a.Signer.Sign("abcde-fg", 0)
		require.NoError(t, err)
		_, err = b.Signer.Verify(token)
		assert.Error(t, err)
	})

	t.Run("secure over tailscale https", func(t *testing.T) {
		cfg := &config.Config{Tailscale: config.TailscaleConfig{Enabled: true, Funnel: true}}
		cookie, err := sessionCookie(cfg, testLogger())
		require.NoError(t, err)
		assert.True(t, cookie.Secure)
	})
}

func TestResolveTailscaleStateDir(t *testing.T) {
	assert.Equal(t, "/var/lib/alphabot", resolveTailscaleStateDir("/var/lib/alphabot"))

	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, filepath.Join("/home/tester", ".local", "share", "alphabot", "tailscale"), resolveTailscaleStateDir(""))

	t.Setenv("XDG_DATA_HOME", "/srv/data")
	assert.Equal(t, filepath.Join("/srv/data", "alphabot", "tailscale"), resolveTailscaleStateDir(""))
}

func TestTailnetPortFor(t *testing.T) {
	tests := []struct {
		name   string
		ts     config.TailscaleConfig
		want   tailnetPort
		scheme string
	}{
		{"plain", config.TailscaleConfig{}, tailnetPort{addr: ":80"}, "http"},
		{"https", config.TailscaleConfig{HTTPS: true}, tailnetPort{addr: ":443", tls: true}, "https"},
		{"funnel wins", config.TailscaleConfig{HTTPS: true, Funnel: true}, tailnetPort{addr: ":443", funnel: true}, "https"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tailnetPortFor(tt.ts)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.scheme, got.scheme())
		})
	}
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	_, err := resolveTailscaleAuthKey("")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "TS_AUTHKEY"))

	key, err := resolveTailscaleAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)
}
