// ABOUTME: Serves the chat on a tailnet through an embedded tsnet node
// ABOUTME: Plain HTTP on :80, HTTPS with tailnet certificates, or public Funnel on :443

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/alphabot/internal/config"
)

// tailnetPort is where the chat listens on the tailnet.
type tailnetPort struct {
	addr   string
	tls    bool // terminate TLS with the node's tailnet certificate
	funnel bool // expose publicly; Funnel terminates TLS itself
}

func tailnetPortFor(ts config.TailscaleConfig) tailnetPort {
	switch {
	case ts.Funnel:
		return tailnetPort{addr: ":443", funnel: true}
	case ts.HTTPS:
		return tailnetPort{addr: ":443", tls: true}
	default:
		return tailnetPort{addr: ":80"}
	}
}

func (p tailnetPort) scheme() string {
	if p.tls || p.funnel {
		return "https"
	}
	return "http"
}

// resolveTailscaleStateDir returns the configured node state directory, or
// a tailscale directory under the alphabot data path.
func resolveTailscaleStateDir(configured string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(config.DataPath(), "tailscale")
}

// resolveTailscaleAuthKey prefers the configured key over TS_AUTHKEY.
func resolveTailscaleAuthKey(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if key := os.Getenv("TS_AUTHKEY"); key != "" {
		return key, nil
	}
	return "", errors.New("no tailscale auth key: set tailscale.auth_key or TS_AUTHKEY (keys are issued at https://login.tailscale.com/admin/settings/keys)")
}

// joinTailnet brings up the tsnet node and returns the chat listener. On
// failure the node is closed again.
func (g *Gateway) joinTailnet(ctx context.Context) (net.Listener, error) {
	ts := g.config.Tailscale

	stateDir := resolveTailscaleStateDir(ts.StateDir)
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}
	authKey, err := resolveTailscaleAuthKey(ts.AuthKey)
	if err != nil {
		return nil, err
	}

	node := &tsnet.Server{
		Hostname:  ts.Hostname,
		Dir:       stateDir,
		Ephemeral: ts.Ephemeral,
		AuthKey:   authKey,
		Logf: func(format string, args ...any) {
			g.logger.Debug(fmt.Sprintf(format, args...), "component", "tsnet")
		},
	}

	g.logger.Info("joining tailnet", "hostname", ts.Hostname, "state_dir", stateDir, "ephemeral", ts.Ephemeral)
	status, err := node.Up(ctx)
	if err != nil {
		_ = node.Close()
		return nil, fmt.Errorf("joining tailnet as %s: %w", ts.Hostname, err)
	}
	g.tsnetServer = node
	g.adoptTailnetName(status)

	ln, err := g.listenTailnet(tailnetPortFor(ts))
	if err != nil {
		_ = node.Close()
		g.tsnetServer = nil
		return nil, err
	}
	return ln, nil
}

// adoptTailnetName logs the node's identity and, unless a base URL was
// configured, points the chat URL at the node's MagicDNS name.
func (g *Gateway) adoptTailnetName(status *ipnstate.Status) {
	var ip, dnsName string
	if len(status.TailscaleIPs) > 0 {
		ip = status.TailscaleIPs[0].String()
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	g.logger.Info("tailnet node up", "hostname", g.config.Tailscale.Hostname, "ip", ip, "dns_name", dnsName)

	if dnsName == "" || g.config.WebChat.BaseURL != "" || os.Getenv("ALPHABOT_URL") != "" {
		return
	}
	g.baseURL = tailnetPortFor(g.config.Tailscale).scheme() + "://" + dnsName
}

func (g *Gateway) listenTailnet(p tailnetPort) (net.Listener, error) {
	if p.funnel {
		g.logger.Info("exposing chat publicly through tailscale funnel", "addr", p.addr)
		ln, err := g.tsnetServer.ListenFunnel("tcp", p.addr)
		if err != nil {
			return nil, fmt.Errorf("funnel listen on %s: %w", p.addr, err)
		}
		return ln, nil
	}

	ln, err := g.tsnetServer.Listen("tcp", p.addr)
	if err != nil {
		return nil, fmt.Errorf("tailnet listen on %s: %w", p.addr, err)
	}
	if !p.tls {
		return ln, nil
	}

	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("tailscale local client: %w", err)
	}
	g.logger.Info("serving HTTPS with the tailnet certificate", "addr", p.addr)
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}
