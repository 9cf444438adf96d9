// ABOUTME: Entry point for the alphabot chat server and local chat commands
// ABOUTME: serve runs the web chat; ask and chat talk to the agent from the terminal

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/alphabot/internal/config"
	"github.com/2389/alphabot/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _       _           _           _
   __ _| |_ __ | |__   __ _| |__   ___ | |_
  / _' | | '_ \| '_ \ / _' | '_ \ / _ \| __|
 | (_| | | |_) | | | | (_| | |_) | (_) | |_
  \__,_|_| .__/|_| |_|\__,_|_.__/ \___/ \__|
         |_|
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: alphabot <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                  Start the web chat server")
		fmt.Println("  init                   Create a new config file interactively")
		fmt.Println("  ask [--trace] PROMPT   Send one prompt to the agent and print the answer")
		fmt.Println("  chat                   Chat with the agent in the terminal")
		fmt.Println("  steps FILE             Print processing steps from saved trace JSON (- for stdin)")
		fmt.Println("  health                 Check server health")
		fmt.Println("  stats                  Show invocation totals from a running server")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "ask":
		err = runAsk(ctx, os.Args[2:])
	case "chat":
		err = runChat(ctx)
	case "steps":
		err = runSteps(os.Args[2:], os.Stdin, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "stats":
		err = runStats(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file. Without one, alphabot runs on defaults
// and environment variables (BEDROCK_AGENT_ID, BEDROCK_AGENT_ALIAS_ID, AWS_*).
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := config.LoadEnvFile(""); err != nil {
			return nil, err
		}
		cfg, err = config.Parse(nil, false)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Agent.Backend)
	if cfg.Agent.Backend == config.BackendBedrock {
		green.Print("    ▶ ")
		fmt.Printf("Agent:     %s / %s (%s)\n", cfg.Agent.AgentID, cfg.Agent.AgentAliasID, cfg.Agent.Region)
	}
	if !cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Ledger:    %s\n", cfg.Database.Path)
	}

	// Tailscale status
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting alphabot",
		"config", configPath,
		"backend", cfg.Agent.Backend,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// serverURL returns the base URL of the running server for client commands.
func serverURL(cfg *config.Config) string {
	if cfg.WebChat.BaseURL != "" {
		return strings.TrimSuffix(cfg.WebChat.BaseURL, "/")
	}
	if envURL := os.Getenv("ALPHABOT_URL"); envURL != "" {
		return strings.TrimSuffix(envURL, "/")
	}
	return "http://" + cfg.Server.HTTPAddr
}

// getJSON fetches url into v, turning JSON error bodies into errors.
func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp["error"] != "" {
			return fmt.Errorf("%s", errResp["error"])
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

func runHealth(ctx context.Context) error {
	cfg, err := loadConfig(config.DefaultPath())
	if err != nil {
		return err
	}

	url := serverURL(cfg) + "/health/ready"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Printf("healthy: %s\n", body)
	return nil
}

func runStats(ctx context.Context) error {
	cfg, err := loadConfig(config.DefaultPath())
	if err != nil {
		return err
	}

	var stats gateway.StatsResponse
	if err := getJSON(ctx, serverURL(cfg)+"/api/stats", &stats); err != nil {
		return fmt.Errorf("fetching stats: %w", err)
	}

	printStats(os.Stdout, &stats)
	return nil
}

func printStats(w io.Writer, s *gateway.StatsResponse) {
	fmt.Fprintf(w, "Invocations:   %d (%d failed)\n", s.Invocations, s.Failures)
	fmt.Fprintf(w, "Sessions:      %d recorded, %d live\n", s.Sessions, s.LiveSessions)
	fmt.Fprintf(w, "Trace steps:   %d\n", s.TotalSteps)
	fmt.Fprintf(w, "Answer bytes:  %d\n", s.TotalAnswerBytes)
	fmt.Fprintf(w, "Duration:      avg %.0fms, max %.0fms\n", s.AvgDurationMs, s.MaxDurationMs)
}

// initAnswers holds the values collected by runInit.
type initAnswers struct {
	HTTPAddr     string
	Backend      string
	AgentID      string
	AgentAliasID string
	Region       string
	DBPath       string
	Tailscale    bool
	TSHostname   string
	TSAuthKey    string
	TSEphemeral  bool
	TSFunnel     bool
	ShowTrace    bool
	LogLevel     string
	LogFormat    string
	Metrics      bool
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("alphabot configuration setup")
	fmt.Println("============================")
	fmt.Println()

	defaultConfigPath := config.DefaultPath()
	defaultDBPath := filepath.Join(config.DataPath(), "alphabot.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Agent Configuration ---")
	a.Backend = prompt(reader, "Backend (bedrock/echo)", config.BackendBedrock)
	if a.Backend == config.BackendBedrock {
		fmt.Println("Leave the IDs empty to read BEDROCK_AGENT_ID and BEDROCK_AGENT_ALIAS_ID at startup.")
		a.AgentID = prompt(reader, "Agent ID", "")
		a.AgentAliasID = prompt(reader, "Agent alias ID", "")
		a.Region = prompt(reader, "AWS region", config.DefaultRegion)
	}

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", config.DefaultHTTPAddr)
	a.ShowTrace = yes(prompt(reader, "Show agent traces by default?", "no"))

	fmt.Println("\n--- Ledger Configuration ---")
	a.DBPath = prompt(reader, "SQLite database path (\"none\" to disable)", defaultDBPath)
	if strings.EqualFold(a.DBPath, "none") {
		a.DBPath = ""
	}

	fmt.Println("\n--- Tailscale Configuration ---")
	a.Tailscale = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, "Tailscale hostname", config.DefaultHostname)
		a.TSAuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		a.TSEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
		a.TSFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")
	a.Metrics = yes(prompt(reader, "Expose Prometheus metrics?", "no"))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// 0600: the file may hold a tailscale auth key
	if err := os.WriteFile(outputFile, []byte(renderConfig(&a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if a.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(a.DBPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  alphabot serve\n")

	return nil
}

// renderConfig writes the answers as a YAML config file.
func renderConfig(a *initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# alphabot configuration\n")
	cfg.WriteString("# Generated by alphabot init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", a.HTTPAddr))
	cfg.WriteString("\n")

	cfg.WriteString("agent:\n")
	cfg.WriteString(fmt.Sprintf("  backend: \"%s\"\n", a.Backend))
	if a.Backend == config.BackendBedrock {
		if a.AgentID != "" {
			cfg.WriteString(fmt.Sprintf("  agent_id: \"%s\"\n", a.AgentID))
		}
		if a.AgentAliasID != "" {
			cfg.WriteString(fmt.Sprintf("  agent_alias_id: \"%s\"\n", a.AgentAliasID))
		}
		cfg.WriteString(fmt.Sprintf("  region: \"%s\"\n", a.Region))
	}
	cfg.WriteString("  invoke_timeout: \"2m\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", a.DBPath))
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString("  secret: \"${ALPHABOT_SESSION_SECRET}\"\n")
	cfg.WriteString(fmt.Sprintf("  show_trace: %t\n", a.ShowTrace))
	cfg.WriteString("  idle_timeout: \"24h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.Tailscale))
	if a.Tailscale {
		cfg.WriteString(fmt.Sprintf("  hostname: \"%s\"\n", a.TSHostname))
		if a.TSAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: \"%s\"\n", a.TSAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", a.TSEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", a.TSFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", a.LogFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.Metrics))
	cfg.WriteString("  path: \"/metrics\"\n")

	return cfg.String()
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
