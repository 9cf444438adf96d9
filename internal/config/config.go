// ABOUTME: Configuration loading and parsing for alphabot
// ABOUTME: Supports YAML or TOML files with .env loading, environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389/alphabot/internal/auth"
)

// Agent backends.
const (
	BackendBedrock = "bedrock"
	BackendEcho    = "echo"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultHTTPAddr    = "localhost:8080"
	DefaultRegion      = "us-east-1"
	DefaultTitle       = "ThinkAlpha-DemoChatbot"
	DefaultHeading     = "Alphabot-Financial Assistant"
	DefaultMetricsPath = "/metrics"
	DefaultHostname    = "alphabot"
)

// Config represents the complete alphabot configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Agent     AgentConfig     `yaml:"agent" toml:"agent"`
	AWS       AWSConfig       `yaml:"aws" toml:"aws"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	WebChat   WebChatConfig   `yaml:"webchat" toml:"webchat"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public Funnel, implies HTTPS
}

// AgentConfig selects and addresses the remote agent
type AgentConfig struct {
	Backend      string `yaml:"backend" toml:"backend"`
	AgentID      string `yaml:"agent_id" toml:"agent_id"`
	AgentAliasID string `yaml:"agent_alias_id" toml:"agent_alias_id"`
	Region       string `yaml:"region" toml:"region"`

	// EnableTrace defaults to true when unset.
	EnableTrace *bool `yaml:"enable_trace" toml:"enable_trace"`

	InvokeTimeout    time.Duration `yaml:"-" toml:"-"`
	InvokeTimeoutRaw string        `yaml:"invoke_timeout" toml:"invoke_timeout"`
}

// TraceEnabled reports whether the agent should be asked for trace events.
func (a AgentConfig) TraceEnabled() bool {
	return a.EnableTrace == nil || *a.EnableTrace
}

// AWSConfig holds optional static credentials. Empty fields fall through to
// the SDK's default credential chain.
type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key"`
	SessionToken    string `yaml:"session_token" toml:"session_token"`
	Profile         string `yaml:"profile" toml:"profile"`
}

// HasStaticCredentials reports whether an access key pair is configured.
func (a AWSConfig) HasStaticCredentials() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != ""
}

// DatabaseConfig holds the invocation ledger location. An empty path
// disables the ledger.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// SessionConfig holds chat session settings
type SessionConfig struct {
	Secret     string `yaml:"secret" toml:"secret"`
	CookieName string `yaml:"cookie_name" toml:"cookie_name"`
	ShowTrace  bool   `yaml:"show_trace" toml:"show_trace"`

	IdleTimeout    time.Duration `yaml:"-" toml:"-"`
	IdleTimeoutRaw string        `yaml:"idle_timeout" toml:"idle_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// WebChatConfig holds chat page configuration
type WebChatConfig struct {
	Title   string `yaml:"title" toml:"title"`
	Heading string `yaml:"heading" toml:"heading"`
	// BaseURL is the external URL printed at startup. If not set, it is
	// derived from server.http_addr or the tailscale hostname.
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// DefaultPath returns the path to the config file.
// Priority: ALPHABOT_CONFIG env var > XDG_CONFIG_HOME/alphabot/config.yaml > ~/.config/alphabot/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("ALPHABOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "alphabot", "config.yaml")
}

// DataPath returns the alphabot data directory.
// Priority: XDG_DATA_HOME/alphabot > ~/.local/share/alphabot
func DataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "alphabot")
}

// LoadEnvFile loads KEY=value pairs from path (ALPHABOT_ENV_FILE, or .env
// when empty) into the process environment. Variables that are already set
// win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = os.Getenv("ALPHABOT_ENV_FILE")
	}
	if path == "" {
		path = ".env"
	}

	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Load reads a configuration file from the given path and returns a parsed Config.
// The .env file is loaded first, then ${VAR_NAME} patterns are expanded.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(""); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
}

// Parse decodes configuration content. It expands environment variables,
// parses durations, applies defaults and validates.
func Parse(data []byte, isTOML bool) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyDefaults fills unset values. Agent identifiers fall back to the
// BEDROCK_AGENT_ID and BEDROCK_AGENT_ALIAS_ID environment variables.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = DefaultHostname
	}

	if c.Agent.Backend == "" {
		c.Agent.Backend = BackendBedrock
	}
	if c.Agent.AgentID == "" {
		c.Agent.AgentID = os.Getenv("BEDROCK_AGENT_ID")
	}
	if c.Agent.AgentAliasID == "" {
		c.Agent.AgentAliasID = os.Getenv("BEDROCK_AGENT_ALIAS_ID")
	}
	if c.Agent.Region == "" {
		c.Agent.Region = os.Getenv("AWS_REGION")
	}
	if c.Agent.Region == "" {
		c.Agent.Region = DefaultRegion
	}

	if c.Session.CookieName == "" {
		c.Session.CookieName = auth.DefaultCookieName
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.WebChat.Title == "" {
		c.WebChat.Title = DefaultTitle
	}
	if c.WebChat.Heading == "" {
		c.WebChat.Heading = DefaultHeading
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Agent.Backend {
	case BackendBedrock:
		if c.Agent.AgentID == "" {
			return fmt.Errorf("agent.agent_id is required for the bedrock backend (or set BEDROCK_AGENT_ID)")
		}
		if c.Agent.AgentAliasID == "" {
			return fmt.Errorf("agent.agent_alias_id is required for the bedrock backend (or set BEDROCK_AGENT_ALIAS_ID)")
		}
	case BackendEcho:
	default:
		return fmt.Errorf("agent.backend must be %q or %q, got %q", BackendBedrock, BackendEcho, c.Agent.Backend)
	}

	if c.Agent.InvokeTimeout < 0 {
		return fmt.Errorf("agent.invoke_timeout must not be negative")
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session.idle_timeout must not be negative")
	}

	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return fmt.Errorf("aws.access_key_id and aws.secret_access_key must be set together")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if err := CheckMetricsPath(c.Metrics.Path); err != nil {
		return err
	}

	return nil
}

// Paths served by the chat itself. Metrics may not be mounted on them.
var (
	reservedPaths    = []string{"/", "/send", "/trace", "/new", "/health", "/health/ready"}
	reservedPrefixes = []string{"/api/", "/static/"}
)

// CheckMetricsPath reports whether path can serve metrics next to the chat
// routes without colliding with them.
func CheckMetricsPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	if strings.ContainsAny(path, "{} \t") {
		return fmt.Errorf("metrics.path %q must be a literal path", path)
	}
	trimmed := strings.TrimSuffix(path, "/")
	for _, r := range reservedPaths {
		if path == r || (trimmed != "" && trimmed == r) {
			return fmt.Errorf("metrics.path %q is already served by the chat", path)
		}
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(path+"/", prefix) {
			return fmt.Errorf("metrics.path %q is under %s, which the chat serves", path, prefix)
		}
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agent.InvokeTimeoutRaw != "" {
		cfg.Agent.InvokeTimeout, err = time.ParseDuration(cfg.Agent.InvokeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing invoke_timeout %q: %w", cfg.Agent.InvokeTimeoutRaw, err)
		}
	}

	if cfg.Session.IdleTimeoutRaw != "" {
		cfg.Session.IdleTimeout, err = time.ParseDuration(cfg.Session.IdleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing idle_timeout %q: %w", cfg.Session.IdleTimeoutRaw, err)
		}
	}

	return nil
}
