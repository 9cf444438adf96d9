// Package config handles configuration loading for alphabot.
//
// # Configuration File
//
// Default location (in order):
//
//  1. Path from ALPHABOT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/alphabot/config.yaml
//  3. ~/.config/alphabot/config.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML.
//
// # Environment
//
// Before the file is read, KEY=value pairs from .env in the working
// directory (or the file named by ALPHABOT_ENV_FILE) are loaded into the
// process environment. Variables already set are not overridden.
//
// Configuration values can then reference environment variables:
//
//	aws:
//	  access_key_id: "${AWS_ACCESS_KEY_ID}"
//
// Only the ${VAR_NAME} form is expanded. Unset variables expand to "".
//
// When agent.agent_id or agent.agent_alias_id is empty, BEDROCK_AGENT_ID and
// BEDROCK_AGENT_ALIAS_ID are used. agent.region falls back to AWS_REGION,
// then us-east-1.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//
//	agent:
//	  backend: "bedrock"        # bedrock, echo
//	  agent_id: "${BEDROCK_AGENT_ID}"
//	  agent_alias_id: "${BEDROCK_AGENT_ALIAS_ID}"
//	  region: "us-east-1"
//	  enable_trace: true
//	  invoke_timeout: "5m"      # 0 or empty: no limit
//
//	aws:
//	  profile: ""               # empty fields use the SDK credential chain
//
//	database:
//	  path: ""                  # empty disables the invocation ledger
//
//	session:
//	  secret: "${ALPHABOT_SESSION_SECRET}"
//	  idle_timeout: "1h"        # 0 or empty: sessions never expire
//	  show_trace: false
//
//	tailscale:
//	  enabled: false
//	  hostname: "alphabot"
//	  https: true
//	  funnel: false
//
//	logging:
//	  level: "info"             # debug, info, warn, error
//	  format: "text"            # text, json
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
//
//	webchat:
//	  title: "ThinkAlpha-DemoChatbot"
//	  heading: "Alphabot-Financial Assistant"
//
// # Validation
//
// Load applies defaults and then returns the first validation failure:
// missing listener address, unknown backend, missing Bedrock agent ids,
// negative durations, half-configured static credentials, and unknown
// logging values.
package config
