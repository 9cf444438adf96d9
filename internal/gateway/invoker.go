// ABOUTME: Builds the agent invoker for the configured backend
// ABOUTME: Bedrock clients load AWS credentials from config, the environment or a shared profile

package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"

	"github.com/2389/alphabot/internal/agent"
	"github.com/2389/alphabot/internal/config"
)

// NewInvoker returns the invoker for cfg.Agent.Backend.
func NewInvoker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (agent.Invoker, error) {
	switch cfg.Agent.Backend {
	case config.BackendEcho:
		logger.Warn("using the echo backend; prompts are not sent to an agent")
		return &agent.EchoInvoker{}, nil

	case config.BackendBedrock:
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("using bedrock agent",
			"agent_id", cfg.Agent.AgentID,
			"agent_alias_id", cfg.Agent.AgentAliasID,
			"region", awsCfg.Region,
			"enable_trace", cfg.Agent.TraceEnabled(),
		)
		client := bedrockagentruntime.NewFromConfig(awsCfg)
		return agent.NewBedrockInvoker(client, agent.BedrockConfig{
			AgentID:      cfg.Agent.AgentID,
			AgentAliasID: cfg.Agent.AgentAliasID,
			EnableTrace:  cfg.Agent.TraceEnabled(),
		}, logger), nil

	default:
		return nil, fmt.Errorf("unknown agent backend %q", cfg.Agent.Backend)
	}
}

// loadAWSConfig resolves region and credentials. Static keys from the config
// file win over the default chain (environment, shared files, instance role).
func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Agent.Region),
	}
	if cfg.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
	}
	if cfg.AWS.HasStaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, cfg.AWS.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}
