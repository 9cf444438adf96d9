// ABOUTME: Bedrock Agents backend: invokes an agent alias and adapts its event stream.
// ABOUTME: SDK chunk members become content events; trace members become trace.Event values.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/2389/alphabot/internal/trace"
)

// ErrNoEventStream indicates the agent response carried no completion stream.
var ErrNoEventStream = errors.New("agent response has no event stream")

// AgentRuntimeAPI is the subset of the Bedrock agent runtime client used here.
type AgentRuntimeAPI interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// eventReader is satisfied by *bedrockagentruntime.InvokeAgentEventStream.
type eventReader interface {
	Events() <-chan types.ResponseStream
	Err() error
	Close() error
}

// BedrockConfig identifies the agent alias to invoke.
type BedrockConfig struct {
	AgentID      string
	AgentAliasID string
	EnableTrace  bool
}

// BedrockInvoker invokes a Bedrock agent alias.
type BedrockInvoker struct {
	client AgentRuntimeAPI
	cfg    BedrockConfig
	logger *slog.Logger
}

// NewBedrockInvoker creates an invoker for the configured agent alias.
func NewBedrockInvoker(client AgentRuntimeAPI, cfg BedrockConfig, logger *slog.Logger) *BedrockInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &BedrockInvoker{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "bedrock"),
	}
}

// Invoke sends req to the agent and returns its event stream.
func (b *BedrockInvoker) Invoke(ctx context.Context, req *InvokeRequest) (Stream, error) {
	out, err := b.client.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(b.cfg.AgentID),
		AgentAliasId: aws.String(b.cfg.AgentAliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.Prompt),
		EnableTrace:  aws.Bool(b.cfg.EnableTrace),
	})
	if err != nil {
		return nil, err
	}

	es := out.GetStream()
	if es == nil {
		return nil, ErrNoEventStream
	}

	b.logger.Debug("agent invocation started",
		"session_id", req.SessionID,
		"agent_id", b.cfg.AgentID,
		"alias_id", b.cfg.AgentAliasID,
	)
	return newBedrockStream(es, b.logger), nil
}

// bedrockStream converts SDK stream members into Events on its own goroutine.
type bedrockStream struct {
	reader eventReader
	events chan Event
	logger *slog.Logger

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	done      chan struct{}
}

func newBedrockStream(r eventReader, logger *slog.Logger) *bedrockStream {
	s := &bedrockStream{
		reader: r,
		events: make(chan Event),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *bedrockStream) run() {
	defer close(s.events)

	for member := range s.reader.Events() {
		ev, ok := convertStreamMember(member)
		if !ok {
			s.logger.Debug("skipping unsupported stream member", "type", fmt.Sprintf("%T", member))
			continue
		}
		if ev.Kind == EventContent {
			s.logger.Debug("answer chunk received", "bytes", len(ev.Bytes), "text", string(ev.Bytes))
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}

	if err := s.reader.Err(); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

func (s *bedrockStream) Events() <-chan Event { return s.events }

func (s *bedrockStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *bedrockStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.reader.Close()
	})
	return err
}

// convertStreamMember maps one SDK stream member to an Event. Members other
// than chunks and traces report ok=false.
func convertStreamMember(member types.ResponseStream) (Event, bool) {
	switch v := member.(type) {
	case *types.ResponseStreamMemberChunk:
		return ContentEvent(v.Value.Bytes), true
	case *types.ResponseStreamMemberTrace:
		return TraceEvent(TraceFromPart(v.Value)), true
	default:
		return Event{}, false
	}
}

// TraceFromPart converts an SDK trace part into the trace package's model.
// Union members that the normalizer does not inspect still mark their
// section as present.
func TraceFromPart(part types.TracePart) *trace.Event {
	ev := &trace.Event{
		AgentID:      aws.ToString(part.AgentId),
		AgentAliasID: aws.ToString(part.AgentAliasId),
		AgentVersion: aws.ToString(part.AgentVersion),
		SessionID:    aws.ToString(part.SessionId),
	}
	if part.Trace == nil {
		return ev
	}

	w := &trace.Wrapper{}
	switch t := part.Trace.(type) {
	case *types.TraceMemberPreProcessingTrace:
		w.PreProcessing = &trace.Phase{}
		if in, ok := t.Value.(*types.PreProcessingTraceMemberModelInvocationInput); ok {
			w.PreProcessing.ModelInvocationInput = modelInput(in.Value)
		}
	case *types.TraceMemberOrchestrationTrace:
		w.Orchestration = orchestrationFromSDK(t.Value)
	case *types.TraceMemberPostProcessingTrace:
		w.PostProcessing = &trace.Phase{}
		if in, ok := t.Value.(*types.PostProcessingTraceMemberModelInvocationInput); ok {
			w.PostProcessing.ModelInvocationInput = modelInput(in.Value)
		}
	default:
		// Guardrail, failure and routing traces carry nothing we display.
		return ev
	}
	ev.Trace = w
	return ev
}

func orchestrationFromSDK(ot types.OrchestrationTrace) *trace.Orchestration {
	o := &trace.Orchestration{}
	switch v := ot.(type) {
	case *types.OrchestrationTraceMemberModelInvocationInput:
		o.ModelInvocationInput = modelInput(v.Value)
	case *types.OrchestrationTraceMemberRationale:
		o.Rationale = &trace.Rationale{Text: v.Value.Text}
	case *types.OrchestrationTraceMemberInvocationInput:
		in := &trace.InvocationInput{InvocationType: enumPtr(string(v.Value.InvocationType))}
		if kb := v.Value.KnowledgeBaseLookupInput; kb != nil {
			in.KnowledgeBaseLookupInput = &trace.KnowledgeBaseLookupInput{
				KnowledgeBaseID: kb.KnowledgeBaseId,
				Text:            kb.Text,
			}
		}
		if ag := v.Value.ActionGroupInvocationInput; ag != nil {
			in.ActionGroupInvocationInput = &trace.ActionGroupInvocationInput{
				ActionGroupName: ag.ActionGroupName,
				APIPath:         ag.ApiPath,
				Verb:            ag.Verb,
				Function:        ag.Function,
			}
		}
		o.InvocationInput = in
	case *types.OrchestrationTraceMemberObservation:
		o.Observation = &trace.Observation{Type: enumPtr(string(v.Value.Type))}
	}
	return o
}

func modelInput(in types.ModelInvocationInput) *trace.ModelInvocationInput {
	return &trace.ModelInvocationInput{
		Type: enumPtr(string(in.Type)),
		Text: in.Text,
	}
}

// enumPtr maps an SDK enum to a tag pointer. The SDK uses "" for unset.
func enumPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
