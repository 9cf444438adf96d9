// ABOUTME: Service turns one user prompt into one agent invocation and two log entries
// ABOUTME: Invocation failures become the assistant's reply text; they never reach the caller

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/alphabot/internal/agent"
	"github.com/2389/alphabot/internal/metrics"
	"github.com/2389/alphabot/internal/session"
	"github.com/2389/alphabot/internal/store"
	"github.com/2389/alphabot/internal/trace"
)

// ErrEmptyPrompt is returned when the prompt is blank after trimming.
var ErrEmptyPrompt = errors.New("prompt is empty")

// recordTimeout bounds the best-effort ledger write after each invocation.
const recordTimeout = 5 * time.Second

// Options configures a Service. Every field is optional.
type Options struct {
	Recorder    store.Recorder
	Metrics     *metrics.Metrics
	Broadcaster *Broadcaster

	// AgentID and Backend label ledger rows and metrics.
	AgentID string
	Backend string

	// InvokeTimeout bounds each invocation. Zero means no limit.
	InvokeTimeout time.Duration

	Logger *slog.Logger
}

// Service runs prompts against the agent on behalf of chat sessions.
type Service struct {
	invoker agent.Invoker
	opts    Options
	logger  *slog.Logger
}

// New creates a Service backed by invoker.
func New(invoker agent.Invoker, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Backend == "" {
		opts.Backend = "unknown"
	}
	return &Service{
		invoker: invoker,
		opts:    opts,
		logger:  logger.With("component", "conversation"),
	}
}

// Ask sends prompt to the agent as sess and returns the assistant message
// appended to the log. It fails only for caller errors: ErrEmptyPrompt, or
// session.ErrBusy when sess already has a request in flight. An invocation
// failure yields an assistant message whose content is the error text.
//
// The invocation is detached from ctx: once started it runs to completion
// or until the configured invoke timeout.
func (s *Service) Ask(ctx context.Context, sess *session.Session, prompt string) (*session.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	if err := sess.Begin(); err != nil {
		s.opts.Metrics.BusyRejected()
		s.logger.Warn("rejected prompt for busy session", "session_id", sess.ID)
		return nil, err
	}
	defer sess.End()

	s.append(sess, session.NewMessage(session.RoleUser, prompt, nil))

	invCtx := context.WithoutCancel(ctx)
	if s.opts.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		invCtx, cancel = context.WithTimeout(invCtx, s.opts.InvokeTimeout)
		defer cancel()
	}

	started := time.Now()
	s.opts.Metrics.InvocationStarted()
	res := agent.Invoke(invCtx, s.invoker, &agent.InvokeRequest{
		Prompt:    prompt,
		SessionID: sess.ID,
	})
	elapsed := time.Since(started)

	var (
		content string
		steps   []trace.Step
		outcome = store.OutcomeOK
	)
	if res.Err != nil {
		outcome = store.OutcomeError
		content = res.Err.Error()
		s.logger.Error("agent invocation failed",
			"session_id", sess.ID,
			"duration", elapsed,
			"error", res.Err,
		)
	} else {
		content = res.Answer
		steps = trace.NormalizeAll(res.Traces)
		s.logger.Info("agent answered",
			"session_id", sess.ID,
			"duration", elapsed,
			"answer_bytes", len(content),
			"trace_events", len(res.Traces),
			"steps", len(steps),
		)
	}

	reply := session.NewMessage(session.RoleAssistant, content, steps)
	s.append(sess, reply)

	s.opts.Metrics.InvocationFinished(s.opts.Backend, outcome, elapsed, len(steps), len(res.Answer))
	s.record(&store.Invocation{
		ID:          uuid.New().String(),
		SessionID:   sess.ID,
		AgentID:     s.opts.AgentID,
		Backend:     s.opts.Backend,
		StartedAt:   started,
		Duration:    elapsed,
		PromptBytes: len(prompt),
		AnswerBytes: len(res.Answer),
		TraceEvents: len(res.Traces),
		Steps:       len(steps),
		Error:       errorText(res.Err),
	})

	return &reply, nil
}

func (s *Service) append(sess *session.Session, msg session.ChatMessage) {
	sess.Append(msg)
	if s.opts.Broadcaster != nil {
		s.opts.Broadcaster.Publish(sess.ID, msg)
	}
}

// record saves inv to the ledger. Failures are logged and counted only.
func (s *Service) record(inv *store.Invocation) {
	if s.opts.Recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := s.opts.Recorder.SaveInvocation(ctx, inv); err != nil {
		s.opts.Metrics.LedgerWriteFailed()
		s.logger.Warn("failed to record invocation",
			"invocation_id", inv.ID,
			"session_id", inv.SessionID,
			"error", err,
		)
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
