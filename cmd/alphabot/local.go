// ABOUTME: Terminal chat commands that call the agent directly, without the server
// ABOUTME: ask sends one prompt; chat is a REPL with trace toggling and session resets

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/alphabot/internal/agent"
	"github.com/2389/alphabot/internal/config"
	"github.com/2389/alphabot/internal/conversation"
	"github.com/2389/alphabot/internal/gateway"
	"github.com/2389/alphabot/internal/session"
	"github.com/2389/alphabot/internal/trace"
)

// newLocalService builds a conversation service for terminal use. Logs go to
// stderr and stay quiet below warn unless debug is configured.
func newLocalService(ctx context.Context, cfg *config.Config) (*conversation.Service, error) {
	logCfg := cfg.Logging
	if logCfg.Level != "debug" {
		logCfg.Level = "warn"
	}
	logger := setupLogger(logCfg, os.Stderr)

	invoker, err := gateway.NewInvoker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := conversation.New(invoker, conversation.Options{
		AgentID:       cfg.Agent.AgentID,
		Backend:       cfg.Agent.Backend,
		InvokeTimeout: cfg.Agent.InvokeTimeout,
		Logger:        logger,
	})
	return svc, nil
}

func runAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	showTrace := fs.Bool("trace", false, "Print the agent's processing steps")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return errors.New("usage: alphabot ask [--trace] PROMPT")
	}

	cfg, err := loadConfig(config.DefaultPath())
	if err != nil {
		return err
	}

	svc, err := newLocalService(ctx, cfg)
	if err != nil {
		return err
	}

	sess := session.New(session.NewID(), *showTrace)
	reply, err := svc.Ask(ctx, sess, prompt)
	if err != nil {
		return err
	}

	printReply(os.Stdout, reply, *showTrace)
	return nil
}

func runChat(ctx context.Context) error {
	cfg, err := loadConfig(config.DefaultPath())
	if err != nil {
		return err
	}

	svc, err := newLocalService(ctx, cfg)
	if err != nil {
		return err
	}

	r := &repl{
		svc:  svc,
		sess: session.New(session.NewID(), cfg.Session.ShowTrace),
		out:  os.Stdout,
	}

	color.New(color.FgCyan, color.Bold).Println(cfg.WebChat.Heading)
	fmt.Printf("Session %s. Type a prompt and press Enter. /help for commands. Ctrl+C to quit.\n\n", r.sess.ID)

	return r.run(ctx, os.Stdin)
}

// repl is the terminal chat loop.
type repl struct {
	svc  *conversation.Service
	sess *session.Session
	out  io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
		} else {
			errCh <- io.EOF
		}
	}()

	for {
		fmt.Fprint(r.out, "> ")

		var input string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case err := <-errCh:
			fmt.Fprintln(r.out)
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-lines:
		}

		quit, err := r.handle(ctx, strings.TrimSpace(input))
		if err != nil {
			fmt.Fprintf(r.out, "[error] %v\n", err)
		}
		if quit {
			return nil
		}
		fmt.Fprintln(r.out)
	}
}

// handle runs one line of input and reports whether the loop should end.
func (r *repl) handle(ctx context.Context, input string) (bool, error) {
	switch {
	case input == "":
		return false, nil

	case input == "/quit" || input == "/exit" || input == "/q":
		return true, nil

	case input == "/help":
		fmt.Fprintln(r.out, "Commands:")
		fmt.Fprintln(r.out, "  /trace     Toggle Show Agent Traces")
		fmt.Fprintln(r.out, "  /session   Show the session ID")
		fmt.Fprintln(r.out, "  /new       Start a new session")
		fmt.Fprintln(r.out, "  /help      Show this help")
		fmt.Fprintln(r.out, "  /quit      Exit")
		return false, nil

	case input == "/trace":
		state := "off"
		if r.sess.ToggleTrace() {
			state = "on"
		}
		fmt.Fprintf(r.out, "Show Agent Traces: %s\n", state)
		return false, nil

	case input == "/session":
		fmt.Fprintf(r.out, "Session %s (%d messages)\n", r.sess.ID, r.sess.Len())
		return false, nil

	case input == "/new":
		r.sess = session.New(session.NewID(), r.sess.ShowTrace())
		fmt.Fprintf(r.out, "Started session %s\n", r.sess.ID)
		return false, nil

	case strings.HasPrefix(input, "/"):
		return false, fmt.Errorf("unknown command %s (try /help)", input)
	}

	color.New(color.FgHiBlack).Fprintln(r.out, "Agent is researching...")
	reply, err := r.svc.Ask(ctx, r.sess, input)
	if err != nil {
		return false, err
	}
	printReply(r.out, reply, r.sess.ShowTrace())
	return false, nil
}

// printReply writes an answer and, when showTrace is set and the answer has
// any, its numbered steps.
func printReply(w io.Writer, reply *session.ChatMessage, showTrace bool) {
	fmt.Fprintln(w, agent.UnescapeDollars(reply.Content))
	if showTrace && len(reply.Trace) > 0 {
		printSteps(w, reply.Trace)
	}
}

func printSteps(w io.Writer, steps []trace.Step) {
	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)

	fmt.Fprintln(w)
	color.New(color.FgCyan).Fprintln(w, "View Processing Steps")
	for i, s := range steps {
		gray.Fprintf(w, "  Step %d  ", i+1)
		bold.Fprintln(w, s.Description)
		if s.HasDetails() {
			for _, line := range strings.Split(s.DetailsText(), "\n") {
				fmt.Fprintf(w, "          %s\n", line)
			}
		}
	}
}
