// ABOUTME: Terminal client for a running alphabot server via its HTTP API
// ABOUTME: Sends prompts to POST /api/send and prints the streamed answer and steps

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/alphabot/internal/agent"
	"github.com/2389/alphabot/internal/session"
	"github.com/2389/alphabot/internal/webchat"
)

func main() {
	server := flag.String("server", defaultServer(), "alphabot server URL")
	sessionID := flag.String("session", "", "Resume an existing session")
	showTrace := flag.Bool("trace", false, "Show agent traces")
	flag.Parse()

	fmt.Printf("alphabot-tui connected to %s\n", *server)
	fmt.Println("Type a prompt and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &client{
		server:    strings.TrimSuffix(*server, "/"),
		http:      http.DefaultClient,
		sessionID: *sessionID,
		showTrace: *showTrace,
		out:       os.Stdout,
	}
	if err := c.run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func defaultServer() string {
	if u := os.Getenv("ALPHABOT_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

// client holds the REPL state. The session starts empty and is assigned by
// the server on the first prompt.
type client struct {
	server    string
	http      *http.Client
	sessionID string
	showTrace bool
	out       io.Writer
}

func (c *client) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(c.out, "> ")

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if err := c.handle(ctx, input); err != nil {
			fmt.Fprintf(c.out, "[error] %v\n", err)
		}
		fmt.Fprintln(c.out)
	}
}

func (c *client) handle(ctx context.Context, input string) error {
	switch input {
	case "/help":
		printHelp(c.out)
		return nil
	case "/session":
		if c.sessionID == "" {
			fmt.Fprintln(c.out, "No session yet; send a prompt to start one.")
		} else {
			fmt.Fprintf(c.out, "Session %s\n", c.sessionID)
		}
		return nil
	case "/new":
		c.sessionID = ""
		fmt.Fprintln(c.out, "The next prompt starts a new session.")
		return nil
	case "/trace":
		return c.toggleTrace(ctx)
	case "/history":
		return c.history(ctx)
	}
	if strings.HasPrefix(input, "/") {
		return fmt.Errorf("unknown command %s (try /help)", input)
	}
	return c.send(ctx, input)
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  /trace     Toggle Show Agent Traces")
	fmt.Fprintln(w, "  /history   Show this session's messages")
	fmt.Fprintln(w, "  /session   Show the session ID")
	fmt.Fprintln(w, "  /new       Start a new session with the next prompt")
	fmt.Fprintln(w, "  /help      Show this help")
	fmt.Fprintln(w, "  /quit      Exit the TUI")
}

// toggleTrace flips trace display locally and, once a session exists, on the server.
func (c *client) toggleTrace(ctx context.Context) error {
	show := !c.showTrace
	if c.sessionID != "" {
		var resp webchat.TraceResponse
		err := c.doJSON(ctx, http.MethodPost, "/api/sessions/"+c.sessionID+"/trace", webchat.TraceRequest{ShowTrace: &show}, &resp)
		if err != nil {
			return err
		}
		show = resp.ShowTrace
	}
	c.showTrace = show

	state := "off"
	if show {
		state = "on"
	}
	fmt.Fprintf(c.out, "Show Agent Traces: %s\n", state)
	return nil
}

// history prints the session's message log.
func (c *client) history(ctx context.Context) error {
	if c.sessionID == "" {
		fmt.Fprintln(c.out, "No session yet.")
		return nil
	}

	var resp webchat.SessionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions/"+c.sessionID, nil, &resp); err != nil {
		return err
	}

	if len(resp.Messages) == 0 {
		fmt.Fprintln(c.out, "No messages")
		return nil
	}
	fmt.Fprintln(c.out, strings.Repeat("-", 60))
	for _, m := range resp.Messages {
		prefix := color.GreenString("← ")
		if m.Role == session.RoleUser {
			prefix = color.BlueString("→ ")
		}
		fmt.Fprintf(c.out, "%s%s\n", prefix, truncate(agent.UnescapeDollars(m.Content), 200))
	}
	fmt.Fprintln(c.out, strings.Repeat("-", 60))
	return nil
}

// doJSON sends body (if any) as JSON and decodes the JSON response into v.
func (c *client) doJSON(ctx context.Context, method, path string, body, v any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// responseError turns a non-200 response into an error, preferring the
// server's JSON error message.
func responseError(resp *http.Response) error {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			if msg, ok := errResp["error"]; ok {
				return errors.New(msg)
			}
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

func (c *client) send(ctx context.Context, content string) error {
	bodyBytes, err := json.Marshal(webchat.SendRequest{SessionID: c.sessionID, Content: content})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/api/send", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	return streamSSE(ctx, resp.Body, c.handleEvent)
}

// streamSSE reads events from body and passes each to handle.
func streamSSE(ctx context.Context, body io.Reader, handle func(event, data string) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var eventType string
	var dataLines []string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if eventType != "" && len(dataLines) > 0 {
				if err := handle(eventType, strings.Join(dataLines, "\n")); err != nil {
					return err
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			continue
		}
	}

	return scanner.Err()
}

// Payloads of the events POST /api/send streams.
type (
	startedEvent struct {
		SessionID string `json:"session_id"`
	}
	answerEvent struct {
		Text string `json:"text"`
	}
	errorEvent struct {
		Error string `json:"error"`
	}
)

func decodeEvent[T any](data string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("parsing event data: %w", err)
	}
	return v, nil
}

func (c *client) handleEvent(eventType, data string) error {
	switch eventType {
	case "started":
		ev, err := decodeEvent[startedEvent](data)
		if err != nil {
			return err
		}
		if ev.SessionID != c.sessionID {
			c.sessionID = ev.SessionID
			fmt.Fprintln(c.out, color.HiBlackString("[session %s]", c.sessionID))
		}
		fmt.Fprintln(c.out, color.HiBlackString("Agent is researching..."))

	case "answer":
		ev, err := decodeEvent[answerEvent](data)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, agent.UnescapeDollars(ev.Text))

	case "step":
		if !c.showTrace {
			return nil
		}
		step, err := decodeEvent[webchat.StepEvent](data)
		if err != nil {
			return err
		}
		if step.Index == 1 {
			fmt.Fprintln(c.out, color.CyanString("\nView Processing Steps"))
		}
		fmt.Fprintf(c.out, "  %s  %s\n", color.HiBlackString("Step %d", step.Index), color.New(color.Bold).Sprint(step.Description))
		if step.Details != nil && *step.Details != "" {
			for _, line := range strings.Split(*step.Details, "\n") {
				fmt.Fprintf(c.out, "          %s\n", line)
			}
		}

	case "error":
		ev, err := decodeEvent[errorEvent](data)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, color.RedString("[error] %s", ev.Error))
	}

	return nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
