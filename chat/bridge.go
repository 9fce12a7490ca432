// Package chat is the terminal bridge: it reads lines from the local
// terminal and relays them to a running gateway over loopback HTTP, so the
// REPL exercises the same path as any remote client.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/personacore/personad/runtime"
)

// exitCommand terminates the loop without issuing a request.
const exitCommand = "exit"

// Options configures a Bridge.
type Options struct {
	// BaseURL is the gateway root, e.g. "http://localhost:3000".
	BaseURL string

	// AgentID addresses the agent; names work too, the gateway resolves both.
	AgentID string

	// In and Out default to the process terminal when nil.
	In  io.Reader
	Out io.Writer

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Bridge is an interactive line-oriented chat session against one agent.
type Bridge struct {
	baseURL string
	agentID string
	in      io.Reader
	out     io.Writer
	client  *http.Client
	logger  *zap.Logger
}

// New creates a chat bridge.
func New(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Bridge{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		agentID: opts.AgentID,
		in:      opts.In,
		out:     opts.Out,
		client:  client,
		logger:  logger.With(zap.String("component", "chat")),
	}
}

// Run loops until the user types "exit", input ends, or ctx is cancelled.
// A failed request is reported and the loop keeps going.
func (b *Bridge) Run(ctx context.Context) error {
	fmt.Fprintf(b.out, "Chatting with %s. Type 'exit' to quit.\n", b.agentID)

	scanner := bufio.NewScanner(b.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(b.out, "You: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(b.out)
			return nil
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, exitCommand) {
			fmt.Fprintln(b.out, "Bye.")
			return nil
		}

		replies, err := b.send(ctx, text)
		if err != nil {
			b.logger.Warn("message failed", zap.Error(err))
			fmt.Fprintf(b.out, "(error: %v)\n", err)
			continue
		}
		for _, reply := range replies {
			fmt.Fprintf(b.out, "%s: %s\n", reply.User, reply.Text)
		}
	}
}

// send posts one message to the gateway and decodes the replies.
func (b *Bridge) send(ctx context.Context, text string) ([]runtime.Reply, error) {
	body, err := json.Marshal(runtime.Message{
		Text:     text,
		UserID:   "user",
		UserName: "User",
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/message", b.baseURL, b.agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("gateway: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("gateway: unexpected status %d", resp.StatusCode)
	}

	var replies []runtime.Reply
	if err := json.NewDecoder(resp.Body).Decode(&replies); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	return replies, nil
}
