package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personacore/personad/runtime"
)

// echoGateway answers every message endpoint POST with a single echo reply
// and counts the requests it served.
func echoGateway(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, http.MethodPost, r.Method)

		var msg runtime.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "user", msg.UserID)
		assert.Equal(t, "User", msg.UserName)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]runtime.Reply{{User: "Echo", Text: "echo: " + msg.Text}})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func runBridge(t *testing.T, srv *httptest.Server, input string) string {
	t.Helper()
	var out strings.Builder
	b := New(Options{
		BaseURL: srv.URL,
		AgentID: "Echo",
		In:      strings.NewReader(input),
		Out:     &out,
	})
	require.NoError(t, b.Run(context.Background()))
	return out.String()
}

func TestRunExchangesMessages(t *testing.T) {
	srv, requests := echoGateway(t)

	out := runBridge(t, srv, "hello\nexit\n")

	assert.Equal(t, int64(1), requests.Load())
	assert.Contains(t, out, "Echo: echo: hello")
	assert.Contains(t, out, "Bye.")
}

func TestExitIssuesNoRequest(t *testing.T) {
	srv, requests := echoGateway(t)

	runBridge(t, srv, "exit\n")
	assert.Zero(t, requests.Load())

	// Case-insensitive, like the rest of the CLI surface.
	runBridge(t, srv, "EXIT\n")
	assert.Zero(t, requests.Load())
}

func TestBlankLinesSkipped(t *testing.T) {
	srv, requests := echoGateway(t)

	runBridge(t, srv, "\n   \nhi\nexit\n")
	assert.Equal(t, int64(1), requests.Load())
}

func TestEOFEndsLoop(t *testing.T) {
	srv, requests := echoGateway(t)

	runBridge(t, srv, "hi\n") // input ends without "exit"
	assert.Equal(t, int64(1), requests.Load())
}

func TestGatewayErrorKeepsLoopAlive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "agent not found"})
	}))
	t.Cleanup(srv.Close)

	out := runBridge(t, srv, "hi\nexit\n")
	assert.Contains(t, out, "agent not found")
	assert.Contains(t, out, "Bye.")
}

func TestCancelledContext(t *testing.T) {
	srv, _ := echoGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(Options{
		BaseURL: srv.URL,
		AgentID: "Echo",
		In:      strings.NewReader("hi\n"),
		Out:     &strings.Builder{},
	})
	assert.ErrorIs(t, b.Run(ctx), context.Canceled)
}
