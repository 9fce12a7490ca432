// Package gateway exposes the running agents over HTTP: a message endpoint
// per agent, an optional websocket stream, health, and Prometheus metrics.
package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/personacore/personad/internal/metrics"
	"github.com/personacore/personad/registry"
	"github.com/personacore/personad/runtime"
)

// Options configures the gateway.
type Options struct {
	// Registry resolves inbound agent IDs or names to runtimes.
	Registry *registry.Registry

	// Metrics records request and message outcomes when non-nil.
	Metrics *metrics.Collector

	// Gatherer serves /metrics; nil falls back to the default gatherer.
	Gatherer prometheus.Gatherer

	Logger *zap.Logger
}

// Gateway is the HTTP surface over the agent registry.
type Gateway struct {
	registry *registry.Registry
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// New creates a gateway over the given registry.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Gateway{
		registry: opts.Registry,
		metrics:  opts.Metrics,
		gatherer: gatherer,
		logger:   logger.With(zap.String("component", "gateway")),
	}
}

// Handler builds the gateway's route table.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /agents", g.handleAgents)
	mux.HandleFunc("POST /{agentId}/message", g.handleMessage)
	mux.HandleFunc("GET /{agentId}/ws", g.handleWebSocket)
	return g.instrument(mux)
}

// instrument records per-request metrics, keyed by the matched route pattern
// so agent IDs never explode label cardinality.
func (g *Gateway) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		g.metrics.RecordHTTPRequest(r.Method, pattern, strconv.Itoa(sw.status), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// Unwrap exposes the underlying writer so websocket upgrades can hijack
// the connection through this wrapper.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"agents": g.registry.Count(),
	})
}

func (g *Gateway) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": g.registry.Names(),
	})
}

func (g *Gateway) handleMessage(w http.ResponseWriter, r *http.Request) {
	rt, ok := g.registry.Get(r.PathValue("agentId"))
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}

	var msg runtime.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message body")
		return
	}

	start := time.Now()
	replies, err := rt.ProcessMessage(r.Context(), &msg)
	if err != nil {
		g.recordMessage(rt.Name(), "error", start)
		g.logger.Error("message processing failed",
			zap.String("agent", rt.Name()),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "message processing failed")
		return
	}
	g.recordMessage(rt.Name(), "ok", start)

	if replies == nil {
		replies = []runtime.Reply{}
	}
	writeJSON(w, http.StatusOK, replies)
}

// handleWebSocket streams messages over one connection. Only agents whose
// character declares a websocket client accept upgrades.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	rt, ok := g.registry.Get(r.PathValue("agentId"))
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if !rt.Character().DeclaresClient("websocket") {
		writeError(w, http.StatusNotFound, "agent has no websocket client")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket accept failed",
			zap.String("agent", rt.Name()),
			zap.Error(err))
		return
	}
	defer conn.CloseNow()

	logger := g.logger.With(zap.String("agent", rt.Name()))
	logger.Info("websocket session opened")

	for {
		var msg runtime.Message
		if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				logger.Info("websocket session closed")
			} else if r.Context().Err() == nil {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		start := time.Now()
		replies, err := rt.ProcessMessage(r.Context(), &msg)
		if err != nil {
			g.recordMessage(rt.Name(), "error", start)
			logger.Error("message processing failed", zap.Error(err))
			conn.Close(websocket.StatusInternalError, "message processing failed")
			return
		}
		g.recordMessage(rt.Name(), "ok", start)

		if replies == nil {
			replies = []runtime.Reply{}
		}
		if err := wsjson.Write(r.Context(), conn, replies); err != nil {
			logger.Warn("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (g *Gateway) recordMessage(agent, status string, start time.Time) {
	if g.metrics != nil {
		g.metrics.RecordAgentMessage(agent, status, time.Since(start))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
