package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/canvasflow/bus"
	"github.com/BaSui01/canvasflow/internal/metrics"
	"github.com/BaSui01/canvasflow/store"
	"github.com/BaSui01/canvasflow/types"
)

// =============================================================================
// 🎨 Canvas gateway handlers
// =============================================================================

// GatewayConfig tunes the gateway handlers.
type GatewayConfig struct {
	// RecordTTL stamps pending records written for selections.
	RecordTTL time.Duration

	// WSSendRPS/WSSendBurst pace outbound websocket frames per client.
	WSSendRPS   float64
	WSSendBurst int

	// Registry serves /metrics; nil uses the default gatherer.
	Registry prometheus.Gatherer
}

// DefaultGatewayConfig returns the default gateway tuning.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		RecordTTL:   types.DefaultRecordTTL,
		WSSendRPS:   50,
		WSSendBurst: 100,
	}
}

// Gateway bridges remote catalog views and canvas clients into the
// in-process delivery channels. A selection POST fans out on both
// channels: the broadcast bus for mounted canvases and the durable
// pending record for ones that have not mounted yet.
type Gateway struct {
	bus     bus.EventBus
	kv      store.KeyValueStore
	config  GatewayConfig
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewGateway creates the gateway handler set.
func NewGateway(eventBus bus.EventBus, kv store.KeyValueStore, config GatewayConfig, collector *metrics.Collector, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		bus:     eventBus,
		kv:      kv,
		config:  config,
		metrics: collector,
		logger:  logger.With(zap.String("component", "gateway")),
	}
}

// Handler returns the gateway's routed handler with the standard
// middleware chain applied.
func (g *Gateway) Handler(ctx context.Context, rps float64, burst int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/selections", g.handleSelections)
	mux.HandleFunc("GET /ws", g.handleWS)
	mux.HandleFunc("GET /healthz", g.handleHealthz)

	gatherer := g.config.Registry
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return Chain(mux,
		Recovery(g.logger),
		RequestID(),
		SecurityHeaders(),
		RateLimiter(ctx, rps, burst, []string{"/ws"}, g.logger),
		RequestLogger(g.logger),
	)
}

// selectionRequest is the POST /api/v1/selections payload.
type selectionRequest struct {
	TabID  string            `json:"tabId"`
	Agents []types.AgentItem `json:"agents"`
}

// handleSelections accepts a catalog selection and delivers it on both
// channels. The pending record covers a target tab that misses the
// broadcast; whichever canvas instance inspects it first consumes it.
func (g *Gateway) handleSelections(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TabID == "" {
		writeError(w, http.StatusBadRequest, "tabId is required")
		return
	}
	if len(req.Agents) == 0 {
		writeError(w, http.StatusBadRequest, "agents must not be empty")
		return
	}
	for _, a := range req.Agents {
		if a.ID == "" {
			writeError(w, http.StatusBadRequest, "every agent needs an id")
			return
		}
	}

	now := time.Now()

	// Channel B first: the durable record for a not-yet-mounted target.
	// A mounted canvas that accepts the broadcast discards its copy, so
	// the record must already be there when the broadcast lands.
	rec := types.NewPendingDeliveryRecord(req.TabID, req.Agents, now)
	raw, err := rec.Encode()
	if err != nil {
		g.logger.Error("failed to encode pending record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist selection")
		return
	}
	err = g.kv.Set(r.Context(), types.PendingAgentsKey, raw)
	g.metrics.RecordKVOp("set", err)
	if err != nil {
		g.logger.Error("failed to write pending record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist selection")
		return
	}

	// Channel A: broadcast to mounted canvases.
	g.bus.Publish(bus.AgentsSelectedEvent{
		DeliveryID: rec.DeliveryID,
		TabID:      req.TabID,
		Agents:     req.Agents,
		At:         now,
	})

	g.logger.Info("selection accepted",
		zap.String("tab_id", req.TabID),
		zap.Int("items", len(req.Agents)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "accepted",
		"tabId":  req.TabID,
		"count":  len(req.Agents),
	})
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// wsMessage is an outbound websocket frame.
type wsMessage struct {
	Type       string            `json:"type"`
	TabID      string            `json:"tabId"`
	Agents     []types.AgentItem `json:"agents,omitempty"`
	NodesAdded int               `json:"nodesAdded,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// handleWS streams bus deliveries for one tab to a remote canvas
// client. Sends are paced per connection; a slow client drops frames
// rather than backing up the bus.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	tabID := r.URL.Query().Get("tab")
	if tabID == "" {
		writeError(w, http.StatusBadRequest, "tab query parameter is required")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	g.metrics.WSConnected()
	defer g.metrics.WSDisconnected()

	// Reads are only consumed to learn about client close.
	ctx := conn.CloseRead(r.Context())

	outbound := make(chan wsMessage, 32)
	deliver := func(msg wsMessage) {
		select {
		case outbound <- msg:
		default:
			g.logger.Warn("websocket client too slow, dropping frame",
				zap.String("tab_id", tabID),
			)
		}
	}

	subSelected := g.bus.Subscribe(bus.EventAddAgentsToWorkflow, func(e bus.Event) {
		evt, ok := e.(bus.AgentsSelectedEvent)
		if !ok || evt.TabID != tabID {
			return
		}
		deliver(wsMessage{
			Type:      string(bus.EventAddAgentsToWorkflow),
			TabID:     evt.TabID,
			Agents:    evt.Agents,
			Timestamp: evt.At.UnixMilli(),
		})
	})
	defer g.bus.Unsubscribe(subSelected)

	subModified := g.bus.Subscribe(bus.EventCanvasModified, func(e bus.Event) {
		evt, ok := e.(bus.CanvasModifiedEvent)
		if !ok || evt.TabID != tabID {
			return
		}
		deliver(wsMessage{
			Type:       string(bus.EventCanvasModified),
			TabID:      evt.TabID,
			NodesAdded: evt.NodesAdded,
			Timestamp:  evt.At.UnixMilli(),
		})
	})
	defer g.bus.Unsubscribe(subModified)

	g.logger.Info("websocket client connected", zap.String("tab_id", tabID))

	limiter := rate.NewLimiter(rate.Limit(g.config.WSSendRPS), g.config.WSSendBurst)
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("websocket client disconnected", zap.String("tab_id", tabID))
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case msg := <-outbound:
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				g.logger.Error("failed to marshal ws frame", zap.Error(err))
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				g.logger.Info("websocket write failed, closing",
					zap.String("tab_id", tabID),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
