package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bartermarket/backend/internal/metrics"
	"github.com/bartermarket/backend/internal/middleware"
	"github.com/bartermarket/backend/internal/services"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Ephemeral client frames relayed to another user. Nothing here is persisted.
const (
	FrameTyping       = "typing"
	FrameMarkAsRead   = "mark_as_read"
	FrameOnlineStatus = "user_online_status"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errUnknownFrame = errors.New("unknown frame type")

// ClientFrame is what a connected client may send.
type ClientFrame struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data,omitempty"`
}

type relayedFrame struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Hub struct {
	redis     *redis.Client
	publisher *Publisher
	log       *zap.Logger
}

func NewHub(client *redis.Client, publisher *Publisher, log *zap.Logger) *Hub {
	return &Hub{redis: client, publisher: publisher, log: log}
}

// ServeWS upgrades an authenticated request and streams the user's events
// until either side closes the connection.
// @Summary Real-time events
// @Description Websocket stream of the caller's notifications, messages and typing indicators
// @Tags Realtime
// @Security BearerAuth
// @Param token query string false "JWT when the Authorization header cannot be set"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /ws [get]
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if h.redis == nil {
		services.SendErrorResponse(w, "Real-time delivery is unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("[REALTIME] upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()
	h.log.Info("[REALTIME] connected", zap.String("user_id", userID))

	// The request context carries the router timeout, the socket outlives it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.redis.Subscribe(ctx, Channel(userID))
	defer pubsub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, conn, pubsub.Channel())
	}()

	h.readPump(ctx, conn, userID)
	cancel()
	<-done

	h.log.Info("[REALTIME] disconnected", zap.String("user_id", userID))
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, events <-chan *redis.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.log.Debug("[REALTIME] write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, userID string) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("[REALTIME] read error", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}

		if err := h.relay(ctx, userID, raw); err != nil {
			h.log.Debug("[REALTIME] frame dropped", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// relay forwards an ephemeral client frame to the addressed user.
func (h *Hub) relay(ctx context.Context, from string, raw []byte) error {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return err
	}

	switch frame.Type {
	case FrameTyping, FrameMarkAsRead, FrameOnlineStatus:
	default:
		return errUnknownFrame
	}
	if frame.To == "" || frame.To == from {
		return errors.New("frame has no recipient")
	}

	return h.publisher.Publish(ctx, frame.To, frame.Type, relayedFrame{From: from, Data: frame.Data})
}
