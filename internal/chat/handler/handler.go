package handler

import (
	"net/http"
	"time"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/chat/session"
	"github.com/TerutomiBaba/golferweb-chatsrv/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler owns the chat WebSocket endpoint: it upgrades connections, assigns
// connection identities, feeds inbound frames to the dispatcher and removes
// the session when the connection goes away.
type Handler struct {
	logger     *zap.Logger
	registry   *session.Registry
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
}

func NewHandler(logger *zap.Logger, registry *session.Registry, dispatcher *Dispatcher, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:     logger.Named("chat.handler"),
		registry:   registry,
		dispatcher: dispatcher,
		metrics:    m,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(*http.Request) bool {
				// The chat page is served from arbitrary event hosts.
				return true
			},
		},
	}
}

// HandleChat serves one WebSocket connection. Requests of a single
// connection are processed strictly sequentially by this read loop;
// concurrency exists only across connections.
func (h *Handler) HandleChat(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	conn := newWSConn(ws)
	h.metrics.ConnOpened()
	h.logger.Debug("connection opened", zap.String("connId", conn.ID()))

	defer func() {
		// The session must be gone before the close completes so no fan-out
		// can target a dead connection.
		h.registry.Remove(conn.ID())
		h.metrics.SetSessions(h.registry.Len())
		_ = ws.Close()
		h.metrics.ConnClosed()
		h.logger.Debug("connection closed", zap.String("connId", conn.ID()))
	}()

	for {
		messageType, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				h.logger.Error("connection read failed",
					zap.String("connId", conn.ID()),
					zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		response := h.dispatcher.Dispatch(c.Request.Context(), conn, frame)
		if err := conn.WriteText(response); err != nil {
			h.logger.Error("failed to write response",
				zap.String("connId", conn.ID()),
				zap.Error(err))
			return
		}
	}
}
