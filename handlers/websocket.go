package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/RipinDensumite/thinwatcher/middleware"
	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/services"
	"github.com/RipinDensumite/thinwatcher/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// StreamHandler pushes live presence events to dashboards over WebSocket.
type StreamHandler struct {
	presence *services.PresenceService
	upgrader websocket.Upgrader
	logger   *utils.Logger
}

func NewStreamHandler(presence *services.PresenceService, origins []string, logger *utils.Logger) *StreamHandler {
	return &StreamHandler{
		presence: presence,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.AllowedOrigin(origins, r.Header.Get("Origin"))
			},
		},
	}
}

// Serve handles GET /ws. The viewer is subscribed before the snapshot is
// taken so no change between the two is lost.
func (h *StreamHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	hub := h.presence.Hub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	logger := h.logger.With("remote_addr", c.ClientIP())
	if claims, ok := middleware.ClaimsFrom(c); ok {
		logger = logger.With("username", claims.Username)
	}
	logger.Info("Dashboard connected")
	defer logger.Info("Dashboard disconnected")

	initial := models.StreamMessage{Event: models.EventInitialData, Data: h.presence.ListClients()}
	if err := writeMessage(conn, initial); err != nil {
		return
	}

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-sub.C:
			if !ok {
				// Dropped for falling behind; the dashboard reconnects and
				// receives a fresh snapshot.
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync required"))
				return
			}
			if err := writeMessage(conn, event.Message()); err != nil {
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

func writeMessage(conn *websocket.Conn, msg models.StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// readPump discards client messages and keeps the read deadline fresh. It
// closes done when the connection goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
