package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"docqa/internal/worker"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type EventSource interface {
	Subscribe(buffer int) *worker.Subscription
}

// EventsHandler streams worker events to websocket clients as JSON frames.
type EventsHandler struct {
	source   EventSource
	buffer   int
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewEventsHandler(source EventSource, buffer int, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		source: source,
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.Named("events"),
	}
}

// Stream upgrades the request and forwards events until either side goes
// away. The optional request_id query parameter narrows the stream to one
// request.
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.source.Subscribe(h.buffer)
	defer sub.Close()

	filter := c.Query("request_id")
	gone := h.readPump(conn)
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "worker closed"),
					time.Now().Add(writeWait))
				return
			}
			if filter != "" && ev.RequestID != filter {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// readPump discards client frames and closes the returned channel once the
// peer disconnects or stops answering pings.
func (h *EventsHandler) readPump(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return gone
}
