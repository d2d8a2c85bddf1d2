package handler

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/waveportal/waveledger/internal/waves"
)

const (
	// streamBuffer is the per-client event backlog. A client that falls
	// this far behind is disconnected rather than allowed to stall the
	// append path.
	streamBuffer = 64

	streamWriteWait = 10 * time.Second
)

// StreamHandler pushes every appended wave to connected WebSocket
// clients. Each connection is one ledger subscriber; slow or dead
// clients are dropped without affecting appends or other clients.
type StreamHandler struct {
	svc      *waves.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(svc *waves.Service, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The query surface is public; origin policy is enforced by
			// the CORS layer for the REST routes and is not re-checked here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the stream route on the given router group.
func (h *StreamHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/waves/stream", h.Stream)
}

// Stream handles GET /waves/stream — upgrades to a WebSocket and writes
// one JSON event per appended wave until the client disconnects.
func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	streamClientConnected()
	defer streamClientDisconnected()

	events := make(chan waves.Event, streamBuffer)
	done := make(chan struct{})
	var once sync.Once
	shutdown := func() { once.Do(func() { close(done) }) }

	sub := h.svc.Subscribe("stream:"+conn.RemoteAddr().String(), func(ev waves.Event) error {
		select {
		case events <- ev:
			return nil
		default:
			shutdown()
			return errors.New("stream client too slow, dropping")
		}
	})
	defer sub.Unsubscribe()

	// Discard incoming frames; the read loop only detects disconnects.
	go func() {
		defer shutdown()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait)) //nolint:errcheck
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
