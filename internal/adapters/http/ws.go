package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS pushes the view after every scene change and on a slow ticker for
// the parts of the view that do not notify.
func (h *handlers) handleWS(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	changes, unsubscribe := h.sess.Subscribe()

	go h.readPump(cancel, sid, ws)
	go func() {
		defer unsubscribe()
		h.writePump(ctx, sid, ws, changes)
	}()
}

func (h *handlers) writePump(ctx context.Context, sid string, ws *websocket.Conn, changes <-chan struct{}) {
	ticker := time.NewTicker(h.pushPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
		log.Info().Str("module", "adapters.http").Str("sid", sid).Msg("ws writePump closed")
	}()

	var last []byte
	for {
		b, err := json.Marshal(h.snapshot())
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("view marshal")
			return
		}
		if string(b) != string(last) {
			if err := ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Str("sid", sid).Msg("ws write")
				return
			}
			last = b
		}
		select {
		case <-ctx.Done():
			return
		case <-changes:
		case <-ticker.C:
		}
	}
}

// readPump only watches for the client going away.
func (h *handlers) readPump(cancel context.CancelFunc, sid string, ws *websocket.Conn) {
	defer cancel()
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			log.Info().Str("module", "adapters.http").Str("sid", sid).Msg("ws client gone")
			return
		}
	}
}
