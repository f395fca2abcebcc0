package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/metrics"
)

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.conn.send:
			if !ok {
				log.Info().Str("module", "adapters.signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump set deadline")
				c.conn.Close()
				return
			}
			if err := c.conn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("writePump write error")
				c.conn.Close()
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		log.Info().Str("module", "adapters.signal").Msg("readPump closing")
		c.conn.Close()
		close(c.done)
		c.shutdownChannels()
	}()

	for {
		_, data, err := c.conn.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "adapters.signal").Msg("readPump read error")
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("bad json")
		return
	}

	switch f.Type {
	case frameResponse:
		c.pendingMu.Lock()
		ch, ok := c.pending[f.ID]
		c.pendingMu.Unlock()
		if !ok {
			log.Warn().Str("module", "adapters.signal").Str("id", f.ID).Msg("response without request")
			return
		}
		ch <- f
	case frameEvent:
		c.handleEvent(f)
	case framePing:
		c.handlePing()
	default:
		log.Warn().Str("module", "adapters.signal").Str("type", f.Type).Msg("unknown frame")
	}
}

func (c *Client) handleEvent(f frame) {
	if f.Snapshot != nil && f.Room != "" {
		c.applySnapshot(f.Room, f.Snapshot)
	}
	ev, err := core.DecodeEvent(f.Event, f.Data)
	if err != nil {
		reason := "bad_payload"
		if errors.Is(err, core.ErrUnknownEvent) {
			reason = "unknown_event"
		}
		metrics.DroppedEvents.WithLabelValues(reason).Inc()
		log.Warn().Err(err).Str("module", "adapters.signal").Str("event", string(f.Event)).Msg("dropping event")
		return
	}
	if upd, ok := ev.(core.ClassroomPropertyUpdated); ok && f.Room != "" {
		c.roomsMu.RLock()
		if cls, ok := c.rooms[f.Room]; ok {
			cls.setInfo(upd.Classroom)
		}
		c.roomsMu.RUnlock()
	}
	c.deliver(f.Room, ev)
}

// shutdownChannels closes every event channel after the read pump exits and
// fails requests still waiting.
func (c *Client) shutdownChannels() {
	c.roomsMu.Lock()
	for id, cls := range c.rooms {
		close(cls.events)
		delete(c.rooms, id)
	}
	close(c.events)
	c.roomsMu.Unlock()
}
