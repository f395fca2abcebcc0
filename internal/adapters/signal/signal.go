// Package signal is the client side of the classroom gateway: one websocket
// carrying login, room membership, peer signals and room events.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/metrics"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("gateway connection closed")
)

// RemoteError is a failure reported by the gateway for one request.
type RemoteError struct {
	Request string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Request, e.Message)
}

type Options struct {
	SendBuffer   int
	EventBuffer  int
	WriteTimeout time.Duration
	// ChatLimit messages per ChatInterval; zero disables the limit.
	ChatLimit    int
	ChatInterval time.Duration
	Header       http.Header
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.ChatInterval <= 0 {
		o.ChatInterval = time.Second
	}
	return o
}

// frame is the envelope of every gateway message in both directions.
type frame struct {
	ID       string          `json:"id,omitempty"`
	Type     string          `json:"type"`
	Room     string          `json:"room,omitempty"`
	Event    core.EventName  `json:"event,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Snapshot *snapshot       `json:"snapshot,omitempty"`
	Error    string          `json:"error,omitempty"`
}

const (
	frameResponse = "response"
	frameEvent    = "event"
	framePing     = "ping"
	framePong     = "pong"
)

type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Client implements core.Messaging over the gateway websocket.
type Client struct {
	conn   *wsConn
	opts   Options
	wg     conc.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}

	events chan core.Event
	chat   *RateLimiter

	pendingMu sync.Mutex
	pending   map[string]chan frame

	roomsMu sync.RWMutex
	rooms   map[string]*classroom

	userMu   sync.RWMutex
	userUUID string
}

func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    &wsConn{conn: ws, send: make(chan []byte, opts.SendBuffer)},
		opts:    opts,
		cancel:  cancel,
		done:    make(chan struct{}),
		events:  make(chan core.Event, opts.EventBuffer),
		pending: make(map[string]chan frame),
		rooms:   make(map[string]*classroom),
	}
	if opts.ChatLimit > 0 {
		c.chat = NewRateLimiter(opts.ChatLimit, opts.ChatInterval)
	}
	c.wg.Go(func() { c.writePump(runCtx) })
	c.wg.Go(func() { c.readPump(runCtx) })
	log.Info().Str("module", "adapters.signal").Str("url", url).Msg("gateway connected")
	return c, nil
}

func (c *Client) Events() <-chan core.Event { return c.events }

// Close shuts the connection down and waits for the pumps.
func (c *Client) Close() {
	c.cancel()
	c.conn.Close()
	c.wg.Wait()
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Login(ctx context.Context, userUUID string) error {
	if err := c.call(ctx, "login", "", map[string]string{"userUuid": userUUID}, nil); err != nil {
		return err
	}
	c.userMu.Lock()
	c.userUUID = userUUID
	c.userMu.Unlock()
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.call(ctx, "logout", "", nil, nil); err != nil {
		return err
	}
	c.userMu.Lock()
	c.userUUID = ""
	c.userMu.Unlock()
	return nil
}

// CreateClassroom registers a room handle. Nothing is sent until Join.
func (c *Client) CreateClassroom(roomUUID, roomName string) (core.Classroom, error) {
	if roomUUID == "" {
		return nil, errors.New("empty room uuid")
	}
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	if cls, ok := c.rooms[roomUUID]; ok {
		return cls, nil
	}
	cls := newClassroom(c, roomUUID, roomName)
	c.rooms[roomUUID] = cls
	return cls, nil
}

func (c *Client) removeClassroom(roomUUID string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	if cls, ok := c.rooms[roomUUID]; ok {
		delete(c.rooms, roomUUID)
		close(cls.events)
	}
}

// Offer sends a local SDP offer for the RTC channel and returns the answer.
func (c *Client) Offer(ctx context.Context, p core.RTCParams, sdp string) (string, error) {
	var answer struct {
		SDP string `json:"sdp"`
	}
	req := map[string]string{
		"channel": p.Channel,
		"uid":     p.UID,
		"token":   p.Token,
		"sdp":     sdp,
	}
	if err := c.call(ctx, "rtcOffer", p.Channel, req, &answer); err != nil {
		return "", err
	}
	return answer.SDP, nil
}

// call sends one request and waits for the matching response.
func (c *Client) call(ctx context.Context, typ, room string, data any, out any) error {
	f := frame{ID: uuid.NewString(), Type: typ, Room: room}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", typ, err)
		}
		f.Data = b
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}

	resp := make(chan frame, 1)
	c.pendingMu.Lock()
	c.pending[f.ID] = resp
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, f.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.conn.TrySend(b); err != nil {
		return err
	}
	log.Debug().Str("module", "adapters.signal").Str("type", typ).Str("id", f.ID).Msg("request sent")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case r := <-resp:
		if r.Error != "" {
			return &RemoteError{Request: typ, Message: r.Error}
		}
		if r.Snapshot != nil && room != "" {
			c.applySnapshot(room, r.Snapshot)
		}
		if out != nil && len(r.Data) > 0 {
			if err := json.Unmarshal(r.Data, out); err != nil {
				return fmt.Errorf("decode %s response: %w", typ, err)
			}
		}
		return nil
	}
}

func (c *Client) applySnapshot(room string, s *snapshot) {
	c.roomsMu.RLock()
	cls, ok := c.rooms[room]
	c.roomsMu.RUnlock()
	if ok {
		cls.apply(s)
	}
}

// deliver routes an event to its room, or to the messaging channel when the
// frame has no room. A full channel drops the event.
func (c *Client) deliver(room string, ev core.Event) {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()
	ch := c.events
	if room != "" {
		cls, ok := c.rooms[room]
		if !ok {
			metrics.DroppedEvents.WithLabelValues("unknown_room").Inc()
			log.Warn().Str("module", "adapters.signal").Str("room", room).Str("event", string(ev.Name())).Msg("event for unknown room")
			return
		}
		ch = cls.events
	}
	select {
	case ch <- ev:
	default:
		metrics.DroppedEvents.WithLabelValues("backpressure").Inc()
		log.Warn().Str("module", "adapters.signal").Str("event", string(ev.Name())).Msg("event channel full, dropped")
	}
}

func (c *Client) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Msg("sendJSON marshal")
		return
	}
	if err := c.conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "adapters.signal").Msg("sendJSON")
	}
}
