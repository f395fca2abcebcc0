package roomapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
)

// NewBoard binds the session token for later hands-up calls and returns the
// whiteboard session of the room.
func (c *Client) NewBoard(userToken, roomUUID string) core.BoardService {
	c.mu.Lock()
	c.token = userToken
	if roomUUID != "" {
		c.roomUUID = roomUUID
	}
	c.mu.Unlock()
	return &sessionService{client: c, kind: "board", token: userToken, room: roomUUID}
}

func (c *Client) NewRecord(userToken string) core.RecordService {
	c.mu.RLock()
	room := c.roomUUID
	c.mu.RUnlock()
	return &sessionService{client: c, kind: "record", token: userToken, room: room}
}

// sessionService is a join/leave pair on a room sub-resource.
type sessionService struct {
	client *Client
	kind   string
	token  string
	room   string
}

func (s *sessionService) path(op string) string {
	return "/v1/rooms/" + url.PathEscape(s.room) + "/" + s.kind + "/" + op
}

func (s *sessionService) Init(ctx context.Context) error {
	if s.room == "" {
		return ErrNoRoom
	}
	if err := s.client.do(ctx, http.MethodPost, s.path("join"), s.token, nil, nil); err != nil {
		return err
	}
	log.Info().Str("module", "adapters.roomapi").Str("service", s.kind).Str("room", s.room).Msg("session joined")
	return nil
}

func (s *sessionService) Leave(ctx context.Context) error {
	if s.room == "" {
		return nil
	}
	return s.client.do(ctx, http.MethodPost, s.path("leave"), s.token, nil, nil)
}
