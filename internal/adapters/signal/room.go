package signal

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// snapshot is a partial room state pushed by the gateway. Nil fields are
// left unchanged; lists always replace the cached ones.
type snapshot struct {
	UserToken   *string             `json:"userToken,omitempty"`
	MainStream  *core.MainStream    `json:"mainStream,omitempty"`
	Users       []domain.User       `json:"users,omitempty"`
	Streams     []domain.Stream     `json:"streams,omitempty"`
	LocalStream *domain.LocalStream `json:"localStream,omitempty"`
	LocalScreen *domain.LocalStream `json:"localScreen,omitempty"`
	Classroom   map[string]any      `json:"classroom,omitempty"`
}

// classroom implements core.Classroom on top of the shared gateway connection.
type classroom struct {
	client *Client
	uuid   string
	name   string
	events chan core.Event
	us     *userService

	mu      sync.RWMutex
	token   string
	main    core.MainStream
	users   []domain.User
	streams []domain.Stream
	local   *domain.LocalStream
	screen  *domain.LocalStream
	info    core.ClassroomInfo
}

func newClassroom(c *Client, roomUUID, roomName string) *classroom {
	cls := &classroom{
		client: c,
		uuid:   roomUUID,
		name:   roomName,
		events: make(chan core.Event, c.opts.EventBuffer),
	}
	cls.info.RoomInfo = core.RoomInfo{RoomUUID: roomUUID, RoomName: roomName}
	cls.us = &userService{cls: cls}
	return cls
}

func (r *classroom) Events() <-chan core.Event { return r.events }

func (r *classroom) Join(ctx context.Context, p core.JoinParams) error {
	if err := r.client.call(ctx, "join", r.uuid, p, nil); err != nil {
		return err
	}
	log.Info().Str("module", "adapters.signal").Str("room", r.uuid).Str("role", string(p.UserRole)).Msg("joined room")
	return nil
}

// Leave tells the gateway and closes the event channel.
func (r *classroom) Leave(ctx context.Context) error {
	err := r.client.call(ctx, "leave", r.uuid, nil, nil)
	r.client.removeClassroom(r.uuid)
	return err
}

func (r *classroom) apply(s *snapshot) {
	var info *core.ClassroomInfo
	if s.Classroom != nil {
		decoded, err := core.DecodeClassroomInfo(s.Classroom)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.signal").Str("room", r.uuid).Msg("ignoring classroom snapshot")
		} else {
			info = &decoded
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s.UserToken != nil {
		r.token = *s.UserToken
	}
	if s.MainStream != nil {
		r.main = *s.MainStream
	}
	if s.Users != nil {
		r.users = s.Users
	}
	if s.Streams != nil {
		r.streams = s.Streams
	}
	if s.LocalStream != nil {
		r.local = s.LocalStream
	}
	if s.LocalScreen != nil {
		r.screen = s.LocalScreen
	}
	if info != nil {
		r.info = *info
	}
}

func (r *classroom) setInfo(info core.ClassroomInfo) {
	r.mu.Lock()
	r.info = info
	r.mu.Unlock()
}

func (r *classroom) RoomUUID() string { return r.uuid }

func (r *classroom) UserToken() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.token
}

func (r *classroom) MainStream() core.MainStream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.main
}

func (r *classroom) FullUserList() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.users)
}

func (r *classroom) FullStreamList() []domain.Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.streams)
}

func (r *classroom) LocalStreamData() *domain.LocalStream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneLocal(r.local)
}

func (r *classroom) LocalScreenData() *domain.LocalStream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneLocal(r.screen)
}

func (r *classroom) ClassroomInfo() core.ClassroomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := r.info
	if r.info.RoomProperties.Processes != nil {
		info.RoomProperties.Processes = make(map[string]core.Process, len(r.info.RoomProperties.Processes))
		for k, v := range r.info.RoomProperties.Processes {
			info.RoomProperties.Processes[k] = v
		}
	}
	return info
}

func (r *classroom) UserService() core.UserService { return r.us }

func cloneLocal(l *domain.LocalStream) *domain.LocalStream {
	if l == nil {
		return nil
	}
	c := *l
	if l.Stream != nil {
		s := *l.Stream
		c.Stream = &s
	}
	return &c
}
