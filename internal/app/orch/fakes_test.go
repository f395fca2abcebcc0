package orch

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Classroom/internal/app/ui"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type fakeRoomAPI struct {
	uuid string
	err  error
}

func (f *fakeRoomAPI) FetchRoom(context.Context, string, domain.RoomType) (string, error) {
	return f.uuid, f.err
}

type fakeMessaging struct {
	mu        sync.Mutex
	events    chan core.Event
	cls       *fakeClassroom
	loginErr  error
	createErr error
	logoutErr error
	loggedOut bool
}

func newFakeMessaging(cls *fakeClassroom) *fakeMessaging {
	return &fakeMessaging{events: make(chan core.Event, 16), cls: cls}
}

func (f *fakeMessaging) Events() <-chan core.Event { return f.events }

func (f *fakeMessaging) Login(context.Context, string) error { return f.loginErr }

func (f *fakeMessaging) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return f.logoutErr
}

func (f *fakeMessaging) CreateClassroom(string, string) (core.Classroom, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.cls, nil
}

func (f *fakeMessaging) LoggedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

type fakeClassroom struct {
	mu      sync.Mutex
	events  chan core.Event
	uuid    string
	joinErr error
	left    bool
	users   []domain.User
	streams []domain.Stream
	local   *domain.LocalStream
	screen  *domain.LocalStream
	info    core.ClassroomInfo
	us      *fakeUserService
}

func newFakeClassroom(uuid string) *fakeClassroom {
	c := &fakeClassroom{
		events: make(chan core.Event, 16),
		uuid:   uuid,
		us:     &fakeUserService{},
	}
	c.info.RoomInfo.RoomUUID = uuid
	c.us.cls = c
	return c
}

func (c *fakeClassroom) Events() <-chan core.Event { return c.events }

func (c *fakeClassroom) Join(context.Context, core.JoinParams) error { return c.joinErr }

func (c *fakeClassroom) Leave(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left = true
	return nil
}

func (c *fakeClassroom) Left() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left
}

func (c *fakeClassroom) setLocal(ls *domain.LocalStream) {
	c.mu.Lock()
	c.local = ls
	c.mu.Unlock()
}

func (c *fakeClassroom) RoomUUID() string  { return c.uuid }
func (c *fakeClassroom) UserToken() string { return "token" }

func (c *fakeClassroom) MainStream() core.MainStream {
	return core.MainStream{StreamUUID: "main-stream", RTCToken: "rtc"}
}

func (c *fakeClassroom) FullUserList() []domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.users)
}

func (c *fakeClassroom) FullStreamList() []domain.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.streams)
}

func (c *fakeClassroom) LocalStreamData() *domain.LocalStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

func (c *fakeClassroom) LocalScreenData() *domain.LocalStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}

func (c *fakeClassroom) ClassroomInfo() core.ClassroomInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *fakeClassroom) UserService() core.UserService { return c.us }

func (c *fakeClassroom) setStreams(streams []domain.Stream) {
	c.mu.Lock()
	c.streams = streams
	c.mu.Unlock()
}

type fakeUserService struct {
	mu       sync.Mutex
	cls      *fakeClassroom
	chatErr  error
	calls    []string
	accepted []string
	invited  []core.InviteParams
}

func (u *fakeUserService) record(call string) {
	u.mu.Lock()
	u.calls = append(u.calls, call)
	u.mu.Unlock()
}

func (u *fakeUserService) LocalStream() *domain.LocalStream { return u.cls.LocalStreamData() }

func (u *fakeUserService) PublishStream(_ context.Context, p core.PublishParams) error {
	u.record("publish")
	u.cls.mu.Lock()
	u.cls.local = &domain.LocalStream{
		State: domain.StreamOnline,
		Stream: &domain.Stream{
			StreamUUID: p.StreamUUID,
			HasVideo:   p.HasVideo,
			HasAudio:   p.HasAudio,
		},
	}
	u.cls.mu.Unlock()
	return nil
}

func (u *fakeUserService) InviteStreamBy(_ context.Context, p core.InviteParams) error {
	u.mu.Lock()
	u.invited = append(u.invited, p)
	u.mu.Unlock()
	return nil
}

func (u *fakeUserService) SendRoomChatMessage(context.Context, string) error {
	u.record("chat")
	return u.chatErr
}

func (u *fakeUserService) SendCoVideoApply(_ context.Context, teacher domain.User) error {
	u.record("apply:" + teacher.UserUUID)
	return nil
}

func (u *fakeUserService) AcceptCoVideoApply(_ context.Context, user domain.User) error {
	u.mu.Lock()
	u.accepted = append(u.accepted, user.UserUUID)
	u.mu.Unlock()
	return nil
}

func (u *fakeUserService) RejectCoVideoApply(_ context.Context, user domain.User) error {
	u.record("reject:" + user.UserUUID)
	return nil
}

func (u *fakeUserService) UpdateRoomProperties(context.Context, map[string]any, string) error {
	u.record("properties")
	return nil
}

type fakeMedia struct {
	mu          sync.Mutex
	camera, mic bool
	joinErr     error
	openErr     error
	calls       []string
}

func (m *fakeMedia) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *fakeMedia) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *fakeMedia) JoinRTC(context.Context, core.RTCParams) error {
	m.record("join")
	return m.joinErr
}

func (m *fakeMedia) LeaveRTC(context.Context) error {
	m.record("leave")
	return nil
}

func (m *fakeMedia) PrepareCamera(context.Context) (bool, error) { return m.camera, nil }

func (m *fakeMedia) PrepareMicrophone(context.Context) (bool, error) { return m.mic, nil }

func (m *fakeMedia) OpenCamera(context.Context) error {
	m.record("openCamera")
	return m.openErr
}

func (m *fakeMedia) CloseCamera(context.Context) error {
	m.record("closeCamera")
	return nil
}

func (m *fakeMedia) OpenMicrophone(context.Context) error {
	m.record("openMicrophone")
	return m.openErr
}

func (m *fakeMedia) CloseMicrophone(context.Context) error {
	m.record("closeMicrophone")
	return nil
}

type fakeInvitations struct{}

func (fakeInvitations) SetInvitation(context.Context) error { return nil }

func (fakeInvitations) HandInvitationStart(context.Context, core.InvitationAction, string) error {
	return nil
}

func (fakeInvitations) HandInvitationEnd(context.Context, core.InvitationAction, string) error {
	return nil
}

type fakeService struct {
	initErr error
}

func (s *fakeService) Init(context.Context) error  { return s.initErr }
func (s *fakeService) Leave(context.Context) error { return nil }

type fakeServices struct {
	board  *fakeService
	record *fakeService
}

func (f *fakeServices) NewBoard(string, string) core.BoardService { return f.board }
func (f *fakeServices) NewRecord(string) core.RecordService       { return f.record }

type harness struct {
	o     *Orchestrator
	room  *fakeRoomAPI
	msg   *fakeMessaging
	cls   *fakeClassroom
	media *fakeMedia
	svc   *fakeServices
	ui    *ui.Store
}

func newHarness(role domain.Role, roomType domain.RoomType) *harness {
	cls := newFakeClassroom("room-1")
	h := &harness{
		room:  &fakeRoomAPI{uuid: "room-1"},
		msg:   newFakeMessaging(cls),
		cls:   cls,
		media: &fakeMedia{camera: true, mic: true},
		svc:   &fakeServices{board: &fakeService{}, record: &fakeService{}},
		ui:    ui.NewStore(0),
	}
	local := domain.User{UserUUID: "me", UserName: "Me", Role: role}
	h.o = New(domain.Room{Name: "math", Type: roomType}, local, Deps{
		RoomAPI:     h.room,
		Messaging:   h.msg,
		Services:    h.svc,
		Media:       h.media,
		Invitations: fakeInvitations{},
		UI:          h.ui,
	}, Options{})
	return h
}

// flush waits until everything queued on the scene mutex so far has run.
func (h *harness) flush() {
	_ = h.o.Mutex.Dispatch(context.Background(), func(context.Context) error { return nil })
}

func (h *harness) toasts() []string {
	var out []string
	for _, t := range h.ui.Toasts() {
		out = append(out, t.Message)
	}
	return out
}
