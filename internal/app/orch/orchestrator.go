package orch

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/app/extension"
	"github.com/dkeye/Classroom/internal/app/interval"
	"github.com/dkeye/Classroom/internal/app/mutex"
	"github.com/dkeye/Classroom/internal/app/scene"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

const (
	clockInterval = "timer"

	DefaultClockPeriod     = 500 * time.Millisecond
	DefaultDispatchTimeout = 10 * time.Second
)

// Deps are the external capabilities the orchestrator drives.
type Deps struct {
	RoomAPI     core.RoomAPI
	Messaging   core.Messaging
	Services    core.ServiceFactory
	Media       core.MediaService
	Invitations core.InvitationAPI
	UI          core.UI
	I18n        core.Translator
}

type Options struct {
	ClockPeriod     time.Duration
	DispatchTimeout time.Duration
	QueueSize       int
	Extension       extension.Options
	// Now is the wall clock; tests override it.
	Now func() time.Time
}

// Orchestrator joins one classroom session and keeps the scene in sync with it.
// Join and Leave are not meant to run concurrently with each other.
type Orchestrator struct {
	Room  domain.Room
	Local domain.User

	Scene     *scene.Store
	Extension *extension.Store
	Intervals *interval.Registry
	Mutex     *mutex.Queue

	deps Deps
	opts Options

	mu        sync.RWMutex
	classroom core.Classroom
	board     core.BoardService
	record    core.RecordService
	joined    bool
	chat      []domain.ChatMessage
	notice    *domain.Notice
	elapsed   time.Duration

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

func New(room domain.Room, local domain.User, deps Deps, opts Options) *Orchestrator {
	if opts.ClockPeriod <= 0 {
		opts.ClockPeriod = DefaultClockPeriod
	}
	if opts.DispatchTimeout < 0 {
		opts.DispatchTimeout = 0
	} else if opts.DispatchTimeout == 0 {
		opts.DispatchTimeout = DefaultDispatchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	o := &Orchestrator{
		Room:      room,
		Local:     local,
		Scene:     scene.NewStore(deps.Media),
		Intervals: interval.NewRegistry(),
		Mutex:     mutex.New("scene", opts.QueueSize, opts.DispatchTimeout),
		deps:      deps,
		opts:      opts,
	}
	o.Extension = extension.New(extension.Deps{
		Invitations: deps.Invitations,
		Classroom:   o.Classroom,
		Teacher:     o.Scene.TeacherUUID,
		Notifier:    deps.UI,
		I18n:        deps.I18n,
	}, opts.Extension)
	return o
}

// Close releases the worker goroutines. The orchestrator is unusable afterwards.
func (o *Orchestrator) Close() {
	o.stopLoop()
	o.Intervals.Clear()
	o.Extension.Reset()
	o.Mutex.Close()
}

func (o *Orchestrator) t(key string) string {
	if o.deps.I18n == nil {
		return key
	}
	return o.deps.I18n.T(key)
}

func (o *Orchestrator) toast(msg string) { o.deps.UI.AddToast(msg) }

// Classroom returns the joined session or nil.
func (o *Orchestrator) Classroom() core.Classroom {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.classroom
}

func (o *Orchestrator) Joined() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.joined
}

func (o *Orchestrator) Messages() []domain.ChatMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.chat)
}

func (o *Orchestrator) addChatMessage(m domain.ChatMessage) {
	o.mu.Lock()
	o.chat = append(o.chat, m)
	o.mu.Unlock()
}

func (o *Orchestrator) Notice() *domain.Notice {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.notice == nil {
		return nil
	}
	n := *o.notice
	return &n
}

// ElapsedTime is the class time shown by the clock.
func (o *Orchestrator) ElapsedTime() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.elapsed
}

func (o *Orchestrator) updateTime(startTime int64) {
	var d time.Duration
	if startTime > 0 {
		d = o.opts.Now().Sub(time.UnixMilli(startTime))
		if d < 0 {
			d = 0
		}
	}
	o.mu.Lock()
	o.elapsed = d
	o.mu.Unlock()
}

func (o *Orchestrator) startClock(startTime int64) {
	o.Intervals.Add(clockInterval, func() { o.updateTime(startTime) }, o.opts.ClockPeriod)
}

func (o *Orchestrator) stopClock() {
	o.Intervals.Del(clockInterval)
}

func (o *Orchestrator) now() int64 { return o.opts.Now().UnixMilli() }

// View is everything a UI renders, copied at one point in time.
type View struct {
	Joined      bool                 `json:"joined"`
	Scene       scene.State          `json:"scene"`
	Media       scene.LocalMedia     `json:"media"`
	Messages    []domain.ChatMessage `json:"messages"`
	Notice      *domain.Notice       `json:"notice,omitempty"`
	ElapsedTime time.Duration        `json:"time"`
	Extension   extension.State      `json:"extension"`
}

func (o *Orchestrator) View() View {
	return View{
		Joined:      o.Joined(),
		Scene:       o.Scene.Snapshot(),
		Media:       o.Scene.LocalMedia(),
		Messages:    o.Messages(),
		Notice:      o.Notice(),
		ElapsedTime: o.ElapsedTime(),
		Extension:   o.Extension.State(),
	}
}

func (o *Orchestrator) isBigClassStudent() bool {
	return o.Room.Type == domain.RoomTypeBigClass && o.Local.Role == domain.RoleStudent
}

// studentJoin maps the room type to what a non-teacher joins as.
func (o *Orchestrator) studentJoin() (domain.JoinRole, domain.SceneType) {
	if o.Room.Type.LargeScene() {
		return domain.JoinRoleAudience, domain.SceneTypeLarge
	}
	return domain.JoinRoleBroadcaster, domain.SceneType(o.Room.Type)
}

// Subscribe signals scene changes; see scene.Store.Subscribe.
func (o *Orchestrator) Subscribe() (<-chan struct{}, func()) {
	return o.Scene.Subscribe()
}
