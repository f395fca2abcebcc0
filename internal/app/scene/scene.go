// Package scene owns the reconciled view of the active session: users,
// streams, class state and the local media devices.
package scene

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// State is a read-only copy of the scene handed to observers.
type State struct {
	RoomUUID    string             `json:"roomUuid"`
	UserUUID    string             `json:"userUuid"`
	Role        domain.Role        `json:"role"`
	Users       []domain.User      `json:"userList"`
	Streams     []domain.Stream    `json:"streamList"`
	Sharing     bool               `json:"sharing"`
	RecordState bool               `json:"recordState"`
	RecordID    string             `json:"recordId"`
	ClassState  domain.CourseState `json:"classState"`
	StartTime   int64              `json:"startTime"`
	IsMuted     bool               `json:"isMuted"`
	RTCJoined   bool               `json:"rtcJoined"`
}

// LocalMedia is the state of our own devices and streams.
type LocalMedia struct {
	CameraStream   *domain.Stream `json:"cameraStream,omitempty"`
	ScreenStream   *domain.Stream `json:"screenStream,omitempty"`
	HasCamera      bool           `json:"hasCamera"`
	HasMicrophone  bool           `json:"hasMicrophone"`
	CameraOpen     bool           `json:"cameraOpen"`
	MicrophoneOpen bool           `json:"microphoneOpen"`
}

// Store is safe for concurrent use. Device calls go through Media; callers
// that need ordering between device calls serialize them on a dispatch queue.
type Store struct {
	Media core.MediaService

	mu    sync.RWMutex
	state State
	local LocalMedia

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
}

func NewStore(media core.MediaService) *Store {
	return &Store{
		Media:    media,
		watchers: make(map[int]chan struct{}),
	}
}

// Subscribe returns a channel that receives a signal after each change.
// Signals coalesce; call cancel to stop.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.watchMu.Unlock()
	return ch, func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *Store) notify() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) update(fn func(st *State, lm *LocalMedia)) {
	s.mu.Lock()
	fn(&s.state, &s.local)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Users = slices.Clone(s.state.Users)
	st.Streams = slices.Clone(s.state.Streams)
	return st
}

func (s *Store) LocalMedia() LocalMedia {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local
}

func (s *Store) SetIdentity(roomUUID, userUUID string, role domain.Role) {
	s.update(func(st *State, _ *LocalMedia) {
		st.RoomUUID = roomUUID
		st.UserUUID = userUUID
		st.Role = role
	})
}

func (s *Store) RoomUUID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RoomUUID
}

// ReplaceUsers swaps in a fresh full user list.
func (s *Store) ReplaceUsers(users []domain.User) {
	users = slices.Clone(users)
	s.update(func(st *State, _ *LocalMedia) { st.Users = users })
}

// ReplaceStreams swaps in a fresh full stream list. For everyone except the
// teacher, sharing follows the list: true iff any stream is a screen share.
func (s *Store) ReplaceStreams(streams []domain.Stream) {
	streams = slices.Clone(streams)
	s.update(func(st *State, _ *LocalMedia) {
		st.Streams = streams
		if st.Role != domain.RoleTeacher {
			st.Sharing = domain.AnyScreen(streams)
		}
	})
}

// TeacherUUID finds the teacher in the current user list.
func (s *Store) TeacherUUID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.state.Users {
		if u.Role == domain.RoleTeacher {
			return u.UserUUID
		}
	}
	return ""
}

// SetScreenStream records our own screen share; nil means it stopped.
func (s *Store) SetScreenStream(stream *domain.Stream) {
	s.update(func(st *State, lm *LocalMedia) {
		lm.ScreenStream = cloneStream(stream)
		st.Sharing = stream != nil
	})
}

func (s *Store) SetCameraStream(stream *domain.Stream) {
	s.update(func(_ *State, lm *LocalMedia) { lm.CameraStream = cloneStream(stream) })
}

func (s *Store) CameraStream() *domain.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneStream(s.local.CameraStream)
}

func (s *Store) RecordState() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RecordState
}

func (s *Store) SetRecordState(on bool) {
	s.update(func(st *State, _ *LocalMedia) { st.RecordState = on })
}

func (s *Store) SetRecordID(id string) {
	s.update(func(st *State, _ *LocalMedia) { st.RecordID = id })
}

// StopRecording clears both the flag and the record id.
func (s *Store) StopRecording() {
	s.update(func(st *State, _ *LocalMedia) {
		st.RecordState = false
		st.RecordID = ""
	})
}

func (s *Store) ClassState() domain.CourseState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ClassState
}

func (s *Store) SetClass(state domain.CourseState, startTime int64) {
	s.update(func(st *State, _ *LocalMedia) {
		st.ClassState = state
		st.StartTime = startTime
	})
}

func (s *Store) SetMuted(muted bool) {
	s.update(func(st *State, _ *LocalMedia) { st.IsMuted = muted })
}

func (s *Store) RTCJoined() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RTCJoined
}

func (s *Store) JoinRTC(ctx context.Context, p core.RTCParams) error {
	if err := s.Media.JoinRTC(ctx, p); err != nil {
		return err
	}
	s.update(func(st *State, _ *LocalMedia) { st.RTCJoined = true })
	log.Info().Str("module", "app.scene").Str("channel", p.Channel).Str("uid", p.UID).Msg("rtc joined")
	return nil
}

// LeaveRTC drops the joined flag before leaving so late device handlers
// become no-ops.
func (s *Store) LeaveRTC(ctx context.Context) error {
	s.update(func(st *State, _ *LocalMedia) { st.RTCJoined = false })
	return s.Media.LeaveRTC(ctx)
}

func (s *Store) PrepareCamera(ctx context.Context) error {
	ok, err := s.Media.PrepareCamera(ctx)
	if err != nil {
		return err
	}
	s.update(func(_ *State, lm *LocalMedia) { lm.HasCamera = ok })
	return nil
}

func (s *Store) PrepareMicrophone(ctx context.Context) error {
	ok, err := s.Media.PrepareMicrophone(ctx)
	if err != nil {
		return err
	}
	s.update(func(_ *State, lm *LocalMedia) { lm.HasMicrophone = ok })
	return nil
}

func (s *Store) HasCamera() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local.HasCamera
}

func (s *Store) HasMicrophone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local.HasMicrophone
}

func (s *Store) OpenCamera(ctx context.Context) error {
	if err := s.Media.OpenCamera(ctx); err != nil {
		return err
	}
	s.update(func(_ *State, lm *LocalMedia) { lm.CameraOpen = true })
	return nil
}

func (s *Store) CloseCamera(ctx context.Context) error {
	if err := s.Media.CloseCamera(ctx); err != nil {
		return err
	}
	s.update(func(_ *State, lm *LocalMedia) { lm.CameraOpen = false })
	return nil
}

func (s *Store) OpenMicrophone(ctx context.Context) error {
	if err := s.Media.OpenMicrophone(ctx); err != nil {
		return err
	}
	s.update(func(_ *State, lm *LocalMedia) { lm.MicrophoneOpen = true })
	return nil
}

func (s *Store) CloseMicrophone(ctx context.Context) error {
	if err := s.Media.CloseMicrophone(ctx); err != nil {
		return err
	}
	s.update(func(_ *State, lm *LocalMedia) { lm.MicrophoneOpen = false })
	return nil
}

// Reset forgets everything about the session. Subscribers are kept.
func (s *Store) Reset() {
	s.update(func(st *State, lm *LocalMedia) {
		*st = State{}
		*lm = LocalMedia{}
	})
}

func cloneStream(stream *domain.Stream) *domain.Stream {
	if stream == nil {
		return nil
	}
	c := *stream
	return &c
}
