// Package extension drives the hands-up tools: the apply/cancel countdown,
// the co-video wait limit and the applicant list.
package extension

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

const (
	DefaultTickDuration = 3000 * time.Millisecond
	DefaultTickStep     = 1000 * time.Millisecond
	DefaultDelayStep    = time.Second
	DefaultCallTimeout  = 10 * time.Second

	visibleApplyUsers = 5
	handUpStateCause  = "handUpStateChanged"
)

type Options struct {
	TickDuration time.Duration
	TickStep     time.Duration
	DelayStep    time.Duration
	// CallTimeout bounds invitation calls started by the countdown itself.
	CallTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TickDuration <= 0 {
		o.TickDuration = DefaultTickDuration
	}
	if o.TickStep <= 0 {
		o.TickStep = DefaultTickStep
	}
	if o.DelayStep <= 0 {
		o.DelayStep = DefaultDelayStep
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	return o
}

// Deps are the collaborators of the store. Classroom returns the live session
// or nil before join.
type Deps struct {
	Invitations core.InvitationAPI
	Classroom   func() core.Classroom
	Teacher     func() string
	Notifier    core.Notifier
	I18n        core.Translator
}

// State is a copy of the store for rendering.
type State struct {
	ApplyUsers      []domain.ApplyUser `json:"applyUsers"`
	VisibleUserList bool               `json:"visibleUserList"`
	VisibleCard     bool               `json:"visibleCard"`
	HandsUp         bool               `json:"handsUp"`
	InTick          bool               `json:"inTick"`
	Tick            time.Duration      `json:"tick"`
	Elapsed         int                `json:"time"`
	CoVideo         bool               `json:"enableCoVideo"`
	AutoCoVideo     bool               `json:"enableAutoHandUpCoVideo"`
}

type Store struct {
	opts Options
	deps Deps

	mu              sync.Mutex
	applyUsers      []domain.ApplyUser
	visibleUserList bool
	visibleCard     bool
	handsUp         bool

	tick     time.Duration
	inTick   bool
	tickStop chan struct{}

	roomUUID   string
	props      core.RoomProperties
	coVideo    bool
	elapsed    int
	delayFired bool
	timerStop  chan struct{}
}

func New(deps Deps, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{opts: opts, deps: deps, tick: opts.TickDuration}
}

func (s *Store) t(key string) string {
	if s.deps.I18n == nil {
		return key
	}
	return s.deps.I18n.T(key)
}

func (s *Store) toast(key string) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.AddToast(s.t(key))
	}
}

func (s *Store) classroom() core.Classroom {
	if s.deps.Classroom == nil {
		return nil
	}
	return s.deps.Classroom()
}

func (s *Store) teacherUUID() string {
	if s.deps.Teacher == nil {
		return ""
	}
	return s.deps.Teacher()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ApplyUsers:      slices.Clone(s.applyUsers),
		VisibleUserList: s.visibleUserList,
		VisibleCard:     s.visibleCard,
		HandsUp:         s.handsUp,
		InTick:          s.inTick,
		Tick:            s.tick,
		Elapsed:         s.elapsed,
		CoVideo:         s.coVideo,
		AutoCoVideo:     s.props.AutoCoVideoEnabled(),
	}
}

func (s *Store) HandsUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handsUp
}

// StartTick starts the apply/cancel countdown, restarting it if it runs.
// On the final step it applies when hands are down and cancels otherwise.
func (s *Store) StartTick() {
	s.mu.Lock()
	s.stopTickLocked()
	s.tick = s.opts.TickDuration
	s.inTick = true
	stop := make(chan struct{})
	s.tickStop = stop
	s.mu.Unlock()

	go s.runTick(stop)
}

// StopTick cancels the countdown. Safe to call at any time.
func (s *Store) StopTick() {
	s.mu.Lock()
	s.stopTickLocked()
	s.mu.Unlock()
}

func (s *Store) stopTickLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
	s.inTick = false
}

func (s *Store) runTick(stop chan struct{}) {
	t := time.NewTicker(s.opts.TickStep)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}

		s.mu.Lock()
		if s.tickStop != stop {
			s.mu.Unlock()
			return
		}
		if s.tick > s.opts.TickStep {
			s.tick -= s.opts.TickStep
			s.mu.Unlock()
			continue
		}
		s.tickStop = nil
		s.inTick = false
		handsUp := s.handsUp
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.CallTimeout)
		if handsUp {
			s.StopInvitationApply(ctx)
		} else {
			s.StartInvitationApply(ctx)
		}
		cancel()
		return
	}
}

// StartInvitationApply raises the local student's hand. Failures are shown
// to the user and otherwise ignored; handsUp only changes on success.
func (s *Store) StartInvitationApply(ctx context.Context) {
	if err := s.startInvitationApply(ctx); err != nil {
		log.Warn().Err(err).Str("module", "app.extension").Msg("start invitation apply failed")
		s.toast("invitation.apply_failed")
		return
	}
	s.mu.Lock()
	s.handsUp = true
	s.mu.Unlock()
	s.toast("invitation.apply_success")
}

func (s *Store) startInvitationApply(ctx context.Context) error {
	if err := s.deps.Invitations.HandInvitationStart(ctx, core.InvitationApply, s.teacherUUID()); err != nil {
		return err
	}
	s.mu.Lock()
	auto := s.props.AutoCoVideoEnabled()
	s.mu.Unlock()
	cls := s.classroom()
	if cls == nil || !auto {
		return nil
	}
	us := cls.UserService()
	local := us.LocalStream()
	if local.Online() {
		return nil
	}
	streamUUID := cls.MainStream().StreamUUID
	if local != nil && local.Stream != nil {
		streamUUID = local.Stream.StreamUUID
	}
	hasVideo := false
	if data := cls.LocalStreamData(); data != nil && data.Stream != nil {
		hasVideo = data.Stream.HasVideo
	}
	return us.PublishStream(ctx, core.PublishParams{
		StreamUUID:      streamUUID,
		VideoSourceType: domain.VideoSourceCamera,
		AudioSourceType: domain.AudioSourceMic,
		HasVideo:        hasVideo,
		HasAudio:        true,
	})
}

// StopInvitationApply lowers the hand; same failure policy as StartInvitationApply.
func (s *Store) StopInvitationApply(ctx context.Context) {
	if err := s.deps.Invitations.HandInvitationEnd(ctx, core.InvitationCancel, s.teacherUUID()); err != nil {
		log.Warn().Err(err).Str("module", "app.extension").Msg("stop invitation apply failed")
		s.toast("invitation.stop_failed")
		return
	}
	s.mu.Lock()
	s.handsUp = false
	s.mu.Unlock()
	s.toast("invitation.stop_success")
}

// AnswerAcceptInvitationApply is the teacher accepting an applicant.
func (s *Store) AnswerAcceptInvitationApply(ctx context.Context, userUUID, streamUUID string) {
	err := s.deps.Invitations.HandInvitationStart(ctx, core.InvitationAccept, userUUID)
	if err == nil {
		s.mu.Lock()
		coVideo, roomUUID := s.coVideo, s.roomUUID
		s.mu.Unlock()
		if cls := s.classroom(); coVideo && cls != nil {
			err = cls.UserService().InviteStreamBy(ctx, core.InviteParams{
				RoomUUID:   roomUUID,
				StreamUUID: streamUUID,
				UserUUID:   userUUID,
			})
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "app.extension").Str("user", userUUID).Msg("accept invitation failed")
		s.toast("invitation.apply_failed")
	}
}

// UpdateHandUpState publishes the teacher's co-video switches as room properties.
func (s *Store) UpdateHandUpState(ctx context.Context, enableCoVideo, enableAutoCoVideo bool) error {
	if err := s.deps.Invitations.SetInvitation(ctx); err != nil {
		return err
	}
	cls := s.classroom()
	if cls == nil {
		return nil
	}
	return cls.UserService().UpdateRoomProperties(ctx, map[string]any{
		"handUpStates": map[string]any{
			"state":       boolToInt(enableCoVideo),
			"autoCoVideo": boolToInt(enableAutoCoVideo),
		},
	}, handUpStateCause)
}

// UpdateRoomProperties feeds the latest room properties in. Turning co-video
// on starts the wait timer; turning it off stops it and re-arms the reset.
func (s *Store) UpdateRoomProperties(roomUUID string, props core.RoomProperties) {
	s.mu.Lock()
	s.roomUUID = roomUUID
	s.props = props
	enabled := props.CoVideoEnabled()
	switch {
	case enabled && !s.coVideo:
		s.coVideo = true
		s.startTimerLocked()
	case !enabled && s.coVideo:
		s.coVideo = false
		s.stopTimerLocked()
		s.elapsed = 0
		s.delayFired = false
	}
	fire := s.checkDelayLocked()
	s.mu.Unlock()

	if fire {
		s.ResetApply()
	}
}

func (s *Store) startTimerLocked() {
	if s.timerStop != nil {
		log.Info().Str("module", "app.extension").Msg("delay timer already setup")
		return
	}
	log.Info().Str("module", "app.extension").Msg("start hands up delay timer")
	s.elapsed = 0
	s.delayFired = false
	stop := make(chan struct{})
	s.timerStop = stop
	go s.runTimer(stop)
}

func (s *Store) stopTimerLocked() {
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
}

// checkDelayLocked reports the rising edge of "co-video on and waited long enough".
func (s *Store) checkDelayLocked() bool {
	if s.delayFired || !s.coVideo {
		return false
	}
	limit := s.props.ProcessTimeout(s.roomUUID)
	if limit == core.NoProcessTimeout || s.elapsed != limit {
		return false
	}
	s.delayFired = true
	s.stopTimerLocked()
	return true
}

func (s *Store) runTimer(stop chan struct{}) {
	t := time.NewTicker(s.opts.DelayStep)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		s.mu.Lock()
		if s.timerStop != stop {
			s.mu.Unlock()
			return
		}
		s.elapsed++
		fire := s.checkDelayLocked()
		s.mu.Unlock()
		if fire {
			s.ResetApply()
			return
		}
	}
}

// ResetApply clears the applicants after the wait limit passed.
func (s *Store) ResetApply() {
	s.toast("extension.hands_up_timeout")
	log.Info().Str("module", "app.extension").Msg("hands up over max wait reset apply user list")
	s.mu.Lock()
	s.applyUsers = nil
	s.visibleUserList = false
	s.handsUp = false
	s.mu.Unlock()
}

// AddApplyUser records an applicant once per user.
func (s *Store) AddApplyUser(u domain.ApplyUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.applyUsers, func(a domain.ApplyUser) bool { return a.UserUUID == u.UserUUID }) {
		return
	}
	s.applyUsers = append(s.applyUsers, u)
}

func (s *Store) RemoveApplyUser(userUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyUsers = slices.DeleteFunc(s.applyUsers, func(a domain.ApplyUser) bool { return a.UserUUID == userUUID })
}

// VisibleApplyUsers is the head of the applicant list shown in the panel.
func (s *Store) VisibleApplyUsers() []domain.ApplyUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(len(s.applyUsers), visibleApplyUsers)
	return slices.Clone(s.applyUsers[:n])
}

// CoVideoStudents are the applicants that currently publish a stream.
func (s *Store) CoVideoStudents(streams []domain.Stream) []domain.ApplyUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ApplyUser, 0, len(s.applyUsers))
	for _, a := range s.applyUsers {
		if slices.ContainsFunc(streams, func(st domain.Stream) bool { return st.User.UserUUID == a.UserUUID }) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) ShowStudentHandsTool(role domain.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return role == domain.RoleStudent && s.coVideo
}

func (s *Store) ShowTeacherHandsTool(role domain.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return role == domain.RoleTeacher && s.coVideo
}

func (s *Store) ToggleApplyUserList() {
	s.mu.Lock()
	s.visibleUserList = !s.visibleUserList
	s.mu.Unlock()
}

func (s *Store) HideApplyUserList() {
	s.mu.Lock()
	s.visibleUserList = false
	s.mu.Unlock()
}

func (s *Store) ToggleCard() {
	s.mu.Lock()
	s.visibleCard = !s.visibleCard
	s.mu.Unlock()
}

func (s *Store) HideCard() {
	s.mu.Lock()
	s.visibleCard = false
	s.mu.Unlock()
}

// Reset stops both timers and forgets the session.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTickLocked()
	s.stopTimerLocked()
	s.tick = s.opts.TickDuration
	s.applyUsers = nil
	s.visibleUserList = false
	s.visibleCard = false
	s.handsUp = false
	s.roomUUID = ""
	s.props = core.RoomProperties{}
	s.coVideo = false
	s.elapsed = 0
	s.delayFired = false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
