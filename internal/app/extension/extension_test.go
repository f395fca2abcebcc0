package extension

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type invitations struct {
	mu       sync.Mutex
	startErr error
	starts   []core.InvitationAction
	ends     int
}

func (i *invitations) SetInvitation(context.Context) error { return nil }

func (i *invitations) HandInvitationStart(_ context.Context, a core.InvitationAction, _ string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.startErr != nil {
		return i.startErr
	}
	i.starts = append(i.starts, a)
	return nil
}

func (i *invitations) HandInvitationEnd(context.Context, core.InvitationAction, string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ends++
	return nil
}

func (i *invitations) startCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.starts)
}

type toasts struct {
	mu   sync.Mutex
	msgs []string
}

func (t *toasts) AddToast(m string) {
	t.mu.Lock()
	t.msgs = append(t.msgs, m)
	t.mu.Unlock()
}

func (t *toasts) count(m string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, x := range t.msgs {
		if x == m {
			n++
		}
	}
	return n
}

func fastOptions() Options {
	return Options{
		TickDuration: 30 * time.Millisecond,
		TickStep:     10 * time.Millisecond,
		DelayStep:    5 * time.Millisecond,
		CallTimeout:  time.Second,
	}
}

func newStore(inv *invitations, tt *toasts) *Store {
	return New(Deps{
		Invitations: inv,
		Teacher:     func() string { return "teacher" },
		Notifier:    tt,
	}, fastOptions())
}

func timeoutProps(room string, coVideo bool, seconds int) core.RoomProperties {
	state := 0
	if coVideo {
		state = 1
	}
	return core.RoomProperties{
		HandUpStates: core.HandUpStates{State: state},
		Processes:    map[string]core.Process{room: {Timeout: &seconds}},
	}
}

func TestStartTick_AppliesWhenHandsDown(t *testing.T) {
	inv, tt := &invitations{}, &toasts{}
	s := newStore(inv, tt)
	defer s.Reset()

	s.StartTick()
	st := s.State()
	assert.True(t, st.InTick)
	assert.Equal(t, 30*time.Millisecond, st.Tick)

	require.Eventually(t, s.HandsUp, time.Second, time.Millisecond)
	assert.Equal(t, []core.InvitationAction{core.InvitationApply}, inv.starts)
	assert.False(t, s.State().InTick)
	assert.Equal(t, 1, tt.count("invitation.apply_success"))
}

func TestStartTick_CancelsWhenHandsUp(t *testing.T) {
	inv, tt := &invitations{}, &toasts{}
	s := newStore(inv, tt)
	defer s.Reset()
	s.StartInvitationApply(context.Background())
	require.True(t, s.HandsUp())

	s.StartTick()
	require.Eventually(t, func() bool { return !s.HandsUp() }, time.Second, time.Millisecond)
	assert.Equal(t, 1, tt.count("invitation.stop_success"))
}

func TestStartTick_RestartResetsCountdown(t *testing.T) {
	inv, tt := &invitations{}, &toasts{}
	opts := fastOptions()
	opts.TickDuration = 300 * time.Millisecond
	opts.TickStep = 100 * time.Millisecond
	s := New(Deps{Invitations: inv, Notifier: tt}, opts)
	defer s.Reset()

	s.StartTick()
	require.Eventually(t, func() bool { return s.State().Tick < 300*time.Millisecond }, time.Second, time.Millisecond)

	s.StartTick()
	assert.Equal(t, 300*time.Millisecond, s.State().Tick)

	for !s.HandsUp() {
		assert.GreaterOrEqual(t, s.State().Tick, opts.TickStep, "tick went below one step")
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, 1, inv.startCount(), "restarted countdown must fire once")
}

func TestStopTick_Idempotent(t *testing.T) {
	inv, tt := &invitations{}, &toasts{}
	s := newStore(inv, tt)
	s.StopTick()
	s.StartTick()
	s.StopTick()
	s.StopTick()

	time.Sleep(60 * time.Millisecond)
	assert.False(t, s.State().InTick)
	assert.Zero(t, inv.startCount())
}

func TestStartInvitationApply_FailureKeepsHandsDown(t *testing.T) {
	inv, tt := &invitations{startErr: errors.New("offline")}, &toasts{}
	s := newStore(inv, tt)

	s.StartInvitationApply(context.Background())
	assert.False(t, s.HandsUp())
	assert.Equal(t, 1, tt.count("invitation.apply_failed"))
}

func TestDelay_ResetsOncePerActivation(t *testing.T) {
	inv, tt := &invitations{}, &toasts{}
	s := newStore(inv, tt)
	defer s.Reset()

	s.AddApplyUser(domain.ApplyUser{UserUUID: "s1"})
	s.ToggleApplyUserList()
	s.StartInvitationApply(context.Background())

	s.UpdateRoomProperties("room", timeoutProps("room", true, 3))
	require.Eventually(t, func() bool { return tt.count("extension.hands_up_timeout") == 1 }, time.Second, time.Millisecond)

	st := s.State()
	assert.Empty(t, st.ApplyUsers)
	assert.False(t, st.VisibleUserList)
	assert.False(t, st.HandsUp)

	// still on: more updates and time must not fire it again
	s.UpdateRoomProperties("room", timeoutProps("room", true, 3))
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, tt.count("extension.hands_up_timeout"))

	// off then on re-arms
	s.UpdateRoomProperties("room", timeoutProps("room", false, 3))
	s.UpdateRoomProperties("room", timeoutProps("room", true, 3))
	require.Eventually(t, func() bool { return tt.count("extension.hands_up_timeout") == 2 }, time.Second, time.Millisecond)
}

func TestDelay_DisabledWithoutTimeout(t *testing.T) {
	inv, tt := &invitations{}, &toasts{}
	s := newStore(inv, tt)
	defer s.Reset()

	s.UpdateRoomProperties("room", core.RoomProperties{HandUpStates: core.HandUpStates{State: 1}})
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, tt.count("extension.hands_up_timeout"))
	assert.Greater(t, s.State().Elapsed, 0)
}

func TestDelay_CoVideoOffBeforeLimit(t *testing.T) {
	inv, tt := &invitations{}, &toasts{}
	s := newStore(inv, tt)
	defer s.Reset()

	s.UpdateRoomProperties("room", timeoutProps("room", true, 1000))
	s.UpdateRoomProperties("room", timeoutProps("room", false, 1000))
	assert.Zero(t, s.State().Elapsed)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, s.State().Elapsed)
}

func TestApplyUsers(t *testing.T) {
	s := newStore(&invitations{}, &toasts{})
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "a"} {
		s.AddApplyUser(domain.ApplyUser{UserUUID: id})
	}
	assert.Len(t, s.State().ApplyUsers, 6)
	assert.Len(t, s.VisibleApplyUsers(), 5)

	s.RemoveApplyUser("a")
	co := s.CoVideoStudents([]domain.Stream{{User: domain.User{UserUUID: "c"}}, {User: domain.User{UserUUID: "z"}}})
	require.Len(t, co, 1)
	assert.Equal(t, "c", co[0].UserUUID)

	s.ToggleApplyUserList()
	assert.True(t, s.State().VisibleUserList)
	s.HideApplyUserList()
	assert.False(t, s.State().VisibleUserList)
}

func TestHandsTools(t *testing.T) {
	s := newStore(&invitations{}, &toasts{})
	defer s.Reset()
	assert.False(t, s.ShowStudentHandsTool(domain.RoleStudent))

	s.UpdateRoomProperties("room", core.RoomProperties{HandUpStates: core.HandUpStates{State: 1}})
	assert.True(t, s.ShowStudentHandsTool(domain.RoleStudent))
	assert.True(t, s.ShowTeacherHandsTool(domain.RoleTeacher))
	assert.False(t, s.ShowTeacherHandsTool(domain.RoleStudent))
}
