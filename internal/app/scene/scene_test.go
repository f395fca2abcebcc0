package scene

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type stubMedia struct {
	camera, mic bool
	openErr     error
	calls       []string
}

func (m *stubMedia) JoinRTC(context.Context, core.RTCParams) error {
	m.calls = append(m.calls, "join")
	return nil
}
func (m *stubMedia) LeaveRTC(context.Context) error {
	m.calls = append(m.calls, "leave")
	return nil
}
func (m *stubMedia) PrepareCamera(context.Context) (bool, error) { return m.camera, nil }
func (m *stubMedia) PrepareMicrophone(context.Context) (bool, error) {
	return m.mic, nil
}
func (m *stubMedia) OpenCamera(context.Context) error {
	m.calls = append(m.calls, "openCamera")
	return m.openErr
}
func (m *stubMedia) CloseCamera(context.Context) error {
	m.calls = append(m.calls, "closeCamera")
	return nil
}
func (m *stubMedia) OpenMicrophone(context.Context) error {
	m.calls = append(m.calls, "openMicrophone")
	return m.openErr
}
func (m *stubMedia) CloseMicrophone(context.Context) error {
	m.calls = append(m.calls, "closeMicrophone")
	return nil
}

func TestStore_ReplaceStreamsRecomputesSharing(t *testing.T) {
	s := NewStore(&stubMedia{})
	s.SetIdentity("room", "u1", domain.RoleStudent)

	s.ReplaceStreams([]domain.Stream{
		{StreamUUID: "1", VideoSourceType: domain.VideoSourceCamera},
		{StreamUUID: "2", VideoSourceType: domain.VideoSourceScreen},
	})
	assert.True(t, s.Snapshot().Sharing)

	s.ReplaceStreams([]domain.Stream{{StreamUUID: "1", VideoSourceType: domain.VideoSourceCamera}})
	snap := s.Snapshot()
	assert.False(t, snap.Sharing)
	assert.Len(t, snap.Streams, 1)
}

func TestStore_TeacherSharingFollowsOwnScreen(t *testing.T) {
	s := NewStore(&stubMedia{})
	s.SetIdentity("room", "t1", domain.RoleTeacher)

	s.SetScreenStream(&domain.Stream{StreamUUID: "screen", VideoSourceType: domain.VideoSourceScreen})
	s.ReplaceStreams(nil)
	assert.True(t, s.Snapshot().Sharing, "remote stream changes must not touch a teacher's sharing flag")

	s.SetScreenStream(nil)
	assert.False(t, s.Snapshot().Sharing)
	assert.Nil(t, s.LocalMedia().ScreenStream)
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	s := NewStore(&stubMedia{})
	users := []domain.User{{UserUUID: "a"}, {UserUUID: "b"}}
	s.ReplaceUsers(users)
	users[0].UserUUID = "changed"

	snap := s.Snapshot()
	assert.Equal(t, "a", snap.Users[0].UserUUID)
	snap.Users[1].UserUUID = "changed"
	assert.Equal(t, "b", s.Snapshot().Users[1].UserUUID)
}

func TestStore_DeviceFlags(t *testing.T) {
	m := &stubMedia{camera: true}
	s := NewStore(m)
	ctx := context.Background()

	require.NoError(t, s.PrepareCamera(ctx))
	require.NoError(t, s.PrepareMicrophone(ctx))
	assert.True(t, s.HasCamera())
	assert.False(t, s.HasMicrophone())

	require.NoError(t, s.OpenCamera(ctx))
	assert.True(t, s.LocalMedia().CameraOpen)
	require.NoError(t, s.CloseCamera(ctx))
	assert.False(t, s.LocalMedia().CameraOpen)

	m.openErr = errors.New("device busy")
	assert.Error(t, s.OpenMicrophone(ctx))
	assert.False(t, s.LocalMedia().MicrophoneOpen)
}

func TestStore_RTCGuardAndNotify(t *testing.T) {
	s := NewStore(&stubMedia{})
	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.JoinRTC(context.Background(), core.RTCParams{UID: "1", Channel: "room"}))
	assert.True(t, s.RTCJoined())
	<-ch

	require.NoError(t, s.LeaveRTC(context.Background()))
	assert.False(t, s.RTCJoined())
}

func TestStore_TeacherUUIDAndReset(t *testing.T) {
	s := NewStore(&stubMedia{})
	s.ReplaceUsers([]domain.User{
		{UserUUID: "s1", Role: domain.RoleStudent},
		{UserUUID: "t1", Role: domain.RoleTeacher},
	})
	s.SetRecordState(true)
	s.SetRecordID("rec")
	assert.Equal(t, "t1", s.TeacherUUID())

	s.Reset()
	snap := s.Snapshot()
	assert.Empty(t, s.TeacherUUID())
	assert.False(t, snap.RecordState)
	assert.Empty(t, snap.RecordID)
}
