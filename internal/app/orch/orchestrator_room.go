package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

var ErrAlreadyJoined = errors.New("already joined")

const cleanupTimeout = 5 * time.Second

// joinProgress records the remote steps of a join that succeeded.
type joinProgress struct {
	loggedIn bool
	cls      core.Classroom
}

// cleanupContext outlives the caller's cancellation but stays bounded.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// Join enters the configured room. On any failure the loading indicator is
// stopped, nothing is marked joined, and the error is returned.
func (o *Orchestrator) Join(ctx context.Context) error {
	if o.Joined() {
		return ErrAlreadyJoined
	}
	o.deps.UI.StartLoading()
	var p joinProgress
	if err := o.join(ctx, &p); err != nil {
		o.deps.UI.StopLoading()
		o.abortJoin(ctx, p)
		log.Error().Err(err).Str("module", "app.orch").Str("room", o.Room.Name).Msg("join failed")
		return err
	}
	o.deps.UI.StopLoading()
	o.mu.Lock()
	o.joined = true
	o.mu.Unlock()
	log.Info().Str("module", "app.orch").Str("room", o.Room.Name).Str("user", o.Local.UserUUID).Msg("joined")
	return nil
}

func (o *Orchestrator) join(ctx context.Context, p *joinProgress) error {
	roomUUID, err := o.deps.RoomAPI.FetchRoom(ctx, o.Room.Name, o.Room.Type)
	if err != nil {
		return fmt.Errorf("fetch room: %w", err)
	}
	if err := o.deps.Messaging.Login(ctx, o.Local.UserUUID); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	p.loggedIn = true
	cls, err := o.deps.Messaging.CreateClassroom(roomUUID, o.Room.Name)
	if err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	p.cls = cls
	o.Scene.SetIdentity(roomUUID, o.Local.UserUUID, o.Local.Role)

	// subscribe before joining so no event is missed
	o.startLoop(cls)

	params := core.JoinParams{
		RoomUUID: roomUUID,
		UserName: o.Local.UserName,
		UserUUID: o.Local.UserUUID,
	}
	if o.Local.Role == domain.RoleTeacher {
		params.UserRole = domain.JoinRoleHost
	} else {
		params.UserRole, params.SceneType = o.studentJoin()
	}
	if err := cls.Join(ctx, params); err != nil {
		return fmt.Errorf("join classroom: %w", err)
	}

	board := o.deps.Services.NewBoard(cls.UserToken(), cls.RoomUUID())
	record := o.deps.Services.NewRecord(cls.UserToken())
	o.mu.Lock()
	o.classroom = cls
	o.board = board
	o.record = record
	o.mu.Unlock()

	info := cls.ClassroomInfo()
	o.Scene.SetClass(info.RoomStatus.CourseState, info.RoomStatus.StartTime)
	if info.RoomStatus.CourseState == domain.CourseStarted {
		o.startClock(info.RoomStatus.StartTime)
	}
	o.Scene.SetMuted(!info.RoomStatus.IsStudentChatAllowed)

	ms := cls.MainStream()
	err = o.Mutex.Dispatch(ctx, func(ctx context.Context) error {
		return o.Scene.JoinRTC(ctx, core.RTCParams{
			UID:     ms.StreamUUID,
			Channel: info.RoomInfo.RoomUUID,
			Token:   ms.RTCToken,
		})
	})
	if err != nil {
		return fmt.Errorf("join rtc: %w", err)
	}

	if o.canPublish(cls) {
		err := o.Mutex.Dispatch(ctx, func(ctx context.Context) error {
			return o.publishLocal(ctx, cls, ms)
		})
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	if err := board.Init(ctx); err != nil {
		return fmt.Errorf("board init: %w", err)
	}
	if err := record.Init(ctx); err != nil {
		return fmt.Errorf("record init: %w", err)
	}

	props := cls.ClassroomInfo().RoomProperties
	o.Scene.SetRecordID(props.RecordID())
	o.Extension.UpdateRoomProperties(roomUUID, props)

	o.Scene.ReplaceUsers(cls.FullUserList())
	o.Scene.ReplaceStreams(cls.FullStreamList())
	return nil
}

// canPublish: teachers always, anyone whose stream is already online,
// and students outside the big class.
func (o *Orchestrator) canPublish(cls core.Classroom) bool {
	if o.Local.Role == domain.RoleTeacher {
		return true
	}
	if cls.LocalStreamData().Online() {
		return true
	}
	return o.Local.Role == domain.RoleStudent && o.Room.Type != domain.RoomTypeBigClass
}

// publishLocal publishes the main stream and opens the devices it asks for.
// Device failures are shown to the user but do not fail the join.
func (o *Orchestrator) publishLocal(ctx context.Context, cls core.Classroom, ms core.MainStream) error {
	hasVideo, hasAudio := true, true
	if data := cls.LocalStreamData(); data != nil && data.Stream != nil {
		hasVideo, hasAudio = data.Stream.HasVideo, data.Stream.HasAudio
	}
	us := cls.UserService()
	err := us.PublishStream(ctx, core.PublishParams{
		StreamUUID:      ms.StreamUUID,
		VideoSourceType: domain.VideoSourceCamera,
		AudioSourceType: domain.AudioSourceMic,
		HasVideo:        hasVideo,
		HasAudio:        hasAudio,
	})
	if err != nil {
		return err
	}
	o.toast(o.t("toast.publish_business_flow_successfully"))

	var stream *domain.Stream
	if ls := us.LocalStream(); ls != nil {
		stream = ls.Stream
	}
	o.Scene.SetCameraStream(stream)
	if stream == nil {
		return nil
	}
	if err := o.applyLocalMedia(ctx, *stream); err != nil {
		o.toast(o.t("toast.media_method_call_failed") + ": " + err.Error())
		log.Warn().Err(err).Str("module", "app.orch").Msg("media call failed after publish")
	}
	return nil
}

// abortJoin undoes what a failed join may have started. Remote cleanup errors
// are logged only; the join error is what the caller sees.
func (o *Orchestrator) abortJoin(ctx context.Context, p joinProgress) {
	o.stopLoop()
	o.stopClock()
	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	if o.Scene.RTCJoined() {
		if err := o.Scene.LeaveRTC(cctx); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Msg("leave rtc after failed join")
		}
	}
	// leaving also releases the handle so a retry starts from a fresh one
	if p.cls != nil {
		if err := p.cls.Leave(cctx); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Msg("leave classroom after failed join")
		}
	}
	if p.loggedIn {
		if err := o.deps.Messaging.Logout(cctx); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Msg("logout after failed join")
		}
	}
	o.mu.Lock()
	o.classroom = nil
	o.board = nil
	o.record = nil
	o.mu.Unlock()
	o.Scene.Reset()
}

// Leave is best effort: errors are logged and local state is reset regardless.
func (o *Orchestrator) Leave(ctx context.Context) {
	if err := o.leave(ctx); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("room", o.Room.Name).Msg("leave failed")
	} else {
		o.toast(o.t("toast.successfully_left_the_business_channel"))
		log.Info().Str("module", "app.orch").Str("room", o.Room.Name).Msg("left")
	}
	o.stopClock()
	o.stopLoop()
	o.reset()
	o.deps.UI.UpdateCurSeqID(0)
	o.deps.UI.UpdateLastSeqID(0)
}

func (o *Orchestrator) leave(ctx context.Context) error {
	o.mu.RLock()
	cls, board, record := o.classroom, o.board, o.record
	o.mu.RUnlock()

	// the guard drops inside the queue so no device handler runs mid-leave
	err := o.Mutex.Dispatch(ctx, func(ctx context.Context) error {
		return o.Scene.LeaveRTC(ctx)
	})
	if err != nil {
		// the queued leave may never have run; leaving twice is a no-op
		cctx, cancel := cleanupContext(ctx)
		if ferr := o.Scene.LeaveRTC(cctx); ferr != nil {
			log.Warn().Err(ferr).Str("module", "app.orch").Msg("direct rtc leave failed")
		}
		cancel()
		return fmt.Errorf("leave rtc: %w", err)
	}
	if board != nil {
		if err := board.Leave(ctx); err != nil {
			return fmt.Errorf("leave board: %w", err)
		}
	}
	if record != nil {
		if err := record.Leave(ctx); err != nil {
			return fmt.Errorf("leave record: %w", err)
		}
	}
	if err := o.deps.Messaging.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if cls != nil {
		if err := cls.Leave(ctx); err != nil {
			return fmt.Errorf("leave classroom: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) reset() {
	o.Scene.Reset()
	o.Extension.Reset()
	o.mu.Lock()
	o.classroom = nil
	o.board = nil
	o.record = nil
	o.joined = false
	o.chat = nil
	o.notice = nil
	o.elapsed = 0
	o.mu.Unlock()
}
