package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

var (
	ErrNotJoined     = errors.New("not joined")
	ErrTeacherAbsent = errors.New("teacher not in room")
	ErrNoApplicant   = errors.New("no pending applicant")
)

// The actions below are best effort: failures become a toast and are not
// returned.

func (o *Orchestrator) SendMessage(ctx context.Context, text string) {
	cls := o.Classroom()
	if cls == nil {
		o.toast(o.t("toast.failed_to_send_chat") + ": " + ErrNotJoined.Error())
		return
	}
	if err := cls.UserService().SendRoomChatMessage(ctx, text); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("send chat failed")
		o.toast(o.t("toast.failed_to_send_chat") + ": " + err.Error())
		return
	}
	o.addChatMessage(domain.ChatMessage{
		ID:        o.Local.UserUUID,
		Timestamp: o.now(),
		Text:      text,
		Account:   o.Local.UserName,
		Sender:    true,
	})
}

// CallApply sends a co-video request to the teacher.
func (o *Orchestrator) CallApply(ctx context.Context) {
	err := o.callApply(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("call apply failed")
		o.toast(o.t("toast.failed_to_initiate_a_raise_of_hand_application") + " " + err.Error())
	}
}

func (o *Orchestrator) callApply(ctx context.Context) error {
	cls := o.Classroom()
	if cls == nil {
		return ErrNotJoined
	}
	teacher, ok := domain.FindUser(cls.FullUserList(), o.Scene.TeacherUUID())
	if !ok {
		return ErrTeacherAbsent
	}
	return cls.UserService().SendCoVideoApply(ctx, teacher)
}

// CallEnded closes the local devices.
func (o *Orchestrator) CallEnded(ctx context.Context) {
	err := o.Mutex.Dispatch(ctx, func(ctx context.Context) error {
		return errors.Join(o.Scene.CloseCamera(ctx), o.Scene.CloseMicrophone(ctx))
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("call end failed")
		o.toast(o.t("toast.failed_to_end_the_call") + " " + err.Error())
	}
}

// TeacherAcceptApply accepts whoever sent the last notice and invites their stream.
func (o *Orchestrator) TeacherAcceptApply(ctx context.Context) {
	err := o.teacherAcceptApply(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("accept apply failed")
		o.toast(o.t("toast.failed_to_accept_apply") + " " + err.Error())
	}
}

func (o *Orchestrator) teacherAcceptApply(ctx context.Context) error {
	cls, user, err := o.noticeUser()
	if err != nil {
		return err
	}
	us := cls.UserService()
	if err := us.AcceptCoVideoApply(ctx, user); err != nil {
		return err
	}
	o.Extension.RemoveApplyUser(user.UserUUID)
	o.removeDialogBy(user.UserUUID)
	return o.inviteStream(ctx, user)
}

func (o *Orchestrator) TeacherRejectApply(ctx context.Context) {
	err := o.teacherRejectApply(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("reject apply failed")
		o.toast(o.t("toast.failed_to_reject_apply") + " " + err.Error())
	}
}

func (o *Orchestrator) teacherRejectApply(ctx context.Context) error {
	cls, user, err := o.noticeUser()
	if err != nil {
		return err
	}
	if err := cls.UserService().RejectCoVideoApply(ctx, user); err != nil {
		return err
	}
	o.Extension.RemoveApplyUser(user.UserUUID)
	o.removeDialogBy(user.UserUUID)
	return nil
}

// noticeUser resolves the user named by the current notice.
func (o *Orchestrator) noticeUser() (core.Classroom, domain.User, error) {
	cls := o.Classroom()
	if cls == nil {
		return nil, domain.User{}, ErrNotJoined
	}
	n := o.Notice()
	if n == nil {
		return nil, domain.User{}, ErrNoApplicant
	}
	user, ok := domain.FindUser(cls.FullUserList(), n.UserUUID)
	if !ok {
		return nil, domain.User{}, ErrNoApplicant
	}
	return cls, user, nil
}

func (o *Orchestrator) inviteStream(ctx context.Context, user domain.User) error {
	cls := o.Classroom()
	if cls == nil {
		return ErrNotJoined
	}
	return cls.UserService().InviteStreamBy(ctx, core.InviteParams{
		RoomUUID:   o.Scene.RoomUUID(),
		StreamUUID: user.StreamUUID,
		UserUUID:   user.UserUUID,
	})
}

// AcceptApplyUser is the hands-up list variant of TeacherAcceptApply.
func (o *Orchestrator) AcceptApplyUser(ctx context.Context, userUUID, streamUUID string) {
	o.Extension.AnswerAcceptInvitationApply(ctx, userUUID, streamUUID)
	o.Extension.RemoveApplyUser(userUUID)
	o.removeDialogBy(userUUID)
}

// UpdateHandUpState lets the teacher switch co-video and auto co-video.
func (o *Orchestrator) UpdateHandUpState(ctx context.Context, coVideo, autoCoVideo bool) {
	if err := o.Extension.UpdateHandUpState(ctx, coVideo, autoCoVideo); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("update hand up state failed")
		o.toast(o.t("toast.failed_to_update_hand_up_state") + " " + err.Error())
	}
}

func (o *Orchestrator) StartTick() { o.Extension.StartTick() }

func (o *Orchestrator) StopTick() { o.Extension.StopTick() }

func (o *Orchestrator) ToggleApplyUserList() { o.Extension.ToggleApplyUserList() }

// CoVideoStudents lists applicants currently publishing.
func (o *Orchestrator) CoVideoStudents() []domain.ApplyUser {
	return o.Extension.CoVideoStudents(o.Scene.Snapshot().Streams)
}
