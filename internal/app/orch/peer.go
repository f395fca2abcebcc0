package orch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

var ErrMalformedSignal = errors.New("malformed peer signal")

// PeerSignal is the JSON body of a user-message.
type PeerSignal struct {
	Cmd  int             `json:"cmd"`
	Data *PeerSignalData `json:"data"`
}

type PeerSignalData struct {
	Type     domain.InviteType `json:"type"`
	UserName string            `json:"userName"`
}

// DecodePeerSignal parses a peer message body. A body without data is malformed.
func DecodePeerSignal(raw string) (PeerSignal, error) {
	var s PeerSignal
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return PeerSignal{}, errors.Join(ErrMalformedSignal, err)
	}
	if s.Data == nil {
		return PeerSignal{}, ErrMalformedSignal
	}
	return s, nil
}

// onPeerMessage runs on the scene mutex. Only a failed teacherAccept grant is
// returned as an error; everything else is shown to the user and dropped.
func (o *Orchestrator) onPeerMessage(ctx context.Context, cls core.Classroom, e core.PeerMessage) error {
	if !o.Scene.RTCJoined() {
		return nil
	}
	from := e.FromUser
	sig, err := DecodePeerSignal(e.Message)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("from", from.UserUUID).Msg("dropping peer signal")
		return nil
	}
	kind := sig.Data.Type
	log.Info().Str("module", "app.orch").Str("from", from.UserUUID).Int("cmd", sig.Cmd).Stringer("type", kind).Msg("peer signal")

	o.showNotice(kind, from.UserUUID)
	switch kind {
	case domain.InviteStudentApply:
		o.showApplyDialog(from.UserName, from.UserUUID)
		o.Extension.AddApplyUser(domain.ApplyUser{
			UserName:   from.UserName,
			UserUUID:   from.UserUUID,
			StreamUUID: from.StreamUUID,
		})
	case domain.InviteStudentCancel, domain.InviteStudentStop:
		o.Extension.RemoveApplyUser(from.UserUUID)
	case domain.InviteTeacherStop:
		if err := errors.Join(o.Scene.CloseCamera(ctx), o.Scene.CloseMicrophone(ctx)); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Msg("co-video close failed")
			o.toast(o.t("toast.co_video_close_failed"))
			return nil
		}
		o.toast(o.t("toast.co_video_close_success"))
	case domain.InviteTeacherAccept:
		if !o.isBigClassStudent() {
			return nil
		}
		if err := o.openGrantedDevices(ctx); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Msg("publish after teacher accept failed")
			o.toast(o.t("toast.publish_rtc_failed"))
			return err
		}
		o.toast(o.t("toast.publish_rtc_success"))
	}
	return nil
}

func (o *Orchestrator) openGrantedDevices(ctx context.Context) error {
	if err := o.Scene.PrepareCamera(ctx); err != nil {
		return err
	}
	if err := o.Scene.PrepareMicrophone(ctx); err != nil {
		return err
	}
	if o.Scene.HasCamera() {
		if err := o.Scene.OpenCamera(ctx); err != nil {
			return err
		}
	}
	if o.Scene.HasMicrophone() {
		return o.Scene.OpenMicrophone(ctx)
	}
	return nil
}

func (o *Orchestrator) showNotice(kind domain.InviteType, userUUID string) {
	key := "toast.you_have_a_default_message"
	switch kind {
	case domain.InviteTeacherAccept:
		key = "toast.the_teacher_agreed"
	case domain.InviteStudentApply:
		key = "toast.student_applied"
	case domain.InviteTeacherStop:
		key = "toast.you_were_dismissed_by_the_teacher"
	case domain.InviteStudentStop, domain.InviteStudentCancel:
		key = "toast.student_canceled"
		o.removeDialogBy(userUUID)
	case domain.InviteTeacherReject:
		key = "toast.the_teacher_refused"
	}
	n := domain.Notice{Reason: o.t(key), UserUUID: userUUID}
	o.mu.Lock()
	o.notice = &n
	o.mu.Unlock()
	o.toast(n.Reason)
}

// showApplyDialog keeps at most one apply dialog per user.
func (o *Orchestrator) showApplyDialog(userName, userUUID string) {
	if o.findDialog(userUUID) != "" {
		return
	}
	o.deps.UI.ShowDialog(domain.Dialog{
		Type:     domain.DialogTypeApply,
		UserUUID: userUUID,
		Message:  userName + o.t("icon.requests_to_connect_the_microphone"),
	})
}

func (o *Orchestrator) removeDialogBy(userUUID string) {
	if id := o.findDialog(userUUID); id != "" {
		o.deps.UI.RemoveDialog(id)
	}
}

func (o *Orchestrator) findDialog(userUUID string) string {
	if userUUID == "" {
		return ""
	}
	for _, d := range o.deps.UI.Dialogs() {
		if d.UserUUID == userUUID {
			return d.ID
		}
	}
	return ""
}
