package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

var ErrRateLimited = errors.New("chat rate limited")

// peerCmdCoVideo is the cmd of co-video peer signals.
const peerCmdCoVideo = 1

type userService struct {
	cls *classroom
}

func (u *userService) LocalStream() *domain.LocalStream { return u.cls.LocalStreamData() }

func (u *userService) PublishStream(ctx context.Context, p core.PublishParams) error {
	return u.cls.client.call(ctx, "publish", u.cls.uuid, p, nil)
}

func (u *userService) InviteStreamBy(ctx context.Context, p core.InviteParams) error {
	return u.cls.client.call(ctx, "invite", u.cls.uuid, p, nil)
}

func (u *userService) SendRoomChatMessage(ctx context.Context, text string) error {
	if rl := u.cls.client.chat; rl != nil && !rl.Allow(u.cls.uuid) {
		return ErrRateLimited
	}
	return u.cls.client.call(ctx, "chat", u.cls.uuid, map[string]string{"message": text}, nil)
}

func (u *userService) SendCoVideoApply(ctx context.Context, teacher domain.User) error {
	return u.sendPeer(ctx, teacher, domain.InviteStudentApply)
}

func (u *userService) AcceptCoVideoApply(ctx context.Context, user domain.User) error {
	return u.sendPeer(ctx, user, domain.InviteTeacherAccept)
}

func (u *userService) RejectCoVideoApply(ctx context.Context, user domain.User) error {
	return u.sendPeer(ctx, user, domain.InviteTeacherReject)
}

func (u *userService) UpdateRoomProperties(ctx context.Context, props map[string]any, cause string) error {
	req := map[string]any{
		"properties": props,
		"cause":      map[string]string{"cmd": cause},
	}
	return u.cls.client.call(ctx, "properties", u.cls.uuid, req, nil)
}

// sendPeer delivers a co-video signal as a user-message to one peer.
func (u *userService) sendPeer(ctx context.Context, to domain.User, kind domain.InviteType) error {
	body, err := json.Marshal(map[string]any{
		"cmd": peerCmdCoVideo,
		"data": map[string]any{
			"type":     kind,
			"userName": u.localName(),
		},
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "adapters.signal").Str("to", to.UserUUID).Stringer("type", kind).Msg("peer signal")
	return u.cls.client.call(ctx, "peer", u.cls.uuid, map[string]string{
		"to":      to.UserUUID,
		"message": string(body),
	}, nil)
}

func (u *userService) localName() string {
	u.cls.client.userMu.RLock()
	id := u.cls.client.userUUID
	u.cls.client.userMu.RUnlock()
	if user, ok := domain.FindUser(u.cls.FullUserList(), id); ok {
		return user.UserName
	}
	return ""
}
