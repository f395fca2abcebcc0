package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

type JoinParams struct {
	UserRole  domain.JoinRole  `json:"userRole"`
	RoomUUID  string           `json:"roomUuid"`
	UserName  string           `json:"userName"`
	UserUUID  string           `json:"userUuid"`
	SceneType domain.SceneType `json:"sceneType,omitempty"`
}

// MainStream is the camera stream slot the room service assigned to us.
type MainStream struct {
	StreamUUID string `json:"streamUuid" mapstructure:"streamUuid"`
	RTCToken   string `json:"rtcToken" mapstructure:"rtcToken"`
}

// Classroom is the room service session. Every getter returns a fresh snapshot
// owned by the caller.
type Classroom interface {
	EventSource
	Join(ctx context.Context, p JoinParams) error
	Leave(ctx context.Context) error

	RoomUUID() string
	UserToken() string
	MainStream() MainStream
	FullUserList() []domain.User
	FullStreamList() []domain.Stream
	LocalStreamData() *domain.LocalStream
	LocalScreenData() *domain.LocalStream
	ClassroomInfo() ClassroomInfo
	UserService() UserService
}

type PublishParams struct {
	StreamUUID      string                 `json:"streamUuid"`
	StreamName      string                 `json:"streamName"`
	VideoSourceType domain.VideoSourceType `json:"videoSourceType"`
	AudioSourceType domain.AudioSourceType `json:"audioSourceType"`
	HasVideo        bool                   `json:"hasVideo"`
	HasAudio        bool                   `json:"hasAudio"`
}

type InviteParams struct {
	RoomUUID   string `json:"roomUuid"`
	StreamUUID string `json:"streamUuid"`
	UserUUID   string `json:"userUuid"`
}

// UserService performs actions on behalf of the local user.
type UserService interface {
	LocalStream() *domain.LocalStream
	PublishStream(ctx context.Context, p PublishParams) error
	InviteStreamBy(ctx context.Context, p InviteParams) error
	SendRoomChatMessage(ctx context.Context, text string) error
	SendCoVideoApply(ctx context.Context, teacher domain.User) error
	AcceptCoVideoApply(ctx context.Context, user domain.User) error
	RejectCoVideoApply(ctx context.Context, user domain.User) error
	UpdateRoomProperties(ctx context.Context, props map[string]any, cause string) error
}
