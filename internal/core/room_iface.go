package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

// RoomAPI creates or looks up a room by name and type.
type RoomAPI interface {
	FetchRoom(ctx context.Context, roomName string, roomType domain.RoomType) (string, error)
}

type InvitationAction int

const (
	InvitationApply InvitationAction = iota + 1
	InvitationAccept
	InvitationReject
	InvitationCancel
)

func (a InvitationAction) String() string {
	switch a {
	case InvitationApply:
		return "apply"
	case InvitationAccept:
		return "accept"
	case InvitationReject:
		return "reject"
	case InvitationCancel:
		return "cancel"
	}
	return "unknown"
}

// InvitationAPI is the hand-raise process of the room service.
type InvitationAPI interface {
	SetInvitation(ctx context.Context) error
	HandInvitationStart(ctx context.Context, action InvitationAction, userUUID string) error
	HandInvitationEnd(ctx context.Context, action InvitationAction, userUUID string) error
}

type BoardService interface {
	Init(ctx context.Context) error
	Leave(ctx context.Context) error
}

type RecordService interface {
	Init(ctx context.Context) error
	Leave(ctx context.Context) error
}

// ServiceFactory builds the per-session whiteboard and record handles.
type ServiceFactory interface {
	NewBoard(userToken, roomUUID string) BoardService
	NewRecord(userToken string) RecordService
}
