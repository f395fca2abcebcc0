package core

import "context"

// EventSource is anything that emits classroom events.
// The channel is closed when the source shuts down.
type EventSource interface {
	Events() <-chan Event
}

// Messaging is the peer messaging layer: login, peer signals and classroom creation.
type Messaging interface {
	EventSource
	Login(ctx context.Context, userUUID string) error
	Logout(ctx context.Context) error
	CreateClassroom(roomUUID, roomName string) (Classroom, error)
}
