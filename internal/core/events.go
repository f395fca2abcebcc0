package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Classroom/internal/domain"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrBadPayload   = errors.New("bad event payload")
)

type EventName string

const (
	EventLocalUserUpdated         EventName = "local-user-updated"
	EventRemoteUserAdded          EventName = "remote-user-added"
	EventRemoteUserUpdated        EventName = "remote-user-updated"
	EventRemoteUserRemoved        EventName = "remote-user-removed"
	EventLocalStreamRemoved       EventName = "local-stream-removed"
	EventLocalStreamUpdated       EventName = "local-stream-updated"
	EventRemoteStreamAdded        EventName = "remote-stream-added"
	EventRemoteStreamRemoved      EventName = "remote-stream-removed"
	EventRemoteStreamUpdated      EventName = "remote-stream-updated"
	EventUserMessage              EventName = "user-message"
	EventClassroomPropertyUpdated EventName = "classroom-property-updated"
	EventRoomChatMessage          EventName = "room-chat-message"
	EventSeqIDChanged             EventName = "seqIdChanged"
)

// Event is one of the typed messages below.
type Event interface {
	Name() EventName
}

// UserListChanged covers local-user-updated and remote-user-*.
type UserListChanged struct {
	Event EventName
}

// LocalStreamRemoved is local-stream-removed.
type LocalStreamRemoved struct {
	Type  domain.StreamType `json:"type"`
	SeqID int64             `json:"seqId"`
}

// LocalStreamUpdated is local-stream-updated.
type LocalStreamUpdated struct {
	Type  domain.StreamType `json:"type"`
	SeqID int64             `json:"seqId"`
}

// RemoteStreamChanged covers remote-stream-*.
type RemoteStreamChanged struct {
	Event EventName
}

// PeerMessage is user-message: a JSON payload sent by another user.
type PeerMessage struct {
	FromUser domain.User `json:"fromUser"`
	Message  string      `json:"message"`
}

// ClassroomPropertyUpdated carries the full classroom after the change.
type ClassroomPropertyUpdated struct {
	Classroom ClassroomInfo
}

// RoomChatMessage is an incoming room chat line.
type RoomChatMessage struct {
	FromUser  domain.User `json:"fromUser"`
	Message   string      `json:"message"`
	Timestamp int64       `json:"timestamp"`
}

type SeqIDChanged struct {
	CurSeqID    int64 `json:"curSeqId"`
	LatestSeqID int64 `json:"latestSeqId"`
}

func (e UserListChanged) Name() EventName        { return e.Event }
func (LocalStreamRemoved) Name() EventName       { return EventLocalStreamRemoved }
func (LocalStreamUpdated) Name() EventName       { return EventLocalStreamUpdated }
func (e RemoteStreamChanged) Name() EventName    { return e.Event }
func (PeerMessage) Name() EventName              { return EventUserMessage }
func (ClassroomPropertyUpdated) Name() EventName { return EventClassroomPropertyUpdated }
func (RoomChatMessage) Name() EventName          { return EventRoomChatMessage }
func (SeqIDChanged) Name() EventName             { return EventSeqIDChanged }

// DecodeEvent maps a named wire payload to its typed event.
// Unknown names yield ErrUnknownEvent, malformed payloads ErrBadPayload.
func DecodeEvent(name EventName, payload json.RawMessage) (Event, error) {
	switch name {
	case EventLocalUserUpdated, EventRemoteUserAdded, EventRemoteUserUpdated, EventRemoteUserRemoved:
		return UserListChanged{Event: name}, nil
	case EventRemoteStreamAdded, EventRemoteStreamRemoved, EventRemoteStreamUpdated:
		return RemoteStreamChanged{Event: name}, nil
	case EventLocalStreamRemoved:
		var e LocalStreamRemoved
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventLocalStreamUpdated:
		var e LocalStreamUpdated
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventUserMessage:
		var e PeerMessage
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventRoomChatMessage:
		var e RoomChatMessage
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventSeqIDChanged:
		var e SeqIDChanged
		if err := unmarshalPayload(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case EventClassroomPropertyUpdated:
		var raw map[string]any
		if err := unmarshalPayload(payload, &raw); err != nil {
			return nil, err
		}
		info, err := DecodeClassroomInfo(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadPayload, err)
		}
		return ClassroomPropertyUpdated{Classroom: info}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

func unmarshalPayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty", ErrBadPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return nil
}
