package core

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/dkeye/Classroom/internal/domain"
)

var ErrBadClassroomInfo = errors.New("bad classroom info")

// RecordStateOn and RecordStateOff are the values of roomProperties.record.state.
const (
	RecordStateOff = 0
	RecordStateOn  = 1
)

// NoProcessTimeout means the hands-up process has no wait limit.
const NoProcessTimeout = -1

type ClassroomInfo struct {
	RoomInfo       RoomInfo       `json:"roomInfo" mapstructure:"roomInfo"`
	RoomStatus     RoomStatus     `json:"roomStatus" mapstructure:"roomStatus"`
	RoomProperties RoomProperties `json:"roomProperties" mapstructure:"roomProperties"`
}

type RoomInfo struct {
	RoomUUID string `json:"roomUuid" mapstructure:"roomUuid"`
	RoomName string `json:"roomName" mapstructure:"roomName"`
}

type RoomStatus struct {
	CourseState          domain.CourseState `json:"courseState" mapstructure:"courseState"`
	StartTime            int64              `json:"startTime" mapstructure:"startTime"`
	IsStudentChatAllowed bool               `json:"isStudentChatAllowed" mapstructure:"isStudentChatAllowed"`
}

// RoomProperties are the free-form room attributes; only the known keys are kept.
// Record is nil when the room has no record property at all.
type RoomProperties struct {
	Record       *RecordProperty    `json:"record,omitempty" mapstructure:"record"`
	HandUpStates HandUpStates       `json:"handUpStates" mapstructure:"handUpStates"`
	Processes    map[string]Process `json:"processes,omitempty" mapstructure:"processes"`
}

type RecordProperty struct {
	State    int    `json:"state" mapstructure:"state"`
	RecordID string `json:"recordId" mapstructure:"recordId"`
}

type HandUpStates struct {
	State       int `json:"state" mapstructure:"state"`
	AutoCoVideo int `json:"autoCoVideo" mapstructure:"autoCoVideo"`
}

type Process struct {
	Timeout *int `json:"timeout,omitempty" mapstructure:"timeout"`
}

func (p RoomProperties) CoVideoEnabled() bool     { return p.HandUpStates.State != 0 }
func (p RoomProperties) AutoCoVideoEnabled() bool { return p.HandUpStates.AutoCoVideo != 0 }

// RecordID returns the current record id or "" when absent.
func (p RoomProperties) RecordID() string {
	if p.Record == nil {
		return ""
	}
	return p.Record.RecordID
}

// ProcessTimeout returns the hands-up wait limit in seconds for the room,
// or NoProcessTimeout.
func (p RoomProperties) ProcessTimeout(roomUUID string) int {
	pr, ok := p.Processes[roomUUID]
	if !ok || pr.Timeout == nil {
		return NoProcessTimeout
	}
	return *pr.Timeout
}

// DecodeClassroomInfo turns the loosely typed room payload into ClassroomInfo.
// Numeric strings and floats are accepted where ints are expected.
func DecodeClassroomInfo(raw map[string]any) (ClassroomInfo, error) {
	var info ClassroomInfo
	if err := decodeWeak(raw, &info); err != nil {
		return ClassroomInfo{}, fmt.Errorf("%w: %w", ErrBadClassroomInfo, err)
	}
	switch info.RoomStatus.CourseState {
	case domain.CourseNotStarted, domain.CourseStarted, domain.CourseStopped:
	default:
		return ClassroomInfo{}, fmt.Errorf("%w: course state %d", ErrBadClassroomInfo, info.RoomStatus.CourseState)
	}
	return info, nil
}

// DecodeRoomProperties decodes only the roomProperties object.
func DecodeRoomProperties(raw map[string]any) (RoomProperties, error) {
	var props RoomProperties
	if err := decodeWeak(raw, &props); err != nil {
		return RoomProperties{}, fmt.Errorf("%w: %w", ErrBadClassroomInfo, err)
	}
	return props, nil
}

func decodeWeak(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
