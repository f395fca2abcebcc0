package domain

// RoomType is the numeric class type chosen when the room is created.
type RoomType int

const (
	RoomTypeOneToOne RoomType = iota
	RoomTypeSmallClass
	RoomTypeBigClass
	RoomTypeBreakoutClass
	RoomTypeMiddleClass
)

// LargeScene reports whether students of this room type join as audience.
func (t RoomType) LargeScene() bool {
	return t == RoomTypeBigClass || t == RoomTypeMiddleClass
}

// SceneType is passed to the room service on join.
type SceneType int

const SceneTypeLarge SceneType = 2

// JoinRole is the role requested from the room service on join.
type JoinRole string

const (
	JoinRoleHost        JoinRole = "host"
	JoinRoleBroadcaster JoinRole = "broadcaster"
	JoinRoleAudience    JoinRole = "audience"
)

// CourseState of the class.
type CourseState int

const (
	CourseNotStarted CourseState = iota
	CourseStarted
	CourseStopped
)

type Room struct {
	UUID string   `json:"roomUuid"`
	Name string   `json:"roomName"`
	Type RoomType `json:"roomType"`
}
