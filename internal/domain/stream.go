package domain

type VideoSourceType int

const (
	VideoSourceNone VideoSourceType = iota
	VideoSourceCamera
	VideoSourceScreen
)

type AudioSourceType int

const (
	AudioSourceNone AudioSourceType = iota
	AudioSourceMic
)

// StreamState is 0 when the stream is offline, anything else is online.
type StreamState int

const (
	StreamOffline StreamState = iota
	StreamOnline
)

// StreamType tags local stream events.
type StreamType string

const (
	StreamTypeMain   StreamType = "main"
	StreamTypeScreen StreamType = "screen"
)

type Stream struct {
	StreamUUID      string          `json:"streamUuid" mapstructure:"streamUuid"`
	StreamName      string          `json:"streamName" mapstructure:"streamName"`
	User            User            `json:"userInfo" mapstructure:"userInfo"`
	VideoSourceType VideoSourceType `json:"videoSourceType" mapstructure:"videoSourceType"`
	AudioSourceType AudioSourceType `json:"audioSourceType" mapstructure:"audioSourceType"`
	HasVideo        bool            `json:"hasVideo" mapstructure:"hasVideo"`
	HasAudio        bool            `json:"hasAudio" mapstructure:"hasAudio"`
}

func (s Stream) IsScreen() bool { return s.VideoSourceType == VideoSourceScreen }

// LocalStream is a local stream snapshot as held by the room service.
type LocalStream struct {
	State  StreamState `json:"state" mapstructure:"state"`
	Stream *Stream     `json:"stream,omitempty" mapstructure:"stream"`
}

func (l *LocalStream) Online() bool {
	return l != nil && l.State != StreamOffline
}

// AnyScreen reports whether any stream in the list is a screen share.
func AnyScreen(streams []Stream) bool {
	for _, s := range streams {
		if s.IsScreen() {
			return true
		}
	}
	return false
}
