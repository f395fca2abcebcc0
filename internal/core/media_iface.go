package core

import "context"

type RTCParams struct {
	UID     string
	Channel string
	Token   string
}

// MediaService owns the local capture devices and the RTC channel.
type MediaService interface {
	JoinRTC(ctx context.Context, p RTCParams) error
	LeaveRTC(ctx context.Context) error
	// PrepareCamera reports whether a camera can be opened.
	PrepareCamera(ctx context.Context) (bool, error)
	PrepareMicrophone(ctx context.Context) (bool, error)
	OpenCamera(ctx context.Context) error
	CloseCamera(ctx context.Context) error
	OpenMicrophone(ctx context.Context) error
	CloseMicrophone(ctx context.Context) error
}
