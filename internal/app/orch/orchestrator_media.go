package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

// Handlers in this file run on the scene mutex.

func (o *Orchestrator) onLocalStreamRemoved(ctx context.Context, e core.LocalStreamRemoved) error {
	if !o.Scene.RTCJoined() {
		log.Debug().Str("module", "app.orch").Msg("local stream removed after rtc left, ignored")
		return nil
	}
	if e.Type != domain.StreamTypeMain {
		return nil
	}
	o.Scene.SetCameraStream(nil)
	return errors.Join(o.Scene.CloseCamera(ctx), o.Scene.CloseMicrophone(ctx))
}

func (o *Orchestrator) onLocalStreamUpdated(ctx context.Context, cls core.Classroom, e core.LocalStreamUpdated) error {
	if !o.Scene.RTCJoined() {
		log.Debug().Str("module", "app.orch").Msg("local stream updated after rtc left, ignored")
		return nil
	}
	switch e.Type {
	case domain.StreamTypeMain:
		data := cls.LocalStreamData()
		if !data.Online() || data.Stream == nil {
			o.Scene.SetCameraStream(nil)
			return nil
		}
		o.Scene.SetCameraStream(data.Stream)
		return o.applyLocalMedia(ctx, *data.Stream)
	case domain.StreamTypeScreen:
		if o.Local.Role != domain.RoleTeacher {
			return nil
		}
		data := cls.LocalScreenData()
		if data.Online() && data.Stream != nil {
			o.Scene.SetScreenStream(data.Stream)
		} else {
			o.Scene.SetScreenStream(nil)
		}
	}
	return nil
}

// applyLocalMedia probes both devices and, while in the RTC channel, opens or
// closes each available one to match the stream flags.
func (o *Orchestrator) applyLocalMedia(ctx context.Context, stream domain.Stream) error {
	if err := o.Scene.PrepareCamera(ctx); err != nil {
		return err
	}
	if err := o.Scene.PrepareMicrophone(ctx); err != nil {
		return err
	}
	if !o.Scene.RTCJoined() {
		return nil
	}
	if o.Scene.HasCamera() {
		var err error
		if stream.HasVideo {
			err = o.Scene.OpenCamera(ctx)
		} else {
			err = o.Scene.CloseCamera(ctx)
		}
		if err != nil {
			return err
		}
	}
	if o.Scene.HasMicrophone() {
		if stream.HasAudio {
			return o.Scene.OpenMicrophone(ctx)
		}
		return o.Scene.CloseMicrophone(ctx)
	}
	return nil
}
