package orch

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/dkeye/Classroom/internal/metrics"
)

// startLoop fans the classroom and messaging events into one goroutine.
func (o *Orchestrator) startLoop(cls core.Classroom) {
	o.stopLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.mu.Lock()
	o.loopCancel = cancel
	o.loopDone = done
	o.mu.Unlock()

	roomEvents := cls.Events()
	peerEvents := o.deps.Messaging.Events()
	go func() {
		defer close(done)
		o.run(ctx, cls, roomEvents, peerEvents)
	}()
}

func (o *Orchestrator) stopLoop() {
	o.mu.Lock()
	cancel, done := o.loopCancel, o.loopDone
	o.loopCancel, o.loopDone = nil, nil
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (o *Orchestrator) run(ctx context.Context, cls core.Classroom, room, peer <-chan core.Event) {
	log.Info().Str("module", "app.orch").Str("room", cls.RoomUUID()).Msg("event loop started")
	defer log.Info().Str("module", "app.orch").Str("room", cls.RoomUUID()).Msg("event loop stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-room:
			if !ok {
				room = nil
				continue
			}
			o.HandleEvent(ctx, cls, ev)
		case ev, ok := <-peer:
			if !ok {
				peer = nil
				continue
			}
			o.HandleEvent(ctx, cls, ev)
		}
	}
}

// HandleEvent reconciles one event. Snapshot replacements happen inline;
// anything touching local devices is queued on the scene mutex and this
// call returns without waiting for it.
func (o *Orchestrator) HandleEvent(ctx context.Context, cls core.Classroom, ev core.Event) {
	metrics.Events.WithLabelValues(string(ev.Name())).Inc()
	switch e := ev.(type) {
	case core.UserListChanged:
		o.Scene.ReplaceUsers(cls.FullUserList())
		log.Debug().Str("module", "app.orch").Str("event", string(e.Event)).Msg("user list replaced")
	case core.RemoteStreamChanged:
		o.Scene.ReplaceStreams(cls.FullStreamList())
		log.Debug().Str("module", "app.orch").Str("event", string(e.Event)).Msg("stream list replaced")
	case core.LocalStreamRemoved:
		o.serialize(ctx, ev, func(ctx context.Context) error { return o.onLocalStreamRemoved(ctx, e) })
	case core.LocalStreamUpdated:
		o.serialize(ctx, ev, func(ctx context.Context) error { return o.onLocalStreamUpdated(ctx, cls, e) })
	case core.PeerMessage:
		o.serialize(ctx, ev, func(ctx context.Context) error { return o.onPeerMessage(ctx, cls, e) })
	case core.ClassroomPropertyUpdated:
		o.onClassroomPropertyUpdated(e.Classroom)
	case core.RoomChatMessage:
		o.addChatMessage(domain.ChatMessage{
			ID:        e.FromUser.UserUUID,
			Timestamp: e.Timestamp,
			Text:      e.Message,
			Account:   e.FromUser.UserName,
		})
	case core.SeqIDChanged:
		o.deps.UI.UpdateCurSeqID(e.CurSeqID)
		o.deps.UI.UpdateLastSeqID(e.LatestSeqID)
	default:
		metrics.DroppedEvents.WithLabelValues("unknown_event").Inc()
		log.Warn().Str("module", "app.orch").Str("event", string(ev.Name())).Msg("unhandled event")
	}
}

// serialize queues fn on the scene mutex and logs its outcome.
func (o *Orchestrator) serialize(ctx context.Context, ev core.Event, fn func(ctx context.Context) error) {
	tag := uuid.NewString()
	logger := log.With().Str("module", "app.orch").Str("event", string(ev.Name())).Str("tag", tag).Logger()
	logger.Debug().Msg("queued")
	res := o.Mutex.Submit(ctx, fn)
	go func() {
		err := <-res
		switch {
		case err == nil:
			logger.Debug().Msg("handled")
		case errors.Is(err, context.Canceled):
			logger.Debug().Msg("skipped after shutdown")
		default:
			logger.Error().Err(err).Msg("async handler failed")
		}
	}()
}

func (o *Orchestrator) onClassroomPropertyUpdated(info core.ClassroomInfo) {
	props := info.RoomProperties
	if rec := props.Record; rec != nil {
		switch {
		case rec.State == core.RecordStateOn:
			o.Scene.SetRecordState(true)
		case rec.State == core.RecordStateOff && o.Scene.RecordState():
			o.addChatMessage(domain.ChatMessage{
				ID:        domain.SystemAccount,
				Timestamp: o.now(),
				Account:   domain.SystemAccount,
				Link:      o.Scene.RoomUUID(),
			})
			o.Scene.StopRecording()
		}
	}

	status := info.RoomStatus
	if o.Scene.ClassState() != status.CourseState {
		o.Scene.SetClass(status.CourseState, status.StartTime)
		if status.CourseState == domain.CourseStarted {
			o.startClock(status.StartTime)
		} else {
			o.stopClock()
		}
		log.Info().Str("module", "app.orch").Int("course_state", int(status.CourseState)).Int64("start_time", status.StartTime).Msg("class state changed")
	}
	o.Scene.SetMuted(!status.IsStudentChatAllowed)
	o.Extension.UpdateRoomProperties(o.Scene.RoomUUID(), props)
}
