package rtc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Classroom/internal/core"
)

var (
	ErrNotJoined     = errors.New("rtc channel not joined")
	ErrAlreadyJoined = errors.New("rtc channel already joined")
	ErrNoDevice      = errors.New("device not available")
)

// Signaler exchanges the SDP offer for the RTC channel.
type Signaler interface {
	Offer(ctx context.Context, p core.RTCParams, sdp string) (string, error)
}

type Config struct {
	ICEServers []string
	Camera     bool
	Microphone bool
	// NewCameraSource and NewMicrophoneSource default to synthetic sources.
	NewCameraSource     func() Source
	NewMicrophoneSource func() Source
}

// Service implements core.MediaService.
type Service struct {
	cfg Config
	sig Signaler

	mu     sync.Mutex
	conn   *Connection
	camera *LocalTrack
	mic    *LocalTrack
	cancel context.CancelFunc
	pumps  *conc.WaitGroup
}

func NewService(cfg Config, sig Signaler) *Service {
	if cfg.NewCameraSource == nil {
		cfg.NewCameraSource = func() Source { return VP8Blank(rand.Uint32()) }
	}
	if cfg.NewMicrophoneSource == nil {
		cfg.NewMicrophoneSource = func() Source { return OpusSilence(rand.Uint32()) }
	}
	return &Service{cfg: cfg, sig: sig}
}

func (s *Service) JoinRTC(ctx context.Context, p core.RTCParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return ErrAlreadyJoined
	}

	conn, err := NewConnection(NewWebRTCConfig(s.cfg.ICEServers), p.UID)
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	conn.Start(pumpCtx)

	camera, mic, err := s.addTracks(conn, p.UID)
	if err == nil {
		err = s.negotiate(ctx, conn, p)
	}
	if err != nil {
		cancel()
		conn.Close()
		return err
	}

	s.conn, s.camera, s.mic, s.cancel = conn, camera, mic, cancel
	s.pumps = &conc.WaitGroup{}
	for _, t := range []*LocalTrack{camera, mic} {
		if t == nil {
			continue
		}
		logger := log.With().Str("module", "adapters.rtc").Str("uid", p.UID).Str("track", t.Track.ID()).Logger()
		s.pumps.Go(func() { t.loop(pumpCtx, &logger) })
	}
	log.Info().Str("module", "adapters.rtc").Str("channel", p.Channel).Str("uid", p.UID).Msg("rtc joined")
	return nil
}

func (s *Service) addTracks(conn *Connection, uid string) (camera, mic *LocalTrack, err error) {
	if s.cfg.Camera {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}, "camera", uid)
		if err != nil {
			return nil, nil, err
		}
		if _, err := conn.AddLocalTrack(track); err != nil {
			return nil, nil, fmt.Errorf("add camera track: %w", err)
		}
		camera = NewLocalTrack(track, s.cfg.NewCameraSource())
	} else if err := conn.AddReceiver(webrtc.RTPCodecTypeVideo); err != nil {
		return nil, nil, err
	}

	if s.cfg.Microphone {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "microphone", uid)
		if err != nil {
			return nil, nil, err
		}
		if _, err := conn.AddLocalTrack(track); err != nil {
			return nil, nil, fmt.Errorf("add microphone track: %w", err)
		}
		mic = NewLocalTrack(track, s.cfg.NewMicrophoneSource())
	} else if err := conn.AddReceiver(webrtc.RTPCodecTypeAudio); err != nil {
		return nil, nil, err
	}
	return camera, mic, nil
}

func (s *Service) negotiate(ctx context.Context, conn *Connection, p core.RTCParams) error {
	offer, err := conn.CreateOffer(ctx)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	answer, err := s.sig.Offer(ctx, p, offer.SDP)
	if err != nil {
		return fmt.Errorf("signal offer: %w", err)
	}
	if err := conn.ApplyAnswer(answer); err != nil {
		return fmt.Errorf("apply answer: %w", err)
	}
	return nil
}

// LeaveRTC is a no-op when not joined.
func (s *Service) LeaveRTC(context.Context) error {
	s.mu.Lock()
	conn, cancel, pumps := s.conn, s.cancel, s.pumps
	s.conn, s.camera, s.mic, s.cancel, s.pumps = nil, nil, nil, nil, nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	cancel()
	pumps.Wait()
	conn.Close()
	return nil
}

func (s *Service) PrepareCamera(context.Context) (bool, error) { return s.cfg.Camera, nil }

func (s *Service) PrepareMicrophone(context.Context) (bool, error) { return s.cfg.Microphone, nil }

func (s *Service) OpenCamera(context.Context) error {
	return s.setTrack(func() *LocalTrack { return s.camera }, s.cfg.Camera, true)
}

func (s *Service) CloseCamera(context.Context) error {
	return s.setTrack(func() *LocalTrack { return s.camera }, s.cfg.Camera, false)
}

func (s *Service) OpenMicrophone(context.Context) error {
	return s.setTrack(func() *LocalTrack { return s.mic }, s.cfg.Microphone, true)
}

func (s *Service) CloseMicrophone(context.Context) error {
	return s.setTrack(func() *LocalTrack { return s.mic }, s.cfg.Microphone, false)
}

// setTrack opens or mutes a track. Closing is allowed without a channel.
func (s *Service) setTrack(pick func() *LocalTrack, available, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !available {
		if open {
			return ErrNoDevice
		}
		return nil
	}
	t := pick()
	if t == nil {
		if open {
			return ErrNotJoined
		}
		return nil
	}
	if open {
		t.MarkOk()
	} else {
		t.MarkMuted()
	}
	return nil
}

// State reports the track states for diagnostics.
func (s *Service) State() (camera, mic TrackState, joined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	camera, mic = TrackStateDelete, TrackStateDelete
	if s.camera != nil {
		camera = s.camera.GetState()
	}
	if s.mic != nil {
		mic = s.mic.GetState()
	}
	return camera, mic, s.conn != nil
}
