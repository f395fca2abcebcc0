package rtc

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type TrackState int32

const (
	TrackStateMuted TrackState = iota
	TrackStateOk
	TrackStateDelete
)

// LocalTrack is one published device. It starts muted; only an Ok track
// writes packets.
type LocalTrack struct {
	Track  *webrtc.TrackLocalStaticRTP
	Source Source
	state  atomic.Int32
}

func NewLocalTrack(track *webrtc.TrackLocalStaticRTP, src Source) *LocalTrack {
	return &LocalTrack{Track: track, Source: src}
}

func (t *LocalTrack) GetState() TrackState { return TrackState(t.state.Load()) }

func (t *LocalTrack) MarkOk()     { t.state.Store(int32(TrackStateOk)) }
func (t *LocalTrack) MarkMuted()  { t.state.Store(int32(TrackStateMuted)) }
func (t *LocalTrack) MarkDelete() { t.state.Store(int32(TrackStateDelete)) }

// loop pulls packets from the source and writes them while the track is open.
func (t *LocalTrack) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		if ctx.Err() != nil || t.GetState() == TrackStateDelete {
			logger.Info().Msg("track loop stopped")
			return
		}
		pkt, err := t.Source.Next(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("source read error, stopping")
			}
			t.MarkDelete()
			return
		}
		if t.GetState() != TrackStateOk {
			continue
		}
		if err := t.Track.WriteRTP(pkt); err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				t.MarkDelete()
				return
			}
			logger.Warn().Err(err).Msg("write RTP")
		}
	}
}

// Source yields paced RTP packets for a local track.
type Source interface {
	Next(ctx context.Context) (*rtp.Packet, error)
}

// PacedSource repeats one payload at a fixed frame interval. It stands in for
// capture hardware the host does not have.
type PacedSource struct {
	payload     []byte
	interval    time.Duration
	tsStep      uint32
	payloadType uint8
	ssrc        uint32

	ticker *time.Ticker
	seq    uint16
	ts     uint32
}

func NewPacedSource(payload []byte, interval time.Duration, clockRate uint32, payloadType uint8, ssrc uint32) *PacedSource {
	return &PacedSource{
		payload:     payload,
		interval:    interval,
		tsStep:      uint32(uint64(clockRate) * uint64(interval) / uint64(time.Second)),
		payloadType: payloadType,
		ssrc:        ssrc,
	}
}

// OpusSilence is 20ms opus silence frames.
func OpusSilence(ssrc uint32) *PacedSource {
	return NewPacedSource([]byte{0xf8, 0xff, 0xfe}, 20*time.Millisecond, 48000, 111, ssrc)
}

// VP8Blank sends a minimal VP8 payload at 15 fps.
func VP8Blank(ssrc uint32) *PacedSource {
	return NewPacedSource([]byte{0x10, 0x00, 0x00, 0x9d, 0x01, 0x2a}, time.Second/15, 90000, 96, ssrc)
}

func (s *PacedSource) Next(ctx context.Context) (*rtp.Packet, error) {
	if err := ctx.Err(); err != nil {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		return nil, err
	}
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.interval)
	}
	select {
	case <-ctx.Done():
		s.ticker.Stop()
		return nil, ctx.Err()
	case <-s.ticker.C:
	}
	s.seq++
	s.ts += s.tsStep
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         true,
			PayloadType:    s.payloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.ts,
			SSRC:           s.ssrc,
		},
		Payload: s.payload,
	}, nil
}
