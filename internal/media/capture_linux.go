//go:build linux

package media

import (
	"log/slog"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// Capture acquires local media, degrading gracefully: camera+mic first,
// then mic only, then nothing (receive-only). It never fails the session;
// the zero-track source is a valid outcome.
func Capture(selector *mediadevices.CodecSelector) *Source {
	src := &Source{selector: selector}

	type attempt struct {
		video bool
		audio bool
		label string
	}
	for _, a := range []attempt{
		{true, true, "video+audio"},
		{false, true, "audio-only"},
	} {
		constraints := mediadevices.MediaStreamConstraints{Codec: selector}
		if a.video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				// Raw formats only: some cameras expose an MJPEG node that
				// produces malformed frames and poisons the VP8 encoder.
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				c.Width = prop.IntRanged{Max: 640}
				c.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			slog.Warn("media capture attempt failed", "attempt", a.label, "err", err)
			continue
		}

		for _, track := range stream.GetTracks() {
			track.OnEnded(func(err error) {
				if err != nil {
					slog.Warn("local track ended", "err", err)
				}
			})
			switch track.Kind() {
			case webrtc.RTPCodecTypeAudio:
				src.audio = track
			case webrtc.RTPCodecTypeVideo:
				src.video = track
			}
		}
		slog.Info("local media captured", "attempt", a.label,
			"audio", src.audio != nil, "video", src.video != nil)
		return src
	}

	slog.Warn("no local media captured, joining receive-only")
	return src
}

// captureScreen grabs one display video track.
func captureScreen(selector *mediadevices.CodecSelector) (mediadevices.Track, error) {
	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Codec: selector,
		Video: func(_ *mediadevices.MediaTrackConstraints) {},
	})
	if err != nil {
		return nil, err
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, ErrNoScreenCapture
	}
	return tracks[0], nil
}
