package media

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
)

var ErrNoScreenCapture = errors.New("screen capture not available")

// Source holds the locally captured tracks. It is shared read-only across
// all negotiation sessions; only the owning client stops the tracks.
type Source struct {
	selector *mediadevices.CodecSelector

	mu     sync.Mutex
	audio  mediadevices.Track
	video  mediadevices.Track
	screen mediadevices.Track
}

// AudioTrack returns the microphone track, or nil when audio-less.
func (s *Source) AudioTrack() webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil {
		return nil
	}
	return s.audio
}

// VideoTrack returns the camera track, or nil when video-less.
func (s *Source) VideoTrack() webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video == nil {
		return nil
	}
	return s.video
}

// HasAudio reports whether a microphone track was captured.
func (s *Source) HasAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio != nil
}

// HasVideo reports whether a camera track was captured.
func (s *Source) HasVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video != nil
}

// StartScreenShare captures the display and returns the track to swap into
// open sessions. The camera track is untouched; stopping the share swaps
// it back.
func (s *Source) StartScreenShare() (webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screen != nil {
		return s.screen, nil
	}

	track, err := captureScreen(s.selector)
	if err != nil {
		return nil, err
	}
	s.screen = track
	slog.Info("screen capture started")
	return track, nil
}

// StopScreenShare stops the display capture. Idempotent.
func (s *Source) StopScreenShare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screen == nil {
		return
	}
	s.screen.Close()
	s.screen = nil
	slog.Info("screen capture stopped")
}

// Close stops every captured track.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range []mediadevices.Track{s.audio, s.video, s.screen} {
		if t != nil {
			t.Close()
		}
	}
	s.audio, s.video, s.screen = nil, nil, nil
}
