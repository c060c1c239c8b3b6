//go:build !linux

package media

import (
	"log/slog"

	"github.com/pion/mediadevices"
)

// Capture on non-Linux platforms produces a trackless source: the client
// joins receive-only. Capture drivers are wired for Linux only.
func Capture(selector *mediadevices.CodecSelector) *Source {
	slog.Warn("local media capture not supported on this platform, joining receive-only")
	return &Source{selector: selector}
}

func captureScreen(_ *mediadevices.CodecSelector) (mediadevices.Track, error) {
	return nil, ErrNoScreenCapture
}
