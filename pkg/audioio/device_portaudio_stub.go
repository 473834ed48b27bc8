//go:build !cgo

package audioio

import (
	"fmt"
	"log/slog"
)

const portAudioAvailable = false

// newPortAudioDevice returns an error when built without cgo.
func newPortAudioDevice(cfg Config, logger *slog.Logger) (Interface, error) {
	return nil, fmt.Errorf("PortAudio requires cgo")
}
