package audioio

import (
	"fmt"
	"log/slog"

	"github.com/selalipop/milo-firmware/pkg/display"
)

// New creates an audio capability with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
// indicator is only used by the Null backend.
func New(cfg Config, logger *slog.Logger, indicator display.Indicator) (Interface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto || backend == "" {
		backend = detectBestBackend()
	}

	logger.Debug("creating audio capability",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"device", cfg.Device,
	)

	switch backend {
	case BackendMock:
		return NewMock(logger), nil
	case BackendNull:
		return NewNull(indicator), nil
	case BackendPortAudio:
		return newPortAudioDevice(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend returns the best available backend for this build.
func detectBestBackend() Backend {
	if portAudioAvailable {
		return BackendPortAudio
	}
	return BackendNull
}

// AvailableBackends returns the list of backends available in this build.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock, BackendNull}
	if portAudioAvailable {
		backends = append(backends, BackendPortAudio)
	}
	return backends
}
