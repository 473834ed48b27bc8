//go:build cgo

package audioio

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
)

const portAudioAvailable = true

// maxConsecutiveReadErrors stops capture after this many failed reads in a row.
const maxConsecutiveReadErrors = 5

// Device plays and captures audio through PortAudio blocking streams.
type Device struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	inited  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	in     *portaudio.Stream
	out    *portaudio.Stream
	active []*portaudio.Stream
	inBuf  []int16
	outBuf []int16

	queue *PlaybackQueue

	// Stats
	framesCaptured atomic.Int64
	framesPlayed   atomic.Int64
	framesDropped  atomic.Int64
	writeErrors    atomic.Int64
}

// NewDevice creates a PortAudio device. Nothing is opened until Start.
func NewDevice(cfg Config, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
		queue:  NewPlaybackQueue(),
	}
}

func newPortAudioDevice(cfg Config, logger *slog.Logger) (Interface, error) {
	return NewDevice(cfg, logger), nil
}

// Start opens the input and output streams and starts the capture and
// playback goroutines.
func (d *Device) Start(ctx context.Context, input InputFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrAlreadyStarted
	}
	d.started = true

	if err := portaudio.Initialize(); err != nil {
		return &DeviceError{Op: "initialize", Cause: err}
	}
	d.inited = true

	inDev, outDev, err := d.selectDevices()
	if err != nil {
		return err
	}

	channels := d.cfg.Channels
	d.inBuf = make([]int16, d.cfg.InputFrames()*channels)
	d.outBuf = make([]int16, d.cfg.OutputFrames()*channels)

	inParams := portaudio.HighLatencyParameters(inDev, nil)
	inParams.Input.Channels = channels
	inParams.SampleRate = float64(d.cfg.SampleRate)
	inParams.FramesPerBuffer = d.cfg.InputFrames()

	d.in, err = portaudio.OpenStream(inParams, d.inBuf)
	if err != nil {
		return &DeviceError{Op: "open input stream", Cause: err}
	}

	outParams := portaudio.HighLatencyParameters(nil, outDev)
	outParams.Output.Channels = channels
	outParams.SampleRate = float64(d.cfg.SampleRate)
	outParams.FramesPerBuffer = d.cfg.OutputFrames()

	d.out, err = portaudio.OpenStream(outParams, d.outBuf)
	if err != nil {
		return &DeviceError{Op: "open output stream", Cause: err}
	}

	if err := d.in.Start(); err != nil {
		return &DeviceError{Op: "start input stream", Cause: err}
	}
	d.active = append(d.active, d.in)
	if err := d.out.Start(); err != nil {
		return &DeviceError{Op: "start output stream", Cause: err}
	}
	d.active = append(d.active, d.out)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(2)
	go d.captureLoop(runCtx, input)
	go d.playbackLoop(runCtx)

	d.logger.Info("audio device started",
		"input", inDev.Name,
		"output", outDev.Name,
		"sample_rate", d.cfg.SampleRate,
		"input_frames", d.cfg.InputFrames(),
		"output_frames", d.cfg.OutputFrames(),
	)

	return nil
}

// selectDevices picks the first devices whose name contains cfg.Device,
// falling back to the system defaults.
func (d *Device) selectDevices() (*portaudio.DeviceInfo, *portaudio.DeviceInfo, error) {
	inDev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, nil, &DeviceError{Op: "default input device", Cause: err}
	}
	outDev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, nil, &DeviceError{Op: "default output device", Cause: err}
	}

	if d.cfg.Device == "" {
		return inDev, outDev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, nil, &DeviceError{Op: "list devices", Cause: err}
	}

	want := strings.ToLower(d.cfg.Device)
	var foundIn, foundOut bool
	for _, info := range devices {
		if !strings.Contains(strings.ToLower(info.Name), want) {
			continue
		}
		if !foundIn && info.MaxInputChannels >= d.cfg.Channels {
			inDev, foundIn = info, true
		}
		if !foundOut && info.MaxOutputChannels >= d.cfg.Channels {
			outDev, foundOut = info, true
		}
	}
	if !foundIn && !foundOut {
		d.logger.Warn("no audio device matched, using defaults", "device", d.cfg.Device)
	}

	return inDev, outDev, nil
}

func (d *Device) captureLoop(ctx context.Context, input InputFunc) {
	defer d.wg.Done()

	failures := 0
	for ctx.Err() == nil {
		err := d.in.Read()
		if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			failures++
			d.logger.Warn("audio capture read failed", "error", err, "consecutive", failures)
			if failures >= maxConsecutiveReadErrors {
				d.logger.Error("audio capture stopped after repeated failures")
				return
			}
			continue
		}
		failures = 0

		if ctx.Err() != nil {
			return
		}

		d.framesCaptured.Add(1)
		if input != nil {
			input(SamplesToBytes(d.inBuf))
		}
	}
}

func (d *Device) playbackLoop(ctx context.Context) {
	defer d.wg.Done()

	size := len(d.outBuf)
	for {
		frame, ok := d.queue.Pop(ctx)
		if !ok {
			return
		}

		for _, chunk := range chunkSamples(BytesToSamples(frame), size) {
			if ctx.Err() != nil {
				return
			}
			copy(d.outBuf, chunk)
			if err := d.out.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
				d.writeErrors.Add(1)
				d.logger.Warn("audio playback write failed", "error", err)
			}
		}
		d.framesPlayed.Add(1)
	}
}

// Stop halts both goroutines, closes the streams, and terminates PortAudio.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return nil
	}
	d.stopped = true

	if d.cancel != nil {
		d.cancel()
	}
	d.queue.Close()
	d.wg.Wait()

	var err error
	for _, s := range d.active {
		err = multierr.Append(err, s.Stop())
	}
	for _, s := range []*portaudio.Stream{d.in, d.out} {
		if s != nil {
			err = multierr.Append(err, s.Close())
		}
	}
	if d.inited {
		err = multierr.Append(err, portaudio.Terminate())
	}

	d.logger.Info("audio device stopped",
		"frames_captured", d.framesCaptured.Load(),
		"frames_played", d.framesPlayed.Load(),
	)

	if err != nil {
		return &DeviceError{Op: "stop", Cause: err}
	}
	return nil
}

// Output queues a frame for playback.
func (d *Device) Output(frame []byte) {
	d.queue.Push(frame)
}

// Interrupt discards queued frames. The frame currently being written
// finishes playing.
func (d *Device) Interrupt() {
	if n := d.queue.Clear(); n > 0 {
		d.framesDropped.Add(int64(n))
		d.logger.Debug("playback interrupted", "dropped", n)
	}
}

// Stats returns device statistics.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	running := d.started && !d.stopped
	d.mu.Unlock()

	return Stats{
		FramesCaptured: d.framesCaptured.Load(),
		FramesPlayed:   d.framesPlayed.Load(),
		FramesDropped:  d.framesDropped.Load(),
		WriteErrors:    d.writeErrors.Load(),
		Running:        running,
		Backend:        string(BackendPortAudio),
	}
}

var _ Interface = (*Device)(nil)
