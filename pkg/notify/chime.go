// Package notify plays the wake chime.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Chime plays a short mp3 through the default speaker.
type Chime struct {
	path   string
	logger *slog.Logger

	once    sync.Once
	rate    beep.SampleRate
	initErr error
}

// NewChime creates a Chime for the mp3 at path. An empty path makes Play a
// no-op.
func NewChime(path string, logger *slog.Logger) *Chime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chime{
		path:   path,
		logger: logger.With("component", "notify.chime"),
	}
}

// Decode opens and decodes the mp3 at path.
func Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode chime %s: %w", path, err)
	}
	return streamer, format, nil
}

// Play plays the chime and blocks until it finishes or ctx is done.
func (c *Chime) Play(ctx context.Context) error {
	if c.path == "" {
		return nil
	}

	streamer, format, err := Decode(c.path)
	if err != nil {
		return err
	}
	defer streamer.Close()

	c.once.Do(func() {
		c.rate = format.SampleRate
		c.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != c.rate {
		s = beep.Resample(4, format.SampleRate, c.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	c.logger.Debug("playing chime", "duration", format.SampleRate.D(streamer.Len()))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
