package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAudioChunks(t *testing.T) {
	before := testutil.ToFloat64(AudioChunks.WithLabelValues(Dropped))
	AudioChunks.WithLabelValues(Dropped).Inc()

	if got := testutil.ToFloat64(AudioChunks.WithLabelValues(Dropped)); got != before+1 {
		t.Errorf("dropped = %v, want %v", got, before+1)
	}
}

func TestSessionsActive(t *testing.T) {
	SessionsActive.Inc()
	SessionsActive.Dec()

	if got := testutil.ToFloat64(SessionsActive); got != 0 {
		t.Errorf("active = %v, want 0", got)
	}
}
