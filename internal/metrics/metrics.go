// Package metrics holds the Prometheus collectors for conversation sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "milo_sessions_active",
		Help: "Currently active conversation sessions",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "milo_sessions_total",
		Help: "Conversation sessions by outcome",
	}, []string{"outcome"})

	AudioChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "milo_audio_chunks_total",
		Help: "Agent audio chunks received, forwarded to playback or dropped after an interruption",
	}, []string{"disposition"})

	AudioFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "milo_audio_frames_sent_total",
		Help: "Microphone frames sent to the agent",
	})

	Interruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "milo_interruptions_total",
		Help: "Interruption events received",
	})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "milo_tool_calls_total",
		Help: "Client tool calls by tool and outcome",
	}, []string{"tool", "outcome"})

	PingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "milo_ping_latency_ms",
		Help:    "Round-trip latency reported by agent pings",
		Buckets: []float64{25, 50, 100, 150, 200, 300, 500, 800, 1200, 2000},
	})

	ProtocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "milo_protocol_errors_total",
		Help: "Malformed or unknown inbound messages by event type",
	}, []string{"type"})
)

// Session outcomes.
const (
	OutcomeCompleted   = "completed"
	OutcomeConnectFail = "connect_failed"
	OutcomeAudioFail   = "audio_failed"
	OutcomeTransport   = "transport_error"
)

// Audio chunk dispositions.
const (
	Forwarded = "forwarded"
	Dropped   = "dropped"
)
