package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/selalipop/milo-firmware/internal/metrics"
	"github.com/selalipop/milo-firmware/pkg/audioio"
	"github.com/selalipop/milo-firmware/pkg/tools"
)

// Session is one conversation attempt with an agent.
// A Session cannot be restarted; create a new one per conversation.
type Session struct {
	id        string
	cfg       *Config
	logger    *slog.Logger
	audio     audioio.Interface
	registry  *tools.Registry
	init      InitiationData
	callbacks Callbacks

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	ctx            context.Context
	cancel         context.CancelFunc
	conversationID string
	failure        error
	startedAt      time.Time

	// endCh is closed when the session is asked to end; closed is closed
	// when teardown has finished.
	endCh   chan struct{}
	endOnce sync.Once
	closed  chan struct{}

	// writeMu serializes every socket write.
	writeMu sync.Mutex

	// lastInterruptionID is written only by the receive loop.
	lastInterruptionID atomic.Int64

	notifier   *serialQueue
	toolWorker *serialQueue
}

// NewSession creates an idle session. A nil registry means no client tools.
func NewSession(cfg *Config, audio audioio.Interface, registry *tools.Registry, init InitiationData, callbacks Callbacks) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, errors.New("conversation: audio interface is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if registry == nil {
		registry = tools.NewRegistry(logger)
	}

	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       cfg,
		logger:    logger.With("component", "conversation.session", "session_id", id),
		audio:     audio,
		registry:  registry,
		init:      init,
		callbacks: callbacks,
		state:     StateIdle,
		endCh:     make(chan struct{}),
		closed:    make(chan struct{}),
	}, nil
}

// ID returns the locally generated session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the id assigned by the agent, or "" before the
// metadata event arrives.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// LastInterruptionID returns the interruption watermark.
func (s *Session) LastInterruptionID() int64 {
	return s.lastInterruptionID.Load()
}

// StartedAt returns when the session became active.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Start connects to the agent and runs the conversation until it ends.
// Calling Start on a session that is not idle does nothing.
//
// Start returns nil when the conversation ends normally, a *ConnectionError
// if the connection could not be established, an error wrapping
// *audioio.DeviceError if audio failed to start, and a *TransportError if
// the connection failed mid-conversation. If ctx is cancelled the session
// ends and ctx.Err() is returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug("start ignored", "state", state)
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := s.connect(ctx)
	if err != nil {
		s.setState(StateClosed)
		metrics.SessionsTotal.WithLabelValues(metrics.OutcomeConnectFail).Inc()
		s.logger.Error("connect failed", "error", err)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	select {
	case <-s.endCh:
		// End was called while connecting
		s.state = StateClosed
		s.mu.Unlock()
		conn.Close()
		return nil
	default:
	}
	s.conn = conn
	s.ctx = runCtx
	s.cancel = cancel
	s.state = StateActive
	s.startedAt = time.Now()
	s.notifier = newSerialQueue("notifier", s.logger)
	s.toolWorker = newSerialQueue("tools", s.logger)
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	err = s.run(runCtx, conn)

	s.End()
	<-s.closed
	s.toolWorker.Close()
	s.toolWorker.Wait()
	s.notifier.Close()
	s.notifier.Wait()

	s.mu.Lock()
	if err == nil {
		err = s.failure
	}
	s.mu.Unlock()

	metrics.SessionsTotal.WithLabelValues(outcome(err)).Inc()
	return err
}

// run sends the initiation message, starts tools and audio, and runs the
// receive loop.
func (s *Session) run(ctx context.Context, conn *websocket.Conn) error {
	s.registry.Start()

	if err := s.send(newInitiationMessage(s.init)); err != nil {
		return err
	}

	if err := s.audio.Start(ctx, s.sendAudio); err != nil {
		s.logger.Error("audio start failed", "error", err)
		return fmt.Errorf("conversation: start audio: %w", err)
	}

	s.logger.Info("conversation started", "tools", s.registry.Names())

	return s.receiveLoop(ctx, conn)
}

// connect resolves the endpoint and dials the websocket.
func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := endpoint(ctx, s.cfg)
	if err != nil {
		return nil, NewConnectionError("resolve endpoint", err, IsRetryable(err))
	}

	headers := http.Header{}
	if s.cfg.APIKey != "" {
		headers.Set("xi-api-key", s.cfg.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		NetDialContext:   s.cfg.NetDialContext,
	}

	s.logger.Info("connecting to agent",
		"agent_id", s.cfg.AgentID,
		"signed", s.cfg.RequiresAuth,
	)

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return nil, NewConnectionError("dial failed", err, true)
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)

	return conn, nil
}

type inbound struct {
	data []byte
	err  error
}

// receiveLoop handles inbound messages until the session ends.
func (s *Session) receiveLoop(ctx context.Context, conn *websocket.Conn) error {
	messages := make(chan inbound)
	go s.readPump(conn, messages)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.endCh:
			return nil

		case <-ctx.Done():
			s.logger.Info("context cancelled, ending session")
			return ctx.Err()

		case <-ticker.C:
			if s.State() != StateActive {
				return nil
			}

		case in := <-messages:
			if in.err != nil {
				if s.State() != StateActive {
					return nil
				}
				if websocket.IsCloseError(in.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Info("agent closed the connection")
					return nil
				}
				s.logger.Error("read error", "error", in.err)
				return &TransportError{Op: "read", Cause: in.err}
			}
			s.handleMessage(in.data)
		}
	}
}

// readPump reads until the connection fails. It is the only reader of conn.
func (s *Session) readPump(conn *websocket.Conn, out chan<- inbound) {
	for {
		_, data, err := conn.ReadMessage()
		select {
		case out <- inbound{data: data, err: err}:
		case <-s.endCh:
			return
		}
		if err != nil {
			return
		}
	}
}

// handleMessage decodes one message and reacts to it.
func (s *Session) handleMessage(data []byte) {
	ev, err := DecodeEvent(data)
	if err != nil {
		var pe *ProtocolError
		switch {
		case errors.As(err, &pe):
			metrics.ProtocolErrors.WithLabelValues(pe.Type).Inc()
			s.logger.Warn("malformed event", "error", err)
		case errors.Is(err, ErrUnknownEvent):
			metrics.ProtocolErrors.WithLabelValues("unknown").Inc()
			s.logger.Debug("ignoring event", "reason", err)
		}
		return
	}

	switch e := ev.(type) {
	case MetadataEvent:
		s.mu.Lock()
		current := s.conversationID
		if current == "" {
			s.conversationID = e.ConversationID
		}
		s.mu.Unlock()

		if current != "" {
			s.logger.Warn("duplicate conversation metadata ignored",
				"conversation_id", current,
				"received", e.ConversationID,
			)
			return
		}
		s.logger.Info("conversation initiated",
			"conversation_id", e.ConversationID,
			"output_format", e.AgentOutputAudioFormat,
		)
		if fn := s.callbacks.OnConversationStarted; fn != nil {
			id := e.ConversationID
			s.notifier.Submit(func() { fn(id) })
		}

	case AudioEvent:
		if e.EventID <= s.lastInterruptionID.Load() {
			metrics.AudioChunks.WithLabelValues(metrics.Dropped).Inc()
			s.logger.Debug("dropping interrupted audio", "event_id", e.EventID)
			return
		}
		metrics.AudioChunks.WithLabelValues(metrics.Forwarded).Inc()
		s.audio.Output(e.PCM)

	case AgentResponseEvent:
		if fn := s.callbacks.OnAgentResponse; fn != nil {
			text := strings.TrimSpace(e.Text)
			s.notifier.Submit(func() { fn(text) })
		}

	case AgentResponseCorrectionEvent:
		if fn := s.callbacks.OnAgentResponseCorrection; fn != nil {
			original, corrected := strings.TrimSpace(e.Original), strings.TrimSpace(e.Corrected)
			s.notifier.Submit(func() { fn(original, corrected) })
		}

	case UserTranscriptEvent:
		if fn := s.callbacks.OnUserTranscript; fn != nil {
			text := strings.TrimSpace(e.Text)
			s.notifier.Submit(func() { fn(text) })
		}

	case InterruptionEvent:
		if e.EventID > s.lastInterruptionID.Load() {
			s.lastInterruptionID.Store(e.EventID)
		}
		metrics.Interruptions.Inc()
		s.logger.Debug("interrupted", "event_id", e.EventID)
		s.audio.Interrupt()

	case PingEvent:
		if err := s.send(newPongMessage(e.EventID)); err != nil {
			s.logger.Warn("pong failed", "event_id", e.EventID, "error", err)
		}
		if e.PingMs > 0 {
			metrics.PingLatency.Observe(float64(e.PingMs))
			if fn := s.callbacks.OnLatency; fn != nil {
				ms := int(e.PingMs)
				s.notifier.Submit(func() { fn(ms) })
			}
		}

	case ToolCallEvent:
		s.logger.Debug("tool call", "tool", e.ToolName, "tool_call_id", e.ToolCallID)
		s.toolWorker.Submit(func() { s.runToolCall(e) })
	}
}

// runToolCall executes one tool call and sends its result.
// It runs on the tool worker so results keep the order of their calls.
func (s *Session) runToolCall(call ToolCallEvent) {
	params := make(map[string]any, len(call.Parameters)+1)
	for k, v := range call.Parameters {
		params[k] = v
	}
	params["tool_call_id"] = call.ToolCallID

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	var msg toolResultMessage
	result, err := s.handleTool(ctx, call.ToolName, params)
	if err != nil {
		metrics.ToolCalls.WithLabelValues(call.ToolName, "error").Inc()
		msg = newToolResultMessage(call.ToolCallID, err.Error(), true)
	} else {
		metrics.ToolCalls.WithLabelValues(call.ToolName, "success").Inc()
		msg = newToolResultMessage(call.ToolCallID, toolResultText(call.ToolName, result), false)
	}

	if s.State() != StateActive {
		s.logger.Debug("session ended, dropping tool result", "tool", call.ToolName)
		return
	}
	if err := s.send(msg); err != nil {
		s.logger.Warn("send tool result failed", "tool", call.ToolName, "error", err)
	}
}

// handleTool runs a registry handler, turning a panic into an error so the
// call still gets a result.
func (s *Session) handleTool(ctx context.Context, name string, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool panicked", "tool", name, "panic", r)
			result, err = nil, fmt.Errorf("tool %s panicked: %v", name, r)
		}
	}()
	return s.registry.Handle(ctx, name, params)
}

// sendAudio is the audio input callback. It runs on the capture goroutine.
func (s *Session) sendAudio(frame []byte) {
	if s.State() != StateActive {
		return
	}
	if err := s.send(newUserAudioMessage(frame)); err != nil {
		if s.State() != StateActive {
			return
		}
		s.logger.Error("send audio failed, ending session", "error", err)
		s.mu.Lock()
		if s.failure == nil {
			s.failure = err
		}
		s.mu.Unlock()
		go s.End()
		return
	}
	metrics.AudioFramesSent.Inc()
}

// send writes one JSON message. Writes are serialized.
func (s *Session) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("conversation: marshal failed: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Op: "write", Cause: err}
	}
	return nil
}

// End stops audio, stops the tool registry, and closes the connection.
// Every step is attempted even if an earlier one fails; the failures are
// returned together. Calling End more than once is a no-op.
func (s *Session) End() error {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateClosed
		s.mu.Unlock()
		s.signalEnd()
		return nil
	case StateConnecting:
		s.mu.Unlock()
		s.signalEnd()
		return nil
	case StateEnding, StateClosed:
		s.mu.Unlock()
		return nil
	}
	s.state = StateEnding
	conn := s.conn
	cancel := s.cancel
	s.mu.Unlock()

	s.signalEnd()

	var err error
	if stopErr := s.audio.Stop(); stopErr != nil {
		err = multierr.Append(err, fmt.Errorf("stop audio: %w", stopErr))
	}
	s.registry.Stop()
	if cancel != nil {
		cancel()
	}
	if closeErr := s.closeConn(conn); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("close connection: %w", closeErr))
	}

	s.mu.Lock()
	s.state = StateClosed
	started := s.startedAt
	s.mu.Unlock()
	close(s.closed)

	if err != nil {
		s.logger.Warn("errors while ending session", "error", err)
	}
	s.logger.Info("conversation ended",
		"conversation_id", s.ConversationID(),
		"duration", time.Since(started).Round(time.Millisecond),
	)

	return err
}

// closeConn sends a close frame and closes the socket.
func (s *Session) closeConn(conn *websocket.Conn) error {
	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		// The agent may already have closed its side
		s.logger.Debug("close frame not sent", "error", err)
	}
	return conn.Close()
}

func (s *Session) signalEnd() {
	s.endOnce.Do(func() { close(s.endCh) })
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func outcome(err error) string {
	var devErr *audioio.DeviceError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return metrics.OutcomeCompleted
	case errors.As(err, &devErr):
		return metrics.OutcomeAudioFail
	default:
		return metrics.OutcomeTransport
	}
}
