// Package web provides the status dashboard for the milo daemon.
package web

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/selalipop/milo-firmware/pkg/display"
	"github.com/selalipop/milo-firmware/pkg/hub"
)

// maxConversation is the number of conversation entries kept.
const maxConversation = 100

// Conversation roles.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleTool   = "tool"
	RoleSystem = "system"
)

// Errors a Controller may return.
var (
	// ErrBusy means a conversation is already running or queued.
	ErrBusy = errors.New("web: conversation already running")

	// ErrNoSession means there is no conversation to end.
	ErrNoSession = errors.New("web: no active conversation")
)

// Controller starts and ends conversations on behalf of the dashboard.
type Controller interface {
	Trigger() error
	End() error
}

// Status is the daemon state shown on the dashboard.
type Status struct {
	State            string     `json:"state"`
	SessionID        string     `json:"session_id,omitempty"`
	ConversationID   string     `json:"conversation_id,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	Speaking         bool       `json:"speaking"`
	LatencyMs        int        `json:"latency_ms"`
	Sessions         int        `json:"sessions"`
	LastError        string     `json:"last_error,omitempty"`
	LastUserMessage  string     `json:"last_user_message,omitempty"`
	LastAgentMessage string     `json:"last_agent_message,omitempty"`
	Tools            []string   `json:"tools"`
}

// ConversationEntry is one line of the conversation log.
type ConversationEntry struct {
	Time    string `json:"time"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	controller Controller

	status   Status
	statusMu sync.RWMutex

	conversation   []ConversationEntry
	conversationMu sync.RWMutex

	statusHub *hub.Hub
}

// NewServer creates a new web dashboard server. The status hub must be
// running for live updates to reach clients.
func NewServer(addr string, controller Controller, statusHub *hub.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:         addr,
		logger:       logger.With("component", "web"),
		controller:   controller,
		status:       Status{State: "idle", Tools: []string{}},
		conversation: make([]ConversationEntry, 0, maxConversation),
		statusHub:    statusHub,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Milo Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleGetConversation)
	api.Post("/trigger", s.handleTrigger)
	api.Post("/end", s.handleEnd)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "url", "http://"+s.addr)
	return s.app.Listen(s.addr)
}

// Serve serves on ln and blocks until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// UpdateStatus updates the daemon status and broadcasts it to clients
func (s *Server) UpdateStatus(update func(*Status)) {
	s.statusMu.Lock()
	update(&s.status)
	status := s.snapshotLocked()
	s.statusMu.Unlock()

	if s.statusHub != nil {
		if err := s.statusHub.BroadcastJSON(status); err != nil {
			s.logger.Warn("status broadcast failed", "error", err)
		}
	}
}

// Status returns a copy of the current status.
func (s *Server) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.snapshotLocked()
}

func (s *Server) snapshotLocked() Status {
	status := s.status
	status.Tools = append([]string{}, s.status.Tools...)
	if s.status.StartedAt != nil {
		t := *s.status.StartedAt
		status.StartedAt = &t
	}
	return status
}

// AddConversation appends an entry to the conversation log
func (s *Server) AddConversation(role, message string) {
	entry := ConversationEntry{
		Time:    time.Now().Format("15:04:05"),
		Role:    role,
		Message: message,
	}

	s.conversationMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > maxConversation {
		s.conversation = s.conversation[1:]
	}
	s.conversationMu.Unlock()
}

// ShowBusy marks the agent as speaking.
func (s *Server) ShowBusy() {
	s.UpdateStatus(func(st *Status) { st.Speaking = true })
}

// Clear marks the agent as silent.
func (s *Server) Clear() {
	s.UpdateStatus(func(st *Status) { st.Speaking = false })
}

var _ display.Indicator = (*Server)(nil)
