package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/selalipop/milo-firmware/pkg/audioio"
	"github.com/selalipop/milo-firmware/pkg/conversation"
	"github.com/selalipop/milo-firmware/pkg/display"
	"github.com/selalipop/milo-firmware/pkg/tools"
	"github.com/selalipop/milo-firmware/pkg/wake"
	"github.com/selalipop/milo-firmware/pkg/web"
)

// chime is played on every wake.
type chime interface {
	Play(ctx context.Context) error
}

// daemon runs one conversation per wake command.
type daemon struct {
	logger    *slog.Logger
	source    *wake.Manual
	newAudio  func() (audioio.Interface, error)
	newConfig func() *conversation.Config
	init      conversation.InitiationData
	registry  *tools.Registry
	indicator display.Indicator
	chime     chime
	dash      *web.Server // nil when the dashboard is disabled

	mu       sync.Mutex
	running  bool
	current  *conversation.Session
	sessions int
}

// Run handles wake commands until ctx is cancelled.
func (d *daemon) Run(ctx context.Context) error {
	d.indicator.Clear()
	d.logger.Info("waiting for wake")

	var done chan struct{}
	for {
		select {
		case <-ctx.Done():
			if done != nil {
				<-done
			}
			return nil

		case <-done:
			done = nil
			d.setRunning(false)
			d.logger.Info("waiting for wake")

		case cmd := <-d.source.Commands():
			switch cmd {
			case wake.CommandTrigger:
				if done != nil {
					d.logger.Info("wake ignored, conversation in progress")
					continue
				}
				d.logger.Info("wake detected")
				done = make(chan struct{})
				d.setRunning(true)
				go func(done chan struct{}) {
					defer close(done)
					d.converse(ctx)
				}(done)

			case wake.CommandStop:
				if err := d.End(); err != nil && !errors.Is(err, web.ErrNoSession) {
					d.logger.Warn("stop failed", "error", err)
				}
			}
		}
	}
}

// Trigger queues a wake. It implements web.Controller.
func (d *daemon) Trigger() error {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()

	if running || !d.source.Trigger() {
		return web.ErrBusy
	}
	return nil
}

// End ends the active conversation. It implements web.Controller.
func (d *daemon) End() error {
	d.mu.Lock()
	s := d.current
	d.mu.Unlock()

	if s == nil {
		return web.ErrNoSession
	}
	return s.End()
}

func (d *daemon) setRunning(running bool) {
	d.mu.Lock()
	d.running = running
	d.mu.Unlock()
}

// converse runs a single conversation from chime to hang-up.
func (d *daemon) converse(ctx context.Context) {
	if err := d.chime.Play(ctx); err != nil {
		d.logger.Warn("chime failed", "error", err)
	}
	d.indicator.ShowBusy()
	defer d.indicator.Clear()

	d.updateStatus(func(st *web.Status) {
		st.State = conversation.StateConnecting.String()
		st.SessionID = ""
		st.ConversationID = ""
		st.StartedAt = nil
		st.LastError = ""
	})

	audio, err := d.newAudio()
	if err != nil {
		d.finish(nil, err)
		return
	}

	session, err := conversation.NewSession(d.newConfig(), audio, d.registry, d.init, d.callbacks())
	if err != nil {
		d.finish(nil, err)
		return
	}

	d.mu.Lock()
	d.current = session
	d.sessions++
	count := d.sessions
	d.mu.Unlock()

	d.updateStatus(func(st *web.Status) {
		st.SessionID = session.ID()
		st.Sessions = count
	})

	err = session.Start(ctx)

	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()

	d.finish(session, err)
}

func (d *daemon) finish(session *conversation.Session, err error) {
	logger := d.logger
	if session != nil {
		logger = logger.With("session_id", session.ID(), "conversation_id", session.ConversationID())
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("conversation finished")
	case conversation.IsTransport(err):
		logger.Error("conversation lost", "error", err)
	default:
		logger.Error("conversation failed", "error", err)
	}

	d.updateStatus(func(st *web.Status) {
		st.State = "idle"
		st.Speaking = false
		if err != nil && !errors.Is(err, context.Canceled) {
			st.LastError = err.Error()
		}
	})
}

func (d *daemon) callbacks() conversation.Callbacks {
	return conversation.Callbacks{
		OnConversationStarted: func(id string) {
			now := time.Now()
			d.updateStatus(func(st *web.Status) {
				st.State = conversation.StateActive.String()
				st.ConversationID = id
				st.StartedAt = &now
			})
		},
		OnAgentResponse: func(text string) {
			d.logger.Info("agent", "text", text)
			d.indicator.ShowBusy()
			d.addConversation(web.RoleAgent, text)
			d.updateStatus(func(st *web.Status) { st.LastAgentMessage = text })
		},
		OnAgentResponseCorrection: func(original, corrected string) {
			d.logger.Debug("agent corrected", "original", original, "corrected", corrected)
			d.updateStatus(func(st *web.Status) { st.LastAgentMessage = corrected })
		},
		OnUserTranscript: func(text string) {
			d.logger.Info("user", "text", text)
			d.indicator.Clear()
			d.addConversation(web.RoleUser, text)
			d.updateStatus(func(st *web.Status) { st.LastUserMessage = text })
		},
		OnLatency: func(ms int) {
			d.updateStatus(func(st *web.Status) { st.LatencyMs = ms })
		},
	}
}

// observeTool wraps every handler so calls show up in the dashboard log.
func (d *daemon) observeTool(t tools.Tool) tools.Tool {
	handler := t.Handler
	t.Handler = func(ctx context.Context, params map[string]any) (any, error) {
		result, err := handler(ctx, params)
		if err != nil {
			d.addConversation(web.RoleTool, t.Name+" failed: "+err.Error())
		} else {
			d.addConversation(web.RoleTool, t.Name)
		}
		return result, err
	}
	return t
}

func (d *daemon) updateStatus(update func(*web.Status)) {
	if d.dash != nil {
		d.dash.UpdateStatus(update)
	}
}

func (d *daemon) addConversation(role, message string) {
	if d.dash != nil {
		d.dash.AddConversation(role, message)
	}
}
