package wake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// DefaultIOTimeout bounds a single socket exchange.
const DefaultIOTimeout = 5 * time.Second

// ControlMessage is one request on the control socket.
type ControlMessage struct {
	Cmd Command `json:"cmd"`
}

// Reply answers a ControlMessage.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Socket serves ControlMessages on a unix socket and forwards them to a
// Manual source.
type Socket struct {
	path   string
	sink   *Manual
	logger *slog.Logger

	ln   net.Listener
	wg   sync.WaitGroup
	once sync.Once
}

// Listen starts serving on path. A stale socket file at path is removed.
func Listen(path string, sink *Manual, logger *slog.Logger) (*Socket, error) {
	if logger == nil {
		logger = slog.Default()
	}

	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	s := &Socket{
		path:   path,
		sink:   sink,
		logger: logger.With("component", "wake.socket", "path", path),
		ln:     ln,
	}

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("control socket listening")
	return s, nil
}

// Path returns the socket path.
func (s *Socket) Path() string {
	return s.path
}

// Close stops the server and removes the socket file.
func (s *Socket) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ln.Close()
		s.wg.Wait()
		os.Remove(s.path)
	})
	return err
}

func (s *Socket) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Socket) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(DefaultIOTimeout))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		s.logger.Warn("bad control message", "error", err)
		json.NewEncoder(conn).Encode(Reply{Error: "bad message"})
		return
	}

	reply := Reply{OK: true}
	switch {
	case !msg.Cmd.Valid():
		s.logger.Warn("unknown command", "cmd", msg.Cmd)
		reply = Reply{Error: fmt.Sprintf("unknown command %q", msg.Cmd)}
	case !s.sink.Send(msg.Cmd):
		s.logger.Warn("command dropped, queue full", "cmd", msg.Cmd)
		reply = Reply{Error: "busy"}
	default:
		s.logger.Debug("command received", "cmd", msg.Cmd)
	}

	json.NewEncoder(conn).Encode(reply)
}

// SendCommand sends cmd to the daemon listening on path and waits for its
// reply.
func SendCommand(ctx context.Context, path string, cmd Command) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(DefaultIOTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("daemon rejected %s: %s", cmd, reply.Error)
	}
	return nil
}
