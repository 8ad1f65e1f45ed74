package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
)

// commandBacklog bounds the dispatcher channel. Once full, reader tasks
// stop draining their sockets and backpressure lands in the kernel
// buffers.
const commandBacklog = 100

// Handler consumes control commands. A single dispatcher goroutine
// calls it, so commands are totally ordered.
type Handler interface {
	CloseNotification(id uint32) error
	OpenHistory() error
	CloseHistory() error
	ToggleHistory() error
	ActionInvoked(id uint32, action string) error
	ReplySend(id uint32, text string) error
	ReplyClose(id uint32) error
}

// Listener accepts connections on the control socket and serializes
// their commands onto the handler.
type Listener struct {
	path    string
	handler Handler
	logger  *slog.Logger

	ln    net.Listener
	msgCh chan string
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	running bool
}

// NewListener creates a Listener for the given socket path.
func NewListener(path string, handler Handler, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		path:    path,
		handler: handler,
		logger:  logger,
		msgCh:   make(chan string, commandBacklog),
		done:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start unlinks any stale socket, binds a fresh one and brings up the
// accept loop and the dispatcher. A bind failure is fatal to the
// daemon. The socket is not unlinked on shutdown; the daemon is
// expected to run until session end.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return fmt.Errorf("listener already running")
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket %s: %w", l.path, err)
	}

	ln, err := net.Listen("unix", l.path)
	if err != nil {
		return fmt.Errorf("failed to bind control socket %s: %w", l.path, err)
	}
	l.ln = ln
	l.running = true

	l.wg.Add(2)
	go l.acceptLoop(ctx)
	go l.dispatchLoop(ctx)

	l.logger.Info("control socket listening", "path", l.path)
	return nil
}

// Stop closes the listening socket and every open connection, then
// waits for the loops to drain.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.done)
	ln := l.ln
	conns := make([]net.Conn, 0, len(l.conns))
	for conn := range l.conns {
		conns = append(conns, conn)
	}
	l.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
	l.wg.Wait()
}

func (l *Listener) acceptLoop(ctx context.Context) {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			l.logger.Warn("failed to accept connection", "error", err)
			continue
		}
		l.wg.Add(1)
		go l.serveConn(ctx, conn)
	}
}

// serveConn reads newline-delimited frames off one connection. The
// reader dies with its socket.
func (l *Listener) serveConn(ctx context.Context, conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	l.mu.Lock()
	l.conns[conn] = struct{}{}
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.conns, conn)
		l.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case l.msgCh <- line:
		case <-ctx.Done():
			return
		case <-l.done:
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		l.logger.Debug("connection read ended", "error", err)
	}
}

// dispatchLoop is the single consumer: it gives total order over all
// IPC commands without locking across dispatch.
func (l *Listener) dispatchLoop(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case line := <-l.msgCh:
			l.dispatch(line)
		}
	}
}

// dispatch parses and applies one frame. An unparseable frame is
// logged and dropped; the dispatcher continues.
func (l *Listener) dispatch(line string) {
	var msg Message
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		l.logger.Warn("dropping malformed control frame", "frame", line, "error", err)
		return
	}

	var err error
	switch msg.Kind {
	case KindCloseNotification:
		err = l.handler.CloseNotification(msg.ID)
	case KindOpenHistory:
		err = l.handler.OpenHistory()
	case KindCloseHistory:
		err = l.handler.CloseHistory()
	case KindToggleHistory:
		err = l.handler.ToggleHistory()
	case KindActionInvoked:
		err = l.handler.ActionInvoked(msg.ID, msg.Text)
	case KindReplySend:
		err = l.handler.ReplySend(msg.ID, msg.Text)
	case KindReplyClose:
		err = l.handler.ReplyClose(msg.ID)
	}
	if err != nil {
		l.logger.Warn("control command failed", "kind", msg.Kind, "id", msg.ID, "error", err)
	}
}
