// Package controlchannel serves the local WebSocket that injected page
// scripts use to talk to the host process.
package controlchannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/company/betterteams/internal/addon"
	"github.com/company/betterteams/internal/lifecycle"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 1 << 20
)

// Backend is the addon state the server reads and mutates.
type Backend interface {
	ListInstalled(kind addon.Kind) []addon.Record
	ListAvailable(ctx context.Context, kind addon.Kind) []addon.Record
	Install(ctx context.Context, kind addon.Kind, id string) error
	Uninstall(ctx context.Context, kind addon.Kind, id string) error
	ActivatePlugin(ctx context.Context, id string) error
	DeactivatePlugin(ctx context.Context, id string) error
	SetActiveTheme(ctx context.Context, id string) (addon.Record, error)
	DeactivateTheme(ctx context.Context) error
	ActiveTheme() (addon.Record, bool)
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

func WithClipboard(c Clipboard) Option {
	return func(s *Server) { s.clipboard = c }
}

// WithHTTPClient sets the client used to fetch clipboard images.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) { s.httpClient = hc }
}

// Server accepts WebSocket connections and answers requests on them.
type Server struct {
	addr       string
	backend    Backend
	clipboard  Clipboard
	httpClient *http.Client
	log        *slog.Logger
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conns   map[*conn]struct{}
	nextID  atomic.Uint64
	wg      sync.WaitGroup
	httpSrv *http.Server
	ln      net.Listener
	done    chan error
}

// New creates a server that will listen on addr, e.g. "127.0.0.1:8097".
func New(addr string, backend Backend, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:       addr,
		backend:    backend,
		clipboard:  NewSystemClipboard(),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[*conn]struct{}),
		done:       make(chan error, 1),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Page scripts connect from the chat application's origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and serves in the background. A bind failure is
// returned directly; later failures arrive on Done.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("binding control channel on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.httpSrv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	srv := s.httpSrv
	s.mu.Unlock()

	s.log.Info("control channel listening", "addr", ln.Addr().String())

	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
		close(s.done)
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Done reports the serve loop's exit; nil after a clean Stop.
func (s *Server) Done() <-chan error {
	return s.done
}

// Clients returns the number of open connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop cancels in-flight work, closes the listener and every connection,
// then waits for connection goroutines until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	// Cancel under mu so add cannot register a connection after the
	// snapshot below.
	s.mu.Lock()
	s.cancel()
	srv := s.httpSrv
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	if s.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := &conn{id: s.nextID.Add(1), ws: ws, remote: r.RemoteAddr}
	if !s.add(c) {
		c.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer s.remove(c)

	s.readLoop(c)
}

// add registers c unless Stop has begun.
func (s *Server) add(c *conn) bool {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.conns[c] = struct{}{}
	n := len(s.conns)
	s.mu.Unlock()
	s.log.Info("client connected", "conn", c.id, "remote", c.remote, "clients", n)
	return true
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	n := len(s.conns)
	s.mu.Unlock()
	c.ws.Close()
	if ok {
		s.log.Info("client disconnected", "conn", c.id, "clients", n)
	}
	s.wg.Done()
}

func (s *Server) readLoop(c *conn) {
	c.ws.SetReadLimit(maxMessageSize)
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Debug("read failed", "conn", c.id, "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ctx := withOrigin(s.ctx, c)
		reply := s.handle(ctx, data)
		if err := c.send(reply); err != nil {
			s.log.Debug("reply failed", "conn", c.id, "err", err)
			return
		}
	}
}

// Broadcast sends msg to every connection except skip. Connections whose
// send fails are dropped once the pass is complete.
func (s *Server) Broadcast(msg Message, skip *conn) int {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		if c != skip {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	var dead []*conn
	sent := 0
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			s.log.Debug("broadcast send failed", "conn", c.id, "err", err)
			dead = append(dead, c)
			continue
		}
		sent++
	}

	for _, c := range dead {
		// The read loop notices the closed socket and deregisters.
		c.ws.Close()
	}
	return sent
}

// AddonsChanged broadcasts ev to every client but the one that caused it.
func (s *Server) AddonsChanged(ctx context.Context, ev lifecycle.Event) {
	msg, ok := eventMessage(ev)
	if !ok {
		return
	}
	n := s.Broadcast(msg, originFrom(ctx))
	s.log.Debug("broadcast", "action", msg.Action, "clients", n)
}

type conn struct {
	id      uint64
	ws      *websocket.Conn
	remote  string
	writeMu sync.Mutex
}

func (c *conn) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

func (c *conn) close(code int, reason string) {
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.ws.Close()
}

type originKey struct{}

func withOrigin(ctx context.Context, c *conn) context.Context {
	return context.WithValue(ctx, originKey{}, c)
}

func originFrom(ctx context.Context) *conn {
	c, _ := ctx.Value(originKey{}).(*conn)
	return c
}
