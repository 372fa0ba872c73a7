package control

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"go.viam.com/utils"

	"github.com/elite-robotics/ec-driver/logging"
)

// Reactor is the Go stand-in for the original driver's process-global
// Boost.Asio io_context: a single shared handle that every Server borrows
// for the lifetime of its background goroutines. Unlike the original there
// is no single OS thread running an event loop -- each Server drives its
// own accept/read goroutines -- but the externally observable contract is
// the same one named in the design notes: Start/Stop are idempotent and
// reference-counted, and Stop does not return until every borrowed
// goroutine has exited.
type Reactor struct {
	logger logging.Logger

	mu       sync.Mutex
	refCount int
	wg       sync.WaitGroup
}

// NewReactor constructs a Reactor. Construction does not start anything;
// call Start to begin accepting registrations.
func NewReactor(logger logging.Logger) *Reactor {
	return &Reactor{logger: logger}
}

// Start increments the reactor's reference count. The first caller to Start
// a previously-idle reactor makes it live; callers after that just bump the
// count.
func (r *Reactor) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refCount++
}

// Stop decrements the reference count. When it reaches zero, Stop blocks
// until every goroutine spawned via spawn has returned. Calling Stop more
// times than Start is a no-op.
func (r *Reactor) Stop() {
	r.mu.Lock()
	if r.refCount == 0 {
		r.mu.Unlock()
		return
	}
	r.refCount--
	last := r.refCount == 0
	r.mu.Unlock()
	if last {
		r.wg.Wait()
	}
}

// spawn runs fn on its own goroutine, tracked by the reactor's WaitGroup so
// Stop can block on quiescence, and wrapped so a panic in fn is recovered
// and logged instead of taking down the host process -- the same
// panic-capturing discipline the teacher's own background workers use.
func (r *Reactor) spawn(fn func()) {
	r.wg.Add(1)
	utils.PanicCapturingGo(func() {
		defer r.wg.Done()
		fn()
	})
}

// Server hosts a single accepted peer on one TCP port. At most one net.Conn
// is ever live at a time: a successful Accept while a peer already exists
// closes the prior connection first (the "accept discipline" that lets the
// robot re-bind after its control script restarts).
type Server struct {
	name      string
	port      int
	recvBytes int // fixed read size; 0 means "read a line, not a frame"
	reactor   *Reactor
	logger    logging.Logger

	listenerMu sync.Mutex
	listener   net.Listener

	connMu sync.Mutex
	conn   net.Conn

	cbMu     sync.Mutex
	onRecv   func([]byte)
	onLine   func(string)
	closed   chan struct{}
	closeSet bool
}

// NewServer constructs a Server bound to port, using reactor's shared
// goroutine bookkeeping. recvBufSize is the fixed frame size delivered to
// the receive callback; pass 0 to use line-until-'\n' framing instead (the
// discipline the Script Sender needs).
func NewServer(name string, port, recvBufSize int, reactor *Reactor, logger logging.Logger) *Server {
	return &Server{
		name:      name,
		port:      port,
		recvBytes: recvBufSize,
		reactor:   reactor,
		logger:    logger.Named(name),
		closed:    make(chan struct{}),
	}
}

// SetReceiveCallback installs the fixed-frame receive callback. It must be
// called before StartListen for a server configured with recvBufSize > 0.
func (s *Server) SetReceiveCallback(cb func([]byte)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onRecv = cb
}

// UnsetReceiveCallback removes a previously installed fixed-frame callback.
func (s *Server) UnsetReceiveCallback() {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onRecv = nil
}

// SetLineCallback installs the line-until-newline receive callback used by
// the Script Sender's read discipline.
func (s *Server) SetLineCallback(cb func(string)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onLine = cb
}

// StartListen begins accepting connections on the configured port. It is
// safe to call only once per Server.
func (s *Server) StartListen() error {
	ln, err := net.Listen("tcp", portAddr(s.port))
	if err != nil {
		return err
	}
	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()

	s.reactor.spawn(s.acceptLoop)
	return nil
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
				s.logger.Warnw("accept failed", "error", err)
				return
			}
		}
		s.adoptConn(conn)
	}
}

// adoptConn installs conn as the current peer, first closing and
// shutting down any prior peer. This is the sole mechanism by which the
// robot re-binds after its script restarts.
func (s *Server) adoptConn(conn net.Conn) {
	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.connMu.Unlock()

	s.reactor.spawn(func() { s.readLoop(conn) })
}

func (s *Server) readLoop(conn net.Conn) {
	if s.recvBytes > 0 {
		s.fixedReadLoop(conn)
	} else {
		s.lineReadLoop(conn)
	}
}

// fixedReadLoop performs the "fixed reads" read discipline: the receive
// callback is invoked with exactly recvBytes bytes per invocation. Partial
// reads are never delivered; any read error closes the peer without
// invoking the callback, and no auto-reconnect is attempted here -- the
// interface that owns this Server re-accepts on its own.
func (s *Server) fixedReadLoop(conn net.Conn) {
	buf := make([]byte, s.recvBytes)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			s.closePeer(conn)
			return
		}
		s.cbMu.Lock()
		cb := s.onRecv
		s.cbMu.Unlock()
		if cb != nil {
			frame := make([]byte, len(buf))
			copy(frame, buf)
			cb(frame)
		}
	}
}

// lineReadLoop implements the Script Sender's request/response discipline:
// read one line, hand it to the callback, and keep reading until the peer
// disconnects.
func (s *Server) lineReadLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			s.closePeer(conn)
			return
		}
		s.cbMu.Lock()
		cb := s.onLine
		s.cbMu.Unlock()
		if cb != nil {
			cb(strings.TrimRight(line, "\r\n"))
		}
	}
}

func (s *Server) closePeer(conn net.Conn) {
	s.connMu.Lock()
	if s.conn == conn {
		_ = conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

// WriteClient writes data to the current peer under the server's socket
// mutex, serializing writes in call order. It returns the number of bytes
// written, or -1 if there is no peer.
func (s *Server) WriteClient(data []byte) int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return -1
	}
	n, err := s.conn.Write(data)
	if err != nil {
		return -1
	}
	return n
}

// IsClientConnected reports whether a peer is currently adopted.
func (s *Server) IsClientConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

// ReleaseClient closes the current peer, if any.
func (s *Server) ReleaseClient() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close stops accepting and closes the listener and any current peer. Close
// is idempotent.
func (s *Server) Close() error {
	s.cbMu.Lock()
	if !s.closeSet {
		close(s.closed)
		s.closeSet = true
	}
	s.cbMu.Unlock()

	s.listenerMu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.listenerMu.Unlock()

	s.ReleaseClient()
	return err
}
