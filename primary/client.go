package primary

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.viam.com/utils"

	"github.com/elite-robotics/ec-driver/logging"
)

// DefaultPort is the robot's primary interface port. Port 30002 (the
// secondary interface, a faster-updating subset of the same stream) is
// also accepted by Connect.
const DefaultPort = 30001

const reconnectDelay = 500 * time.Millisecond

// Client is the Primary Port Client: it dials the robot's broadcast
// port, demultiplexes ROBOT_STATE sub-packages to one-shot Package
// registrations, decodes ROBOT_EXCEPTION events to a callback, and
// reconnects on its own whenever the stream breaks.
type Client struct {
	logger logging.Logger
	wg     sync.WaitGroup

	mu      sync.Mutex
	conn    net.Conn
	closing bool
	started bool

	pendingMu sync.Mutex
	pending   map[byte]Package

	excMu sync.Mutex
	excCB RobotExceptionFunc
}

// NewClient constructs an unconnected Primary Port Client.
func NewClient(logger logging.Logger) *Client {
	return &Client{
		logger:  logger.Named("primary"),
		pending: make(map[byte]Package),
	}
}

// Connect dials host:port and starts the background read loop. It
// reports whether the initial dial succeeded; reconnection after a
// later failure happens silently on the same goroutine.
func (c *Client) Connect(host string, port int) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		c.logger.Warnw("primary connect failed", "addr", addr, "error", err)
		return false
	}

	c.mu.Lock()
	c.conn = conn
	c.closing = false
	alreadyStarted := c.started
	c.started = true
	c.mu.Unlock()

	if !alreadyStarted {
		c.wg.Add(1)
		utils.PanicCapturingGo(func() {
			defer c.wg.Done()
			c.readLoop(host, port)
		})
	}
	return true
}

// Disconnect stops the background read loop and closes the socket. It
// blocks until the read goroutine has exited.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
}

// IsConnected reports whether a live socket is currently held.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendScript writes a UR-script program to the robot over the primary
// socket, terminated by a newline, the same channel the controller box
// itself uses to push a program for immediate execution.
func (c *Client) SendScript(text string) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}
	if _, err := conn.Write([]byte(text + "\n")); err != nil {
		c.logger.Warnw("send script failed", "error", err)
		return false
	}
	return true
}

// GetLocalIP returns the local address of the current connection's
// outbound interface, or "" if not connected.
func (c *Client) GetLocalIP() string {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return ""
	}
	return host
}

// RegisterRobotExceptionCallback installs the callback invoked once per
// decoded ROBOT_EXCEPTION event. It replaces any previously installed
// callback.
func (c *Client) RegisterRobotExceptionCallback(fn RobotExceptionFunc) {
	c.excMu.Lock()
	defer c.excMu.Unlock()
	c.excCB = fn
}

// GetPackage registers pkg for its sub-type and blocks until the next
// matching ROBOT_STATE sub-package fills it, or timeout elapses. It
// reports whether the package was filled.
func (c *Client) GetPackage(pkg Package, timeout time.Duration) bool {
	c.pendingMu.Lock()
	c.pending[pkg.SubType()] = pkg
	c.pendingMu.Unlock()

	ok := pkg.Wait(timeout)

	c.pendingMu.Lock()
	if c.pending[pkg.SubType()] == pkg {
		delete(c.pending, pkg.SubType())
	}
	c.pendingMu.Unlock()
	return ok
}

// readLoop owns the socket for its lifetime: it parses frame headers,
// reads bodies, dispatches ROBOT_STATE sub-packages and ROBOT_EXCEPTION
// events, and reconnects after any framing or I/O error until
// Disconnect is called.
func (c *Client) readLoop(host string, port int) {
	var reader *bufio.Reader
	var curConn net.Conn

	for {
		c.mu.Lock()
		closing := c.closing
		conn := c.conn
		c.mu.Unlock()
		if closing {
			return
		}
		if conn == nil {
			reader, curConn = nil, nil
			if !c.reconnect(host, port) {
				return
			}
			continue
		}
		if conn != curConn {
			// A fresh net.Conn may already have bytes sitting in the
			// kernel socket buffer (or, after a reconnect, none); either
			// way a new bufio.Reader must be built for it -- reusing one
			// across calls is what lets a reader's own internal buffer
			// carry unread bytes from one pumpOnce call to the next,
			// since the primary port broadcasts continuously and often
			// delivers multiple frames in a single TCP read.
			reader = bufio.NewReaderSize(conn, 4096)
			curConn = conn
		}

		if err := c.pumpOnce(conn, reader); err != nil {
			c.logger.Warnw("primary stream error", "error", err)
			_ = conn.Close()
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closing = c.closing
			c.mu.Unlock()
			reader, curConn = nil, nil
			if closing {
				return
			}
			if !c.reconnect(host, port) {
				return
			}
		}
	}
}

func (c *Client) reconnect(host string, port int) bool {
	time.Sleep(reconnectDelay)
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing {
		return false
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return true
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return true
}

// pumpOnce reads and dispatches exactly one frame from conn, using r (the
// connection's own, connection-lifetime bufio.Reader -- see readLoop) so
// bytes of a second frame already pulled off the wire by a prior read are
// never discarded.
func (c *Client) pumpOnce(conn net.Conn, r *bufio.Reader) error {
	hdrBuf := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return err
	}
	hdr, err := parseHeader(hdrBuf)
	if err != nil {
		return err
	}

	bodyLen := hdr.length - HeaderLength
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}

	switch hdr.typ {
	case MsgTypeRobotState:
		c.dispatchRobotState(body)
	case MsgTypeRobotException:
		c.dispatchRobotException(body)
	default:
		// Unrecognized top-level message type: ignored, not an error --
		// the stream carries other message types no registered Package
		// or callback cares about.
	}
	return nil
}

func (c *Client) dispatchRobotState(body []byte) {
	subs, err := subPackages(body)
	if err != nil {
		c.logger.Warnw("malformed robot state body", "error", err)
		return
	}
	for _, sub := range subs {
		c.pendingMu.Lock()
		pkg, ok := c.pending[sub.subType]
		c.pendingMu.Unlock()
		if !ok {
			continue
		}
		if err := pkg.parse(sub.data); err != nil {
			c.logger.Warnw("sub-package parse failed", "subType", sub.subType, "error", err)
			continue
		}
		c.pendingMu.Lock()
		if c.pending[sub.subType] == pkg {
			delete(c.pending, sub.subType)
		}
		c.pendingMu.Unlock()
		pkg.signal()
	}
}

func (c *Client) dispatchRobotException(body []byte) {
	exc, err := decodeRobotException(body)
	if err != nil {
		c.logger.Warnw("malformed robot exception, delivering best-effort event", "error", err)
	}
	c.excMu.Lock()
	cb := c.excCB
	c.excMu.Unlock()
	if cb != nil {
		cb(exc)
	}
}
