// Package serial provides the RS485 tunnel collaborator: the small TCP
// client bound to the robot's serial-over-TCP bridge once a tool or
// controller-board RS485 tunnel has been started via the Script Command
// Interface.
package serial

import (
	"fmt"
	"net"
	"sync"

	"github.com/elite-robotics/ec-driver/logging"
)

// Tunnel is a live RS485-over-TCP connection to the robot, returned by
// the driver façade once the robot has acknowledged a tunnel start
// request. Reads and writes pass raw serial bytes through; framing is
// the caller's concern, the same as talking to a real serial port.
type Tunnel struct {
	logger logging.Logger

	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the robot's bridged serial port at host:port. Callers
// should only do this after the corresponding
// ScriptCommandInterface.StartToolRS485/StartBoardRS485 call has
// returned successfully -- the bridge socket does not exist on the robot
// side until then.
func Dial(host string, port int, logger logging.Logger) (*Tunnel, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("serial: dial tunnel %s: %w", addr, err)
	}
	return &Tunnel{logger: logger.Named("serial"), conn: conn}, nil
}

// Write sends raw bytes over the tunnel.
func (t *Tunnel) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return 0, fmt.Errorf("serial: tunnel closed")
	}
	return t.conn.Write(p)
}

// Read receives raw bytes from the tunnel.
func (t *Tunnel) Read(p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("serial: tunnel closed")
	}
	return conn.Read(p)
}

// Close tears down the tunnel connection. It does not send the
// corresponding EndToolRS485/EndBoardRS485 script command -- callers
// must do that themselves to release the robot-side bridge.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
