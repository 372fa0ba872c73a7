package control

import (
	"fmt"
	"sync"

	"github.com/elite-robotics/ec-driver/logging"
)

// DefaultReversePort is the Reverse Interface's default listen port.
const DefaultReversePort = 50001

// servojDefaultLookahead and servojDefaultGain are applied when a caller
// does not specify them explicitly, per spec.
const (
	servojDefaultLookahead = 0.1
	servojDefaultGain      = 300.0
)

// ReverseInterface is the 1 kHz realtime command channel. Every Write*
// call is either fully written or returns an error; writes are serialized
// under the underlying Server's socket mutex so frames are delivered in
// call order.
type ReverseInterface struct {
	server *Server
	mu     sync.Mutex
	logger logging.Logger
}

// NewReverseInterface constructs and starts listening on port.
func NewReverseInterface(port int, reactor *Reactor, logger logging.Logger) (*ReverseInterface, error) {
	logger = logger.Named("reverse")
	srv := NewServer("reverse", port, ReverseFrameBytes, reactor, logger)
	if err := srv.StartListen(); err != nil {
		return nil, fmt.Errorf("control: reverse interface listen: %w", err)
	}
	return &ReverseInterface{server: srv, logger: logger}, nil
}

// IsRobotConnected reports whether the robot's script currently holds the
// Reverse Interface's peer connection.
func (r *ReverseInterface) IsRobotConnected() bool {
	return r.server.IsClientConnected()
}

// Close releases the listener and any connected peer.
func (r *ReverseInterface) Close() error {
	return r.server.Close()
}

func (r *ReverseInterface) write(buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.server.WriteClient(buf); n <= 0 {
		return fmt.Errorf("control: reverse interface write failed (no peer or short write)")
	}
	return nil
}

// WriteServoj emits a SERVOJ frame: target joint position q (radians), with
// an optional lookahead (s) and gain. Pass 0 for either to apply the
// defaults (0.1s, 300).
func (r *ReverseInterface) WriteServoj(q [6]float64, recvTimeoutMS int, lookaheadS, gain float64) error {
	if lookaheadS == 0 {
		lookaheadS = servojDefaultLookahead
	}
	if gain == 0 {
		gain = servojDefaultGain
	}
	aux1 := scaleToInt32(lookaheadS, TimeZoomRatio)
	aux2 := scaleToInt32(gain, TimeZoomRatio)
	return r.write(reverseFrame(q, ModeServoj, recvTimeoutMS, aux1, aux2))
}

// WriteSpeedj emits a SPEEDJ frame: target joint velocity qdot (rad/s).
func (r *ReverseInterface) WriteSpeedj(qdot [6]float64, recvTimeoutMS int) error {
	return r.write(reverseFrame(qdot, ModeSpeedj, recvTimeoutMS, 0, 0))
}

// WriteSpeedl emits a SPEEDL frame: target Cartesian velocity v.
func (r *ReverseInterface) WriteSpeedl(v [6]float64, recvTimeoutMS int) error {
	return r.write(reverseFrame(v, ModeSpeedl, recvTimeoutMS, 0, 0))
}

// WriteServoPose emits a POSE frame: target Cartesian pose p (m, rad).
func (r *ReverseInterface) WriteServoPose(p [6]float64, recvTimeoutMS int) error {
	return r.write(reverseFrame(p, ModePose, recvTimeoutMS, 0, 0))
}

// WriteIdle emits an IDLE keepalive frame. Callers must invoke this (or
// another Write*) at least every recvTimeoutMS while no motion is
// commanded, or the robot will abort and close the peer.
func (r *ReverseInterface) WriteIdle(recvTimeoutMS int) error {
	return r.write(reverseFrame([6]float64{}, ModeIdle, recvTimeoutMS, 0, 0))
}

// WriteStop emits a STOP frame.
func (r *ReverseInterface) WriteStop() error {
	return r.write(reverseFrame([6]float64{}, ModeStop, 0, 0, 0))
}

// WriteFreedrive emits a freedrive control frame for the given action.
func (r *ReverseInterface) WriteFreedrive(action FreedriveAction, recvTimeoutMS int) error {
	mode, err := action.mode()
	if err != nil {
		return err
	}
	return r.write(reverseFrame([6]float64{}, mode, recvTimeoutMS, 0, 0))
}

// WriteTrajectoryControl emits a trajectory-control frame. data carries the
// action's payload: for TrajectoryControlStart it is the number of points
// about to be streamed on the Trajectory Interface; it is ignored for
// Cancel and Noop.
func (r *ReverseInterface) WriteTrajectoryControl(action TrajectoryControlAction, data int32, recvTimeoutMS int) error {
	mode, err := action.mode()
	if err != nil {
		return err
	}
	return r.write(reverseFrame([6]float64{}, mode, recvTimeoutMS, data, 0))
}
