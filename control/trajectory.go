package control

import (
	"fmt"
	"sync"

	"github.com/elite-robotics/ec-driver/logging"
)

// DefaultTrajectoryPort is the Trajectory Interface's default port.
const DefaultTrajectoryPort = 50003

// TrajectoryResultFunc is invoked once per inbound result frame. It must
// not block or call back into the driver's mutating operations; it runs on
// the interface's own read goroutine.
type TrajectoryResultFunc func(TrajectoryResult)

// TrajectoryInterface streams buffered motion points to the robot and
// reports the asynchronous outcome of each run. The caller is expected to
// emit TRAJECTORY_START(n) on the Reverse Interface first, then n points
// here, then pump TRAJECTORY_NOOP on Reverse until a result arrives; the
// driver surfaces but does not enforce that ordering.
type TrajectoryInterface struct {
	server *Server
	logger logging.Logger

	writeMu sync.Mutex

	cbMu     sync.Mutex
	resultCB TrajectoryResultFunc
}

// NewTrajectoryInterface constructs and starts listening on port.
func NewTrajectoryInterface(port int, reactor *Reactor, logger logging.Logger) (*TrajectoryInterface, error) {
	logger = logger.Named("trajectory")
	srv := NewServer("trajectory", port, TrajectoryResultBytes, reactor, logger)
	t := &TrajectoryInterface{server: srv, logger: logger}
	srv.SetReceiveCallback(t.onFrame)
	if err := srv.StartListen(); err != nil {
		return nil, fmt.Errorf("control: trajectory interface listen: %w", err)
	}
	return t, nil
}

// Close releases the listener and any connected peer.
func (t *TrajectoryInterface) Close() error {
	return t.server.Close()
}

func (t *TrajectoryInterface) onFrame(buf []byte) {
	result, err := decodeTrajectoryResult(buf)
	if err != nil {
		t.logger.Warnw("malformed trajectory result frame", "error", err)
		return
	}
	t.cbMu.Lock()
	cb := t.resultCB
	t.cbMu.Unlock()
	if cb != nil {
		cb(result)
	}
}

// SetTrajectoryResultCallback installs the result callback. It may only be
// installed once; a second call returns an error.
func (t *TrajectoryInterface) SetTrajectoryResultCallback(cb TrajectoryResultFunc) error {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	if t.resultCB != nil {
		return fmt.Errorf("control: trajectory result callback already installed")
	}
	t.resultCB = cb
	return nil
}

// WriteTrajectoryPoint scales and sends one trajectory point.
func (t *TrajectoryInterface) WriteTrajectoryPoint(target [6]float64, timeS, blendRadiusM float64, cartesian bool) error {
	motion := MotionJoint
	if cartesian {
		motion = MotionCartesian
	}
	buf := trajectoryPointFrame(target, timeS, blendRadiusM, motion)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if n := t.server.WriteClient(buf); n <= 0 {
		return fmt.Errorf("control: trajectory interface write failed (no peer or short write)")
	}
	return nil
}
