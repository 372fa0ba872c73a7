package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elite-robotics/ec-driver/logging"
	"github.com/elite-robotics/ec-driver/serial"
)

// DefaultScriptCommandPort is the Script Command Interface's default port.
const DefaultScriptCommandPort = 50004

// serialAckTimeout is the default wait for a serial-tunnel start/end
// acknowledgement, per spec (5 s).
const serialAckTimeout = 5 * time.Second

// SerialConfig describes an RS485 tunnel's line parameters.
type SerialConfig struct {
	BaudRate int
	Parity   int
	StopBits int
}

// ScriptCommandInterface is the low-rate request/response channel used for
// payload, tool voltage, force mode, and RS485 tunnel directives. At most
// one correlated command (a serial start/end) may be outstanding at a
// time; callers serialize naturally because they block on the reply.
type ScriptCommandInterface struct {
	server *Server
	logger logging.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   chan SerialResult
}

// NewScriptCommandInterface constructs and starts listening on port.
func NewScriptCommandInterface(port int, reactor *Reactor, logger logging.Logger) (*ScriptCommandInterface, error) {
	logger = logger.Named("scriptcommand")
	srv := NewServer("scriptcommand", port, 4, reactor, logger)
	iface := &ScriptCommandInterface{server: srv, logger: logger}
	srv.SetReceiveCallback(iface.onFrame)
	if err := srv.StartListen(); err != nil {
		return nil, fmt.Errorf("control: script command interface listen: %w", err)
	}
	return iface, nil
}

// Close releases the listener and any connected peer.
func (s *ScriptCommandInterface) Close() error {
	return s.server.Close()
}

func (s *ScriptCommandInterface) onFrame(buf []byte) {
	result, err := decodeSerialResult(buf)
	if err != nil {
		s.logger.Warnw("malformed serial result frame", "error", err)
		return
	}
	s.pendingMu.Lock()
	ch := s.pending
	s.pendingMu.Unlock()
	if ch != nil {
		select {
		case ch <- result:
		default:
		}
	}
}

func (s *ScriptCommandInterface) write(buf []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if n := s.server.WriteClient(buf); n <= 0 {
		return fmt.Errorf("control: script command interface write failed (no peer or short write)")
	}
	return nil
}

func newScriptCommandFrame(cmd ScriptCommand) []byte {
	buf := make([]byte, ScriptCommandFrameBytes)
	putSlot(buf, 0, int32(cmd))
	return buf
}

// ZeroFTSensor zeros the force/torque sensor bias.
func (s *ScriptCommandInterface) ZeroFTSensor() error {
	return s.write(newScriptCommandFrame(CmdZeroFTSensor))
}

// SetPayload sets the end-effector mass (kg) and center of gravity (m).
func (s *ScriptCommandInterface) SetPayload(mass float64, cog [3]float64) error {
	buf := newScriptCommandFrame(CmdSetPayload)
	putSlot(buf, 1, scaleToInt32(mass, CommonZoomRatio))
	for i, v := range cog {
		putSlot(buf, 2+i, scaleToInt32(v, CommonZoomRatio))
	}
	return s.write(buf)
}

// SetToolVoltage sets the tool power-supply voltage.
func (s *ScriptCommandInterface) SetToolVoltage(volts float64) error {
	buf := newScriptCommandFrame(CmdSetToolVoltage)
	putSlot(buf, 1, scaleToInt32(volts, CommonZoomRatio))
	return s.write(buf)
}

// StartForceMode enters force control with the given task frame, selection
// vector (0/1 per axis), target wrench, mode, and per-axis limits.
func (s *ScriptCommandInterface) StartForceMode(taskFrame [6]float64, selection [6]int32, wrench [6]float64, mode ForceMode, limits [6]float64) error {
	buf := newScriptCommandFrame(CmdStartForceMode)
	slot := 1
	for _, v := range taskFrame {
		putSlot(buf, slot, scaleToInt32(v, CommonZoomRatio))
		slot++
	}
	for _, v := range selection {
		putSlot(buf, slot, v)
		slot++
	}
	for _, v := range wrench {
		putSlot(buf, slot, scaleToInt32(v, CommonZoomRatio))
		slot++
	}
	putSlot(buf, slot, int32(mode))
	slot++
	for _, v := range limits {
		putSlot(buf, slot, scaleToInt32(v, CommonZoomRatio))
		slot++
	}
	return s.write(buf)
}

// EndForceMode exits force control.
func (s *ScriptCommandInterface) EndForceMode() error {
	return s.write(newScriptCommandFrame(CmdEndForceMode))
}

// waitForSerialResult installs a one-shot correlator, sends buf, and blocks
// (bounded by ctx, defaulting to serialAckTimeout) for the expected result.
func (s *ScriptCommandInterface) waitForSerialResult(ctx context.Context, buf []byte, expect SerialResult) error {
	ch := make(chan SerialResult, 1)
	s.pendingMu.Lock()
	s.pending = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		s.pending = nil
		s.pendingMu.Unlock()
	}()

	if err := s.write(buf); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, serialAckTimeout)
	defer cancel()

	select {
	case result := <-ch:
		if result != expect {
			return fmt.Errorf("control: serial command failed, robot reported result %d", result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("control: serial command timed out waiting for result")
	}
}

// StartToolRS485 requests the robot bridge the tool's RS485 bus onto
// tcpPort, blocks (up to 5s) for the robot's start acknowledgement, and
// on success dials the resulting bridge, returning a live Tunnel bound
// to robotIP:tcpPort.
func (s *ScriptCommandInterface) StartToolRS485(ctx context.Context, robotIP string, cfg SerialConfig, tcpPort int) (*serial.Tunnel, error) {
	buf := newScriptCommandFrame(CmdStartToolRS485)
	putSlot(buf, 1, int32(cfg.BaudRate))
	putSlot(buf, 2, int32(cfg.Parity))
	putSlot(buf, 3, int32(cfg.StopBits))
	putSlot(buf, 4, int32(tcpPort))
	if err := s.waitForSerialResult(ctx, buf, SerialResultStart); err != nil {
		return nil, err
	}
	return serial.Dial(robotIP, tcpPort, s.logger)
}

// EndToolRS485 tears down the tool RS485 bridge.
func (s *ScriptCommandInterface) EndToolRS485(ctx context.Context) error {
	return s.waitForSerialResult(ctx, newScriptCommandFrame(CmdEndToolRS485), SerialResultEnd)
}

// StartBoardRS485 requests the robot bridge the controller-board RS485 bus
// onto tcpPort, blocks (up to 5s) for the robot's start acknowledgement,
// and on success dials the resulting bridge, returning a live Tunnel
// bound to robotIP:tcpPort.
func (s *ScriptCommandInterface) StartBoardRS485(ctx context.Context, robotIP string, cfg SerialConfig, tcpPort int) (*serial.Tunnel, error) {
	buf := newScriptCommandFrame(CmdStartBoardRS485)
	putSlot(buf, 1, int32(cfg.BaudRate))
	putSlot(buf, 2, int32(cfg.Parity))
	putSlot(buf, 3, int32(cfg.StopBits))
	putSlot(buf, 4, int32(tcpPort))
	if err := s.waitForSerialResult(ctx, buf, SerialResultStart); err != nil {
		return nil, err
	}
	return serial.Dial(robotIP, tcpPort, s.logger)
}

// EndBoardRS485 tears down the controller-board RS485 bridge.
func (s *ScriptCommandInterface) EndBoardRS485(ctx context.Context) error {
	return s.waitForSerialResult(ctx, newScriptCommandFrame(CmdEndBoardRS485), SerialResultEnd)
}
