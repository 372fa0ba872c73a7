// Package control implements the host-side TCP endpoints of the external
// control protocol: the Reverse Interface, Script Command Interface,
// Trajectory Interface, Script Sender, and the shared server substrate they
// run on.
package control

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Fixed-point scale factors used to transmit floating point quantities as
// int32 over the wire. Position/pose/velocity values use PosZoomRatio;
// durations use TimeZoomRatio; the script-command channel's generic payload
// fields use CommonZoomRatio.
const (
	PosZoomRatio    = 1_000_000.0
	TimeZoomRatio   = 1_000.0
	CommonZoomRatio = 1_000_000.0
)

// Frame slot counts, in int32 units, for each channel.
const (
	ReverseFrameSlots        = 28
	ScriptCommandFrameSlots  = 26
	TrajectoryFrameSlots     = 21
	TrajectoryResultSlots    = 1
	ReverseFrameBytes        = ReverseFrameSlots * 4
	ScriptCommandFrameBytes  = ScriptCommandFrameSlots * 4
	TrajectoryFrameBytes     = TrajectoryFrameSlots * 4
	TrajectoryResultBytes    = TrajectoryResultSlots * 4
	scriptCommandResultBytes = 4
)

// Reverse frame slot indices that are fixed regardless of control mode.
const (
	reverseSlotAux1        = 6
	reverseSlotAux2        = 7
	reverseSlotMode        = 24
	reverseSlotRecvTimeout = 25
)

// ControlMode is the Reverse Interface's slot-24 mode enum. Numeric values
// are internal to this port; the Script Composer does not substitute them
// into the rendered robot-side script.
type ControlMode int32

const (
	ModeStop ControlMode = iota
	ModeServoj
	ModeSpeedj
	ModeSpeedl
	ModePose
	ModeIdle
	ModeFreedriveStart
	ModeFreedriveEnd
	ModeFreedriveNoop
	ModeTrajectoryStart
	ModeTrajectoryCancel
	ModeTrajectoryNoop
)

func (m ControlMode) String() string {
	switch m {
	case ModeStop:
		return "STOP"
	case ModeServoj:
		return "SERVOJ"
	case ModeSpeedj:
		return "SPEEDJ"
	case ModeSpeedl:
		return "SPEEDL"
	case ModePose:
		return "POSE"
	case ModeIdle:
		return "IDLE"
	case ModeFreedriveStart:
		return "FREEDRIVE_START"
	case ModeFreedriveEnd:
		return "FREEDRIVE_END"
	case ModeFreedriveNoop:
		return "FREEDRIVE_NOOP"
	case ModeTrajectoryStart:
		return "TRAJECTORY_START"
	case ModeTrajectoryCancel:
		return "TRAJECTORY_CANCEL"
	case ModeTrajectoryNoop:
		return "TRAJECTORY_NOOP"
	default:
		return fmt.Sprintf("ControlMode(%d)", int32(m))
	}
}

// FreedriveAction selects which of the three freedrive frames to emit.
type FreedriveAction int

const (
	FreedriveStart FreedriveAction = iota
	FreedriveEnd
	FreedriveNoop
)

func (a FreedriveAction) mode() (ControlMode, error) {
	switch a {
	case FreedriveStart:
		return ModeFreedriveStart, nil
	case FreedriveEnd:
		return ModeFreedriveEnd, nil
	case FreedriveNoop:
		return ModeFreedriveNoop, nil
	default:
		return 0, fmt.Errorf("control: invalid freedrive action %d", a)
	}
}

// TrajectoryControlAction selects which trajectory-control frame to emit on
// the Reverse Interface; Data carries the action's payload (e.g. the point
// count for Start).
type TrajectoryControlAction int

const (
	TrajectoryControlStart TrajectoryControlAction = iota
	TrajectoryControlCancel
	TrajectoryControlNoop
)

func (a TrajectoryControlAction) mode() (ControlMode, error) {
	switch a {
	case TrajectoryControlStart:
		return ModeTrajectoryStart, nil
	case TrajectoryControlCancel:
		return ModeTrajectoryCancel, nil
	case TrajectoryControlNoop:
		return ModeTrajectoryNoop, nil
	default:
		return 0, fmt.Errorf("control: invalid trajectory control action %d", a)
	}
}

// ScriptCommand is the Script Command Interface's slot-0 command enum.
type ScriptCommand int32

const (
	CmdZeroFTSensor ScriptCommand = iota
	CmdSetPayload
	CmdSetToolVoltage
	CmdStartForceMode
	CmdEndForceMode
	CmdStartToolRS485
	CmdEndToolRS485
	CmdStartBoardRS485
	CmdEndBoardRS485
)

// SerialResult is the 4-byte value the robot echoes back on the Script
// Command channel after a serial-tunnel start/end command.
type SerialResult int32

const (
	SerialResultFail SerialResult = iota
	SerialResultStart
	SerialResultEnd
)

// TrajectoryMotionType selects interpretation of a trajectory point's
// target: joint angles or a Cartesian pose.
type TrajectoryMotionType int32

const (
	MotionJoint TrajectoryMotionType = iota
	MotionCartesian
)

// TrajectoryResult is the 1-int32 outcome the robot reports for a buffered
// trajectory run.
type TrajectoryResult int32

const (
	TrajectorySuccess TrajectoryResult = iota
	TrajectoryCancel
	TrajectoryFail
)

func (r TrajectoryResult) String() string {
	switch r {
	case TrajectorySuccess:
		return "SUCCESS"
	case TrajectoryCancel:
		return "CANCEL"
	case TrajectoryFail:
		return "FAIL"
	default:
		return fmt.Sprintf("TrajectoryResult(%d)", int32(r))
	}
}

// ForceMode selects the task-frame constraint style for start_force_mode.
type ForceMode int32

const (
	ForceModeSimple ForceMode = iota
	ForceModeFrame
	ForceModePoint
	ForceModeMotion
)

// scaleToInt32 rounds x*scale to the nearest int32, matching the original
// driver's round-half-away-from-zero encoding rather than truncation.
func scaleToInt32(x, scale float64) int32 {
	return int32(math.Round(x * scale))
}

func unscaleInt32(v int32, scale float64) float64 {
	return float64(v) / scale
}

func putSlot(buf []byte, slot int, v int32) {
	binary.BigEndian.PutUint32(buf[slot*4:slot*4+4], uint32(v))
}

func getSlot(buf []byte, slot int) int32 {
	return int32(binary.BigEndian.Uint32(buf[slot*4 : slot*4+4]))
}

// reverseFrame encodes a 28-slot Reverse Interface frame. target holds
// slots 0-5 (already in physical units, scaled here by PosZoomRatio); aux1
// and aux2 fill the two mode-reserved slots (e.g. servoj lookahead/gain, or
// a trajectory-control point count) and are left zero when unused.
func reverseFrame(target [6]float64, mode ControlMode, recvTimeoutMS int, aux1, aux2 int32) []byte {
	buf := make([]byte, ReverseFrameBytes)
	for i, v := range target {
		putSlot(buf, i, scaleToInt32(v, PosZoomRatio))
	}
	putSlot(buf, reverseSlotAux1, aux1)
	putSlot(buf, reverseSlotAux2, aux2)
	putSlot(buf, reverseSlotMode, int32(mode))
	putSlot(buf, reverseSlotRecvTimeout, int32(recvTimeoutMS))
	return buf
}

// trajectoryPointFrame encodes a 21-slot Trajectory Interface point frame.
func trajectoryPointFrame(target [6]float64, timeS, blendRadiusM float64, motion TrajectoryMotionType) []byte {
	buf := make([]byte, TrajectoryFrameBytes)
	for i, v := range target {
		putSlot(buf, i, scaleToInt32(v, PosZoomRatio))
	}
	putSlot(buf, 18, scaleToInt32(timeS, TimeZoomRatio))
	putSlot(buf, 19, scaleToInt32(blendRadiusM, PosZoomRatio))
	putSlot(buf, 20, int32(motion))
	return buf
}

func decodeTrajectoryResult(buf []byte) (TrajectoryResult, error) {
	if len(buf) != TrajectoryResultBytes {
		return 0, fmt.Errorf("control: trajectory result frame has %d bytes, want %d", len(buf), TrajectoryResultBytes)
	}
	return TrajectoryResult(getSlot(buf, 0)), nil
}

func decodeSerialResult(buf []byte) (SerialResult, error) {
	if len(buf) != scriptCommandResultBytes {
		return 0, fmt.Errorf("control: serial result frame has %d bytes, want %d", len(buf), scriptCommandResultBytes)
	}
	return SerialResult(getSlot(buf, 0)), nil
}
