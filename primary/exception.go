package primary

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// ExceptionSource identifies which robot subsystem raised a ROBOT_EXCEPTION
// event.
type ExceptionSource byte

const (
	ExceptionSourceSystem     ExceptionSource = 0
	ExceptionSourceSafety     ExceptionSource = 50
	ExceptionSourceGUI        ExceptionSource = 60
	ExceptionSourceController ExceptionSource = 100
	ExceptionSourceTool       ExceptionSource = 110
	ExceptionSourceJoint      ExceptionSource = 120
)

func (s ExceptionSource) String() string {
	switch s {
	case ExceptionSourceSystem:
		return "SYSTEM"
	case ExceptionSourceSafety:
		return "SAFETY"
	case ExceptionSourceGUI:
		return "GUI"
	case ExceptionSourceController:
		return "CONTROLLER"
	case ExceptionSourceTool:
		return "TOOL"
	case ExceptionSourceJoint:
		return "JOINT"
	default:
		return fmt.Sprintf("ExceptionSource(%d)", byte(s))
	}
}

// ExceptionKind discriminates the two ROBOT_EXCEPTION record shapes.
type ExceptionKind byte

const (
	ExceptionKindError ExceptionKind = iota
	ExceptionKindRuntime
)

func (k ExceptionKind) String() string {
	if k == ExceptionKindRuntime {
		return "RUNTIME"
	}
	return "ERROR"
}

// RobotErrorDataType selects how a RobotError's trailing payload bytes are
// interpreted.
type RobotErrorDataType byte

const (
	ErrorDataNone RobotErrorDataType = iota
	ErrorDataUnsigned
	ErrorDataSigned
	ErrorDataFloat
	ErrorDataString
)

// RobotErrorData is the typed payload of a RobotError record: code,
// sub-code, severity level, and a tagged value whose active field is
// selected by DataType. Surfacing the typed union (rather than a raw byte
// slice) means the exception callback's caller never has to re-derive the
// type from DataType by hand.
type RobotErrorData struct {
	Code       int32
	SubCode    int32
	Level      byte
	DataType   RobotErrorDataType
	Unsigned   uint32
	Signed     int32
	Float      float32
	StringData string
}

// RobotRuntimeException is a script runtime error: a source line/column
// and a human-readable message.
type RobotRuntimeException struct {
	Line    int32
	Column  int32
	Message string
}

// RobotException is one decoded ROBOT_EXCEPTION event. Exactly one of
// Error / Runtime is populated, selected by Kind, unless the typed record
// itself failed to decode, in which case both are nil and RawBody carries
// whatever bytes were available.
type RobotException struct {
	Timestamp time.Time
	Source    ExceptionSource
	Kind      ExceptionKind
	Error     *RobotErrorData
	Runtime   *RobotRuntimeException

	// RawBody holds the undecoded record bytes when Error/Runtime decoding
	// failed -- set only in that case, so a caller can tell a malformed
	// event from a well-formed ErrorDataNone/empty-message one.
	RawBody []byte
}

// RobotExceptionFunc is invoked once per ROBOT_EXCEPTION body received,
// regardless of body contents, on the Primary Port Client's read
// goroutine. It must not block.
type RobotExceptionFunc func(RobotException)

// decodeRobotException parses a ROBOT_EXCEPTION body: an 8-byte
// millisecond timestamp, a 1-byte source, a 1-byte kind discriminator, and
// either a RobotError or RobotRuntimeException record. It always returns a
// usable RobotException, even when decoding fails partway through -- the
// caller (Client.dispatchRobotException) must deliver exactly one callback
// per correctly-framed body regardless of whether its contents parse.
func decodeRobotException(body []byte) (RobotException, error) {
	const minLen = 8 + 1 + 1
	if len(body) < minLen {
		return RobotException{RawBody: body}, fmt.Errorf("primary: robot exception body too short: %d < %d", len(body), minLen)
	}
	ms := binary.BigEndian.Uint64(body[0:8])
	source := ExceptionSource(body[8])
	kind := ExceptionKind(body[9])
	rest := body[10:]

	exc := RobotException{
		Timestamp: time.UnixMilli(int64(ms)),
		Source:    source,
		Kind:      kind,
	}

	switch kind {
	case ExceptionKindRuntime:
		rt, err := decodeRuntimeException(rest)
		if err != nil {
			exc.RawBody = rest
			return exc, err
		}
		exc.Runtime = &rt
	default:
		errData, err := decodeRobotError(rest)
		if err != nil {
			exc.RawBody = rest
			return exc, err
		}
		exc.Error = &errData
	}
	return exc, nil
}

func decodeRuntimeException(data []byte) (RobotRuntimeException, error) {
	if len(data) < 8 {
		return RobotRuntimeException{}, fmt.Errorf("primary: runtime exception record too short: %d < 8", len(data))
	}
	line := int32(binary.BigEndian.Uint32(data[0:4]))
	col := int32(binary.BigEndian.Uint32(data[4:8]))
	msg := string(data[8:])
	return RobotRuntimeException{Line: line, Column: col, Message: msg}, nil
}

func decodeRobotError(data []byte) (RobotErrorData, error) {
	if len(data) < 10 {
		return RobotErrorData{}, fmt.Errorf("primary: robot error record too short: %d < 10", len(data))
	}
	code := int32(binary.BigEndian.Uint32(data[0:4]))
	subCode := int32(binary.BigEndian.Uint32(data[4:8]))
	level := data[8]
	dataType := RobotErrorDataType(data[9])
	payload := data[10:]

	errData := RobotErrorData{Code: code, SubCode: subCode, Level: level, DataType: dataType}
	switch dataType {
	case ErrorDataNone:
	case ErrorDataUnsigned:
		if len(payload) < 4 {
			return RobotErrorData{}, fmt.Errorf("primary: unsigned error payload too short")
		}
		errData.Unsigned = binary.BigEndian.Uint32(payload[0:4])
	case ErrorDataSigned:
		if len(payload) < 4 {
			return RobotErrorData{}, fmt.Errorf("primary: signed error payload too short")
		}
		errData.Signed = int32(binary.BigEndian.Uint32(payload[0:4]))
	case ErrorDataFloat:
		if len(payload) < 4 {
			return RobotErrorData{}, fmt.Errorf("primary: float error payload too short")
		}
		errData.Float = math.Float32frombits(binary.BigEndian.Uint32(payload[0:4]))
	case ErrorDataString:
		errData.StringData = string(payload)
	default:
		return RobotErrorData{}, fmt.Errorf("primary: unknown robot error data type %d", dataType)
	}
	return errData, nil
}
