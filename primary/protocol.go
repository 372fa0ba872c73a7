// Package primary implements the Primary Port Client: the framed stream
// parser for the robot's 30001/30002 broadcast, its sub-package
// demultiplexer, and its robot-exception decoder.
package primary

import (
	"encoding/binary"
	"fmt"
)

// HeaderLength is the primary stream's fixed 5-byte frame header: a
// 4-byte big-endian total length (including the header itself) followed
// by a 1-byte message type.
const HeaderLength = 5

// Message types consumed by this client.
const (
	MsgTypeRobotState     = 16
	MsgTypeRobotException = 20
)

// SubHeaderLength is a ROBOT_STATE sub-package's own header: a 4-byte
// big-endian sub-length (including the sub-header) followed by a 1-byte
// sub-type.
const SubHeaderLength = 5

// header is a parsed 5-byte primary stream frame header.
type header struct {
	length int // total frame length, header included
	typ    byte
}

func parseHeader(buf []byte) (header, error) {
	if len(buf) != HeaderLength {
		return header{}, fmt.Errorf("primary: header must be %d bytes, got %d", HeaderLength, len(buf))
	}
	length := int(binary.BigEndian.Uint32(buf[0:4]))
	if length <= HeaderLength {
		return header{}, fmt.Errorf("primary: declared frame length %d is not greater than header length %d", length, HeaderLength)
	}
	return header{length: length, typ: buf[4]}, nil
}

// subPackages splits a ROBOT_STATE body into its (sub_length, sub_type)
// delimited sub-packages, returning each sub-package's type and the bytes
// following its own sub-header (i.e. excluding the 5-byte sub-header).
func subPackages(body []byte) ([]subPackage, error) {
	var out []subPackage
	for off := 0; off < len(body); {
		if off+SubHeaderLength > len(body) {
			return nil, fmt.Errorf("primary: truncated sub-package header at offset %d", off)
		}
		subLen := int(binary.BigEndian.Uint32(body[off : off+4]))
		subType := body[off+4]
		if subLen < SubHeaderLength || off+subLen > len(body) {
			return nil, fmt.Errorf("primary: sub-package length %d invalid at offset %d", subLen, off)
		}
		out = append(out, subPackage{
			subType: subType,
			data:    body[off+SubHeaderLength : off+subLen],
		})
		off += subLen
	}
	return out, nil
}

type subPackage struct {
	subType byte
	data    []byte
}
