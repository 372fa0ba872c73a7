package primary

import (
	"encoding/binary"
	"testing"

	"go.viam.com/test"
)

func TestParseHeader(t *testing.T) {
	buf := make([]byte, HeaderLength)
	binary.BigEndian.PutUint32(buf[0:4], 42)
	buf[4] = MsgTypeRobotState

	hdr, err := parseHeader(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hdr.length, test.ShouldEqual, 42)
	test.That(t, hdr.typ, test.ShouldEqual, byte(MsgTypeRobotState))
}

func TestParseHeaderRejectsWrongSize(t *testing.T) {
	_, err := parseHeader(make([]byte, 4))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseHeaderRejectsLengthNotGreaterThanHeader(t *testing.T) {
	buf := make([]byte, HeaderLength)
	binary.BigEndian.PutUint32(buf[0:4], HeaderLength)
	_, err := parseHeader(buf)
	test.That(t, err, test.ShouldNotBeNil)
}

func buildSubPackage(subType byte, payload []byte) []byte {
	subLen := SubHeaderLength + len(payload)
	buf := make([]byte, subLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(subLen))
	buf[4] = subType
	copy(buf[5:], payload)
	return buf
}

func TestSubPackagesSplitsMultipleEntries(t *testing.T) {
	var body []byte
	body = append(body, buildSubPackage(SubTypeRobotModeData, []byte{1})...)
	body = append(body, buildSubPackage(SubTypeKinematicsInfo, make([]byte, 144))...)

	subs, err := subPackages(body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(subs), test.ShouldEqual, 2)
	test.That(t, subs[0].subType, test.ShouldEqual, byte(SubTypeRobotModeData))
	test.That(t, len(subs[0].data), test.ShouldEqual, 1)
	test.That(t, subs[1].subType, test.ShouldEqual, byte(SubTypeKinematicsInfo))
	test.That(t, len(subs[1].data), test.ShouldEqual, 144)
}

func TestSubPackagesRejectsTruncatedHeader(t *testing.T) {
	_, err := subPackages(make([]byte, 2))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSubPackagesRejectsOverrunLength(t *testing.T) {
	buf := make([]byte, SubHeaderLength)
	binary.BigEndian.PutUint32(buf[0:4], 100)
	_, err := subPackages(buf)
	test.That(t, err, test.ShouldNotBeNil)
}
