package control

import (
	"context"
	"io"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/elite-robotics/ec-driver/logging"
)

func TestScriptCommandZeroFTSensorFrame(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reactor := NewReactor(logger)
	reactor.Start()
	defer reactor.Stop()

	port := freePort(t)
	iface, err := NewScriptCommandInterface(port, reactor, logger)
	test.That(t, err, test.ShouldBeNil)
	defer iface.Close()

	conn := dialAndWaitConnected(t, port, iface.server.IsClientConnected)
	defer conn.Close()

	test.That(t, iface.ZeroFTSensor(), test.ShouldBeNil)

	buf := make([]byte, ScriptCommandFrameBytes)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = io.ReadFull(conn, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, getSlot(buf, 0), test.ShouldEqual, int32(CmdZeroFTSensor))
}

func TestScriptCommandSetPayloadFrame(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reactor := NewReactor(logger)
	reactor.Start()
	defer reactor.Stop()

	port := freePort(t)
	iface, err := NewScriptCommandInterface(port, reactor, logger)
	test.That(t, err, test.ShouldBeNil)
	defer iface.Close()

	conn := dialAndWaitConnected(t, port, iface.server.IsClientConnected)
	defer conn.Close()

	test.That(t, iface.SetPayload(1.5, [3]float64{0.01, 0.02, 0.03}), test.ShouldBeNil)

	buf := make([]byte, ScriptCommandFrameBytes)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = io.ReadFull(conn, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, getSlot(buf, 0), test.ShouldEqual, int32(CmdSetPayload))
	test.That(t, getSlot(buf, 1), test.ShouldEqual, scaleToInt32(1.5, CommonZoomRatio))
	test.That(t, getSlot(buf, 2), test.ShouldEqual, scaleToInt32(0.01, CommonZoomRatio))
}

// TestScriptCommandSerialResultCorrelation exercises the serial
// start/end correlator: the robot echoes a SerialResult frame back on
// the same connection, and waitForSerialResult must unblock with a nil
// error when it matches the expected result.
func TestScriptCommandSerialResultCorrelation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reactor := NewReactor(logger)
	reactor.Start()
	defer reactor.Stop()

	port := freePort(t)
	iface, err := NewScriptCommandInterface(port, reactor, logger)
	test.That(t, err, test.ShouldBeNil)
	defer iface.Close()

	conn := dialAndWaitConnected(t, port, iface.server.IsClientConnected)
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		done <- iface.EndToolRS485(context.Background())
	}()

	// Drain the command frame the correlator just sent, then reply with
	// the matching SerialResult frame.
	cmdBuf := make([]byte, ScriptCommandFrameBytes)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = io.ReadFull(conn, cmdBuf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, getSlot(cmdBuf, 0), test.ShouldEqual, int32(CmdEndToolRS485))

	reply := make([]byte, scriptCommandResultBytes)
	putSlot(reply, 0, int32(SerialResultEnd))
	_, err = conn.Write(reply)
	test.That(t, err, test.ShouldBeNil)

	select {
	case err := <-done:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(2 * time.Second):
		t.Fatal("waitForSerialResult never returned")
	}
}

func TestScriptCommandSerialResultMismatch(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reactor := NewReactor(logger)
	reactor.Start()
	defer reactor.Stop()

	port := freePort(t)
	iface, err := NewScriptCommandInterface(port, reactor, logger)
	test.That(t, err, test.ShouldBeNil)
	defer iface.Close()

	conn := dialAndWaitConnected(t, port, iface.server.IsClientConnected)
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		done <- iface.EndToolRS485(context.Background())
	}()

	cmdBuf := make([]byte, ScriptCommandFrameBytes)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = io.ReadFull(conn, cmdBuf)
	test.That(t, err, test.ShouldBeNil)

	reply := make([]byte, scriptCommandResultBytes)
	putSlot(reply, 0, int32(SerialResultFail))
	_, err = conn.Write(reply)
	test.That(t, err, test.ShouldBeNil)

	select {
	case err := <-done:
		test.That(t, err, test.ShouldNotBeNil)
	case <-time.After(2 * time.Second):
		t.Fatal("waitForSerialResult never returned")
	}
}
