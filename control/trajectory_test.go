package control

import (
	"io"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/elite-robotics/ec-driver/logging"
)

func TestTrajectoryWritePointFrame(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reactor := NewReactor(logger)
	reactor.Start()
	defer reactor.Stop()

	port := freePort(t)
	iface, err := NewTrajectoryInterface(port, reactor, logger)
	test.That(t, err, test.ShouldBeNil)
	defer iface.Close()

	conn := dialAndWaitConnected(t, port, iface.server.IsClientConnected)
	defer conn.Close()

	target := [6]float64{0, 0, 0, 0, 0, 0}
	test.That(t, iface.WriteTrajectoryPoint(target, 1.0, 0.02, true), test.ShouldBeNil)

	buf := make([]byte, TrajectoryFrameBytes)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = io.ReadFull(conn, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, getSlot(buf, 20), test.ShouldEqual, int32(MotionCartesian))
}

func TestTrajectoryResultCallbackOnlyOnce(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reactor := NewReactor(logger)
	reactor.Start()
	defer reactor.Stop()

	port := freePort(t)
	iface, err := NewTrajectoryInterface(port, reactor, logger)
	test.That(t, err, test.ShouldBeNil)
	defer iface.Close()

	test.That(t, iface.SetTrajectoryResultCallback(func(TrajectoryResult) {}), test.ShouldBeNil)
	err = iface.SetTrajectoryResultCallback(func(TrajectoryResult) {})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTrajectoryResultDelivered(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reactor := NewReactor(logger)
	reactor.Start()
	defer reactor.Stop()

	port := freePort(t)
	iface, err := NewTrajectoryInterface(port, reactor, logger)
	test.That(t, err, test.ShouldBeNil)
	defer iface.Close()

	results := make(chan TrajectoryResult, 1)
	test.That(t, iface.SetTrajectoryResultCallback(func(r TrajectoryResult) { results <- r }), test.ShouldBeNil)

	conn := dialAndWaitConnected(t, port, iface.server.IsClientConnected)
	defer conn.Close()

	buf := make([]byte, TrajectoryResultBytes)
	putSlot(buf, 0, int32(TrajectorySuccess))
	_, err = conn.Write(buf)
	test.That(t, err, test.ShouldBeNil)

	select {
	case r := <-results:
		test.That(t, r, test.ShouldEqual, TrajectorySuccess)
	case <-time.After(time.Second):
		t.Fatal("trajectory result callback never fired")
	}
}
