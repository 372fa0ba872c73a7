package control

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/elite-robotics/ec-driver/logging"
	"github.com/elite-robotics/ec-driver/primary"
)

// TestDriverHeadlessHandshake exercises scenario S1: constructing a
// headless Driver dials the robot's primary port once, writes a single
// script payload ending in "\n", and closes that connection.
func TestDriverHeadlessHandshake(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "control.script.tmpl")
	test.That(t, os.WriteFile(tmpl, []byte("host={{.HostIP}} reverse={{.ReversePort}}"), 0o600), test.ShouldBeNil)

	primaryLn, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(primary.DefaultPort)))
	test.That(t, err, test.ShouldBeNil)
	defer primaryLn.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := primaryLn.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	cfg := DriverConfig{
		RobotIP:           "127.0.0.1",
		LocalIP:           "127.0.0.1",
		ScriptFilePath:    tmpl,
		HeadlessMode:      true,
		ReversePort:       freePort(t),
		ScriptSenderPort:  freePort(t),
		TrajectoryPort:    freePort(t),
		ScriptCommandPort: freePort(t),
	}

	driver, err := NewDriver(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer driver.Close()

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("driver never connected to the primary port")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.HasSuffix(line, "\n"), test.ShouldBeTrue)
	test.That(t, line, test.ShouldContainSubstring, "127.0.0.1")

	test.That(t, driver.IsRobotConnected(), test.ShouldBeFalse)
}

// TestDriverConstructionNonHeadless exercises the served (non-headless)
// construction path end-to-end: Reverse/Command/Trajectory/Sender all
// come up, IsRobotConnected starts false, and StopControl releases the
// Reverse peer; Close is deferred to tear everything down.
func TestDriverConstructionNonHeadless(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "control.script.tmpl")
	test.That(t, os.WriteFile(tmpl, []byte("host={{.HostIP}} reverse={{.ReversePort}}"), 0o600), test.ShouldBeNil)

	cfg := DriverConfig{
		RobotIP:           "127.0.0.1",
		LocalIP:           "127.0.0.1",
		ScriptFilePath:    tmpl,
		HeadlessMode:      false,
		ReversePort:       freePort(t),
		ScriptSenderPort:  freePort(t),
		TrajectoryPort:    freePort(t),
		ScriptCommandPort: freePort(t),
	}

	driver, err := NewDriver(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer driver.Close()

	test.That(t, driver.IsRobotConnected(), test.ShouldBeFalse)

	conn := dialAndWaitConnected(t, cfg.ReversePort, driver.IsRobotConnected)
	defer conn.Close()
	test.That(t, driver.IsRobotConnected(), test.ShouldBeTrue)

	test.That(t, driver.StopControl(), test.ShouldBeNil)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && driver.IsRobotConnected() {
		time.Sleep(5 * time.Millisecond)
	}
	test.That(t, driver.IsRobotConnected(), test.ShouldBeFalse)
}

func TestDriverConfigDefaults(t *testing.T) {
	cfg := DriverConfig{}.withDefaults()
	test.That(t, cfg.ReversePort, test.ShouldEqual, DefaultReversePort)
	test.That(t, cfg.ScriptSenderPort, test.ShouldEqual, DefaultScriptSenderPort)
	test.That(t, cfg.TrajectoryPort, test.ShouldEqual, DefaultTrajectoryPort)
	test.That(t, cfg.ScriptCommandPort, test.ShouldEqual, DefaultScriptCommandPort)
	test.That(t, cfg.ServojTime, test.ShouldEqual, 0.008)
	test.That(t, cfg.ServojLookaheadTime, test.ShouldEqual, 0.1)
	test.That(t, cfg.ServojGain, test.ShouldEqual, float64(300))
	test.That(t, cfg.StopjAcc, test.ShouldEqual, float64(8))
}
