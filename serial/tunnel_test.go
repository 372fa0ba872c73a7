package serial

import (
	"net"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/elite-robotics/ec-driver/logging"
)

func TestTunnelDialWriteRead(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		test.That(t, err, test.ShouldBeNil)
		accepted <- conn
	}()

	tunnel, err := Dial("127.0.0.1", port, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer tunnel.Close()

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("tunnel dial was never accepted")
	}
	defer serverConn.Close()

	n, err := tunnel.Write([]byte{0xAA, 0xBB})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 2)

	buf := make([]byte, 2)
	serverConn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = serverConn.Read(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf, test.ShouldResemble, []byte{0xAA, 0xBB})
}

func TestTunnelDialFailsOnUnreachable(t *testing.T) {
	_, err := Dial("127.0.0.1", 1, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTunnelCloseThenWriteFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	tunnel, err := Dial("127.0.0.1", port, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tunnel.Close(), test.ShouldBeNil)

	_, err = tunnel.Write([]byte{1})
	test.That(t, err, test.ShouldNotBeNil)
}
