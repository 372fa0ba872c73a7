package control

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/elite-robotics/ec-driver/logging"
	"github.com/elite-robotics/ec-driver/primary"
	"github.com/elite-robotics/ec-driver/scripttpl"
	"github.com/elite-robotics/ec-driver/serial"
)

// DriverConfig configures the Driver façade's construction. Zero-value
// numeric fields are replaced by their documented defaults in
// NewDriver.
type DriverConfig struct {
	RobotIP        string `json:"robot_ip"`
	LocalIP        string `json:"local_ip,omitempty"` // optional; auto-detected via the primary port when empty
	ScriptFilePath string `json:"script_file_path"`
	HeadlessMode   bool   `json:"headless_mode"`

	ReversePort       int `json:"reverse_port,omitempty"`
	ScriptSenderPort  int `json:"script_sender_port,omitempty"`
	TrajectoryPort    int `json:"trajectory_port,omitempty"`
	ScriptCommandPort int `json:"script_command_port,omitempty"`

	ServojTime          float64 `json:"servoj_time,omitempty"`
	ServojLookaheadTime float64 `json:"servoj_lookahead_time,omitempty"`
	ServojGain          float64 `json:"servoj_gain,omitempty"`
	StopjAcc            float64 `json:"stopj_acc,omitempty"`
}

func (c DriverConfig) withDefaults() DriverConfig {
	if c.ReversePort == 0 {
		c.ReversePort = DefaultReversePort
	}
	if c.ScriptSenderPort == 0 {
		c.ScriptSenderPort = DefaultScriptSenderPort
	}
	if c.TrajectoryPort == 0 {
		c.TrajectoryPort = DefaultTrajectoryPort
	}
	if c.ScriptCommandPort == 0 {
		c.ScriptCommandPort = DefaultScriptCommandPort
	}
	if c.ServojTime == 0 {
		c.ServojTime = 0.008
	}
	if c.ServojLookaheadTime == 0 {
		c.ServojLookaheadTime = 0.1
	}
	if c.ServojGain == 0 {
		c.ServojGain = 300
	}
	if c.StopjAcc == 0 {
		c.StopjAcc = 8
	}
	return c
}

// Driver is the top-level façade a host application drives: it owns the
// reactor, the four port interfaces, the composed control script, and
// (in headless mode) the transient Primary Port connection used to push
// that script.
type Driver struct {
	cfg    DriverConfig
	logger logging.Logger

	reactor *Reactor
	reverse *ReverseInterface
	command *ScriptCommandInterface
	traj    *TrajectoryInterface
	sender  *ScriptSender // nil in headless mode

	script string
}

// NewDriver reads the script template, composes the control script,
// starts the reactor, opens the Reverse/Script-Command/Trajectory
// interfaces, and -- depending on cfg.HeadlessMode -- either opens the
// Script Sender or pushes the composed script once over a transient
// Primary Port connection.
func NewDriver(cfg DriverConfig, logger logging.Logger) (*Driver, error) {
	cfg = cfg.withDefaults()
	logger = logger.Named("driver")

	tmplBytes, err := os.ReadFile(cfg.ScriptFilePath)
	if err != nil {
		return nil, fmt.Errorf("control: read script template %q: %w", cfg.ScriptFilePath, err)
	}

	hostIP := cfg.LocalIP
	if hostIP == "" {
		hostIP, err = detectLocalIP(cfg.RobotIP, logger)
		if err != nil {
			return nil, fmt.Errorf("control: detect local IP: %w", err)
		}
	}

	script, err := scripttpl.Compose(string(tmplBytes), scripttpl.Params{
		HostIP:              hostIP,
		ReversePort:         cfg.ReversePort,
		ScriptSenderPort:    cfg.ScriptSenderPort,
		ScriptCommandPort:   cfg.ScriptCommandPort,
		TrajectoryPort:      cfg.TrajectoryPort,
		ServojTime:          cfg.ServojTime,
		ServojLookaheadTime: cfg.ServojLookaheadTime,
		ServojGain:          cfg.ServojGain,
		StopjAcc:            cfg.StopjAcc,
	})
	if err != nil {
		return nil, fmt.Errorf("control: compose control script: %w", err)
	}

	reactor := NewReactor(logger)
	reactor.Start()

	d := &Driver{cfg: cfg, logger: logger, reactor: reactor, script: script}

	if d.reverse, err = NewReverseInterface(cfg.ReversePort, reactor, logger); err != nil {
		reactor.Stop()
		return nil, err
	}
	if d.command, err = NewScriptCommandInterface(cfg.ScriptCommandPort, reactor, logger); err != nil {
		_ = d.reverse.Close()
		reactor.Stop()
		return nil, err
	}
	if d.traj, err = NewTrajectoryInterface(cfg.TrajectoryPort, reactor, logger); err != nil {
		_ = multierr.Combine(d.reverse.Close(), d.command.Close())
		reactor.Stop()
		return nil, err
	}

	if cfg.HeadlessMode {
		if err := d.SendExternalControlScript(); err != nil {
			_ = d.closeInterfaces()
			reactor.Stop()
			return nil, err
		}
	} else {
		if d.sender, err = NewScriptSender(cfg.ScriptSenderPort, script, reactor, logger); err != nil {
			_ = d.closeInterfaces()
			reactor.Stop()
			return nil, err
		}
	}

	return d, nil
}

// detectLocalIP dials the robot briefly via the Primary Port Client
// purely to learn which local interface the OS would route through,
// mirroring the original's PrimaryPortClient::get_local_ip() helper.
func detectLocalIP(robotIP string, logger logging.Logger) (string, error) {
	client := primary.NewClient(logger)
	if !client.Connect(robotIP, primary.DefaultPort) {
		return "", fmt.Errorf("control: could not reach robot at %s:%d to detect local IP", robotIP, primary.DefaultPort)
	}
	defer client.Disconnect()
	ip := client.GetLocalIP()
	if ip == "" {
		return "", fmt.Errorf("control: local IP detection returned empty address")
	}
	return ip, nil
}

// IsRobotConnected reports whether the Reverse Interface currently holds
// a live peer.
func (d *Driver) IsRobotConnected() bool {
	return d.reverse.IsRobotConnected()
}

// Reverse, Command, and Trajectory expose the underlying interfaces for
// callers that need direct access to §4.B/C/D operations.
func (d *Driver) Reverse() *ReverseInterface       { return d.reverse }
func (d *Driver) Command() *ScriptCommandInterface { return d.command }
func (d *Driver) Trajectory() *TrajectoryInterface { return d.traj }

// SendExternalControlScript pushes the composed control script to the
// robot over a transient Primary Port connection, the same mechanism
// headless construction uses. It is exposed so a caller can re-arm the
// robot after a script abort without reconstructing the Driver.
func (d *Driver) SendExternalControlScript() error {
	client := primary.NewClient(d.logger)
	if !client.Connect(d.cfg.RobotIP, primary.DefaultPort) {
		return fmt.Errorf("control: could not reach robot at %s:%d to send control script", d.cfg.RobotIP, primary.DefaultPort)
	}
	defer client.Disconnect()
	if !client.SendScript(d.script) {
		return fmt.Errorf("control: failed to send control script")
	}
	return nil
}

// StopControl emits a Reverse STOP frame and releases every peer
// connection, leaving the interfaces listening for the robot's next
// script run.
func (d *Driver) StopControl() error {
	err := d.reverse.WriteStop()
	d.reverse.server.ReleaseClient()
	d.command.server.ReleaseClient()
	d.traj.server.ReleaseClient()
	if d.sender != nil {
		d.sender.server.ReleaseClient()
	}
	return err
}

// StartToolRS485 requests a tool RS485 tunnel and returns a live Tunnel
// bound to the robot's bridged serial port.
func (d *Driver) StartToolRS485(ctx context.Context, cfg SerialConfig, tcpPort int) (*serial.Tunnel, error) {
	return d.command.StartToolRS485(ctx, d.cfg.RobotIP, cfg, tcpPort)
}

// EndToolRS485 tears down a previously started tool RS485 tunnel.
func (d *Driver) EndToolRS485(ctx context.Context) error {
	return d.command.EndToolRS485(ctx)
}

// StartBoardRS485 requests a controller-board RS485 tunnel and returns a
// live Tunnel bound to the robot's bridged serial port.
func (d *Driver) StartBoardRS485(ctx context.Context, cfg SerialConfig, tcpPort int) (*serial.Tunnel, error) {
	return d.command.StartBoardRS485(ctx, d.cfg.RobotIP, cfg, tcpPort)
}

// EndBoardRS485 tears down a previously started controller-board RS485
// tunnel.
func (d *Driver) EndBoardRS485(ctx context.Context) error {
	return d.command.EndBoardRS485(ctx)
}

func (d *Driver) closeInterfaces() error {
	errs := []error{d.reverse.Close(), d.command.Close(), d.traj.Close()}
	if d.sender != nil {
		errs = append(errs, d.sender.Close())
	}
	return multierr.Combine(errs...)
}

// Close tears down every interface and stops the reactor, aggregating
// any teardown errors rather than discarding all but the first.
func (d *Driver) Close() error {
	err := d.closeInterfaces()
	d.reactor.Stop()
	return err
}
