// Command served-example drives a robot in served mode: the control
// script is held by the Script Sender and delivered only once the
// robot's own script requests it, after which the process streams
// IDLE keepalive frames until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/elite-robotics/ec-driver/control"
	"github.com/elite-robotics/ec-driver/logging"
)

func main() {
	app := &cli.App{
		Name:  "served-example",
		Usage: "serve a control script and hold the robot idle over the Reverse Interface",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a driver config JSON file; overrides robot-ip/script/local-ip when set"},
			&cli.StringFlag{Name: "robot-ip", Usage: "robot controller IP address"},
			&cli.StringFlag{Name: "local-ip", Usage: "host IP the robot should dial back; auto-detected when unset"},
			&cli.StringFlag{Name: "script", Usage: "path to the control script template"},
			&cli.IntFlag{Name: "recv-timeout-ms", Value: 100, Usage: "keepalive recv-timeout in milliseconds"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "served-example:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := logging.NewLogger("served-example")

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	driver, err := control.NewDriver(cfg, logger)
	if err != nil {
		return fmt.Errorf("construct driver: %w", err)
	}
	defer driver.Close()

	logger.Infow("serving control script, waiting for robot to request it")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	recvTimeoutMS := c.Int("recv-timeout-ms")
	ticker := time.NewTicker(time.Duration(recvTimeoutMS) * time.Millisecond / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			logger.Infow("shutting down")
			return driver.StopControl()
		case <-ticker.C:
			if driver.IsRobotConnected() {
				if err := driver.Reverse().WriteIdle(recvTimeoutMS); err != nil {
					logger.Warnw("idle keepalive failed", "error", err)
				}
			}
		}
	}
}

// loadConfig builds a DriverConfig from --config when given, otherwise
// from the individual flags.
func loadConfig(c *cli.Context) (control.DriverConfig, error) {
	if path := c.String("config"); path != "" {
		return control.LoadDriverConfig(path)
	}
	if c.String("robot-ip") == "" || c.String("script") == "" {
		return control.DriverConfig{}, fmt.Errorf("served-example: either --config or both --robot-ip and --script are required")
	}
	return control.DriverConfig{
		RobotIP:        c.String("robot-ip"),
		LocalIP:        c.String("local-ip"),
		ScriptFilePath: c.String("script"),
		HeadlessMode:   false,
	}, nil
}
