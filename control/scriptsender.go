package control

import (
	"fmt"
	"sync"

	"github.com/elite-robotics/ec-driver/logging"
)

// DefaultScriptSenderPort is the Script Sender's default port.
const DefaultScriptSenderPort = 50002

// programRequestLine is the line the robot-side script sends when it wants
// the control script body.
const programRequestLine = "request_program"

// ScriptSender is a one-shot request/response endpoint: it accepts a
// client, reads a line, and if that line is "request_program" writes the
// stored script body and waits for the next request. Successive requests
// (e.g. after a robot script restart causes a re-accept) see the same
// bytes until SetScript replaces the body.
type ScriptSender struct {
	server *Server
	logger logging.Logger

	mu     sync.RWMutex
	script string
}

// NewScriptSender constructs and starts listening on port, serving script.
func NewScriptSender(port int, script string, reactor *Reactor, logger logging.Logger) (*ScriptSender, error) {
	logger = logger.Named("scriptsender")
	srv := NewServer("scriptsender", port, 0, reactor, logger)
	s := &ScriptSender{server: srv, logger: logger, script: script}
	srv.SetLineCallback(s.onLine)
	if err := srv.StartListen(); err != nil {
		return nil, fmt.Errorf("control: script sender listen: %w", err)
	}
	return s, nil
}

// Close releases the listener and any connected peer.
func (s *ScriptSender) Close() error {
	return s.server.Close()
}

// SetScript replaces the served script body.
func (s *ScriptSender) SetScript(script string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
}

func (s *ScriptSender) onLine(line string) {
	if line != programRequestLine {
		return
	}
	s.logger.Infow("robot requested external control script")
	s.mu.RLock()
	script := s.script
	s.mu.RUnlock()
	if n := s.server.WriteClient([]byte(script)); n <= 0 {
		s.logger.Warnw("failed to send script to requesting robot")
	}
}
