// Package scripttpl renders the robot-side control script (the Script
// Composer, spec §4.F) from an embedded template and the host-side port
// and timing configuration chosen at driver construction time.
package scripttpl

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed control.script.tmpl
var defaultTemplate string

// Params are the named placeholders the template substitutes. Every field
// must render to a syntactically valid value: numbers use dotted decimal,
// ports are decimal integers.
type Params struct {
	HostIP              string
	ReversePort         int
	ScriptSenderPort    int
	ScriptCommandPort   int
	TrajectoryPort      int
	ServojTime          float64
	ServojLookaheadTime float64
	ServojGain          float64
	StopjAcc            float64
}

// Compose renders tmplText (or the built-in default, when tmplText is
// empty) with params and returns the resulting script body.
func Compose(tmplText string, params Params) (string, error) {
	if strings.TrimSpace(tmplText) == "" {
		tmplText = defaultTemplate
	}
	tmpl, err := template.New("control-script").Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("scripttpl: parse template: %w", err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, params); err != nil {
		return "", fmt.Errorf("scripttpl: render template: %w", err)
	}
	return sb.String(), nil
}
