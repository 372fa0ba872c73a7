package scripttpl

import (
	"strings"
	"testing"

	"go.viam.com/test"
)

func testParams() Params {
	return Params{
		HostIP:              "192.0.2.10",
		ReversePort:         50001,
		ScriptSenderPort:    50002,
		ScriptCommandPort:   50004,
		TrajectoryPort:      50003,
		ServojTime:          0.008,
		ServojLookaheadTime: 0.1,
		ServojGain:          300,
		StopjAcc:            8,
	}
}

func TestComposeDefaultTemplateSubstitutesAllPlaceholders(t *testing.T) {
	out, err := Compose("", testParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "192.0.2.10")
	test.That(t, out, test.ShouldContainSubstring, "50001")
	test.That(t, out, test.ShouldContainSubstring, "50002")
	test.That(t, out, test.ShouldContainSubstring, "50003")
	test.That(t, out, test.ShouldContainSubstring, "50004")
	test.That(t, out, test.ShouldContainSubstring, "0.008")
	test.That(t, out, test.ShouldNotContainSubstring, "{{")
}

func TestComposeCustomTemplate(t *testing.T) {
	tmpl := "host={{.HostIP}} port={{.ReversePort}}"
	out, err := Compose(tmpl, testParams())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldEqual, "host=192.0.2.10 port=50001")
}

func TestComposeInvalidTemplateSyntax(t *testing.T) {
	_, err := Compose("{{.HostIP", testParams())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestComposeUnknownField(t *testing.T) {
	_, err := Compose("{{.NotAField}}", testParams())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDefaultTemplateIsNonEmpty(t *testing.T) {
	test.That(t, strings.TrimSpace(defaultTemplate), test.ShouldNotBeBlank)
}
