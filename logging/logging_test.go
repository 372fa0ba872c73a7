package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestLevelStrings(t *testing.T) {
	for _, level := range []Level{DEBUG, INFO, WARN, ERROR} {
		serialized := level.String()
		parsed, err := LevelFromString(serialized)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, level)
	}

	parsed, err := LevelFromString("warning")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldEqual, WARN)
}

func TestLevelFromStringUnknown(t *testing.T) {
	_, err := LevelFromString("not a level")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNamedLoggerDoesNotPanic(t *testing.T) {
	logger := NewTestLogger(t)
	sub := logger.Named("reverse")
	sub.Infow("listening", "port", 50001)
	sub.Debugf("frame written: %d bytes", 112)
}
