package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewCustomLogger(&buf, LevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "[DEBUG]")
	assert.NotContains(t, out, "[INFO]")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestPackageLevelLogger(t *testing.T) {
	var buf bytes.Buffer
	old := GetDefaultLogger()
	defer SetDefaultLogger(old)

	SetDefaultLogger(NewCustomLogger(&buf, LevelDebug))
	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	lines := strings.Count(buf.String(), "\n")
	assert.Equal(t, 4, lines)
}

func TestGologLogger(t *testing.T) {
	var buf bytes.Buffer
	gl := golog.New()
	gl.SetOutput(&buf)

	l := NewGologLogger(gl)
	l.SetLevel(LevelDebug)
	l.Info("hello %s", "world")

	assert.Contains(t, buf.String(), "hello world")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}
