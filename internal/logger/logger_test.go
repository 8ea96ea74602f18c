package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitWithLevel(t *testing.T) {
	defer func() { Log = zap.NewNop() }()

	InitWithLevel("debug", false)
	if !Log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level should be enabled")
	}

	InitWithLevel("warn", true)
	if Log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be filtered at warn level")
	}
}

func TestInitWithUnknownLevelFallsBackToInfo(t *testing.T) {
	defer func() { Log = zap.NewNop() }()

	InitWithLevel("loud", false)

	if !Log.Core().Enabled(zapcore.InfoLevel) || Log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("unknown level should fall back to info")
	}
}
