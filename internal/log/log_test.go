package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel(LevelInfo) })

	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			SetLevel(tt.level)
			assert.Equal(t, tt.want, zapLevel.Level())
		})
	}
}

func TestNamedAndNop(t *testing.T) {
	assert.NotNil(t, Named("mbr"))

	nop := NewNop()
	assert.NotPanics(t, func() {
		nop.Infow("progress", "successes", 1, "target", 2)
		nop.Warnf("fallback %d", 1)
	})
}
