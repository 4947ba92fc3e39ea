package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Logger
		wantErr bool
	}{
		{name: "nil config uses defaults", cfg: nil},
		{name: "valid config", cfg: &Logger{Level: "debug", Format: "json"}},
		{name: "invalid level", cfg: &Logger{Level: "shouting"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewLogger(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestTestLoggerCapturesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info("something happened", ZapString("key", "value"), ZapInt("count", 3))
	logger.Debug("fine detail")

	out := buf.String()
	assert.Contains(t, out, "something happened")
	assert.Contains(t, out, "value")
	assert.Contains(t, out, "fine detail")
}

func TestWithComponentScopesLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf).WithComponent("emitter")

	logger.Warn("watch out")
	assert.Contains(t, buf.String(), "emitter")
}
