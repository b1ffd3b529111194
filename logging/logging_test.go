package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"birthdaybot/config"
)

func TestBuildConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		encoding string
		level    zapcore.Level
	}{
		{
			name:     "production json",
			cfg:      config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn", Format: "json"}},
			encoding: "json",
			level:    zapcore.WarnLevel,
		},
		{
			name:     "development console",
			cfg:      config.Config{Env: config.EnvDevelopment, Log: config.LogConfig{Level: "debug", Format: "console"}},
			encoding: "console",
			level:    zapcore.DebugLevel,
		},
		{
			name:     "bad level falls back to info",
			cfg:      config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "loud"}},
			encoding: "json",
			level:    zapcore.InfoLevel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zapCfg := buildConfig(&tt.cfg)
			assert.Equal(t, tt.encoding, zapCfg.Encoding)
			assert.Equal(t, tt.level, zapCfg.Level.Level())
			assert.Equal(t, "timestamp", zapCfg.EncoderConfig.TimeKey)
		})
	}
}

func TestNew(t *testing.T) {
	logger, err := New(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "info"}})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
