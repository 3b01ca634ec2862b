package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetLogLevel(t *testing.T) {
	previous := AtomicLevel.Level()
	defer AtomicLevel.SetLevel(previous)

	require.Nil(t, SetLogLevel("debug"))
	require.True(t, Verbose())
	require.Nil(t, SetLogLevel("WARN"))
	require.False(t, Verbose())
	require.Equal(t, zapcore.WarnLevel, AtomicLevel.Level())

	require.NotNil(t, SetLogLevel("chatty"))
	require.Equal(t, zapcore.WarnLevel, AtomicLevel.Level())
}

func TestLoggerConfig(t *testing.T) {
	config := loggerConfig()
	require.Equal(t, "console", config.Encoding)
	require.Equal(t, []string{"stderr"}, config.OutputPaths)
	require.Equal(t, zapcore.OmitKey, config.EncoderConfig.NameKey)
	require.Equal(t, zapcore.OmitKey, config.EncoderConfig.CallerKey)
	_, err := config.Build()
	require.Nil(t, err)
}
