package main

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger      *zap.SugaredLogger
	AtomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// loggerConfig writes leveled, timestamped console lines to stderr, leaving
// stdout to report output.
func loggerConfig() zap.Config {
	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "T"
	encoder.LevelKey = "L"
	encoder.MessageKey = "M"
	encoder.NameKey = zapcore.OmitKey
	encoder.CallerKey = zapcore.OmitKey
	encoder.StacktraceKey = zapcore.OmitKey
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeDuration = zapcore.StringDurationEncoder

	return zap.Config{
		Level:            AtomicLevel,
		Encoding:         "console",
		EncoderConfig:    encoder,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

func init() {
	level, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		level = "INFO"
	}
	if err := SetLogLevel(level); err != nil {
		log.Printf("failed to parse log level, fallback to INFO: %v", err)
	}
	logger, err := loggerConfig().Build()
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	Logger = logger.Sugar()
}

func SetLogLevel(level string) error {
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	AtomicLevel.SetLevel(parsed.Level())
	return nil
}

// Verbose reports whether engine subprocess output should be forwarded.
func Verbose() bool { return AtomicLevel.Enabled(zap.DebugLevel) }
