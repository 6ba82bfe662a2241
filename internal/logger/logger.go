// Package logger builds the zap loggers of the turntable command: short
// colored lines on the console and, optionally, JSON lines in a rotating
// file so long batch runs can be filtered per asset and stage.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process logger. It discards everything until Init runs.
var Log = zap.NewNop()

// Sugar is Log with printf-style helpers.
var Sugar = Log.Sugar()

// FileConfig controls the rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig keeps a couple of weeks of batch logs.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

// Options configures New. A nil Console and an empty File.Path yield a
// no-op logger.
type Options struct {
	Level   string
	Console io.Writer
	File    FileConfig
}

// New builds a logger from opt.
func New(opt Options) (*zap.Logger, error) {
	level := opt.Level
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opt.Level, err)
	}

	var cores []zapcore.Core
	if opt.Console != nil {
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.Lock(zapcore.AddSync(opt.Console)), lvl))
	}
	if opt.File.Path != "" {
		w := &lumberjack.Logger{
			Filename:   opt.File.Path,
			MaxSize:    opt.File.MaxSizeMB,
			MaxBackups: opt.File.MaxBackups,
			MaxAge:     opt.File.MaxAgeDays,
			Compress:   opt.File.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(fileEncoder(), zapcore.AddSync(w), lvl))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func consoleEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	})
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// Init replaces Log and Sugar. Console output goes to stderr so command
// results on stdout stay clean.
func Init(level string, logFile string) error {
	opt := Options{Level: level, Console: os.Stderr}
	if logFile != "" {
		opt.File = DefaultFileConfig(logFile)
	}
	l, err := New(opt)
	if err != nil {
		return err
	}
	Log = l
	Sugar = l.Sugar()
	return nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Asset tags an entry with the asset name.
func Asset(name string) zap.Field { return zap.String("asset", name) }

// Stage tags an entry with the pipeline stage.
func Stage(name string) zap.Field { return zap.String("stage", name) }

// Frame tags an entry with a frame index.
func Frame(i int) zap.Field { return zap.Int("frame", i) }

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}
