package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool

	verbosity int
	fileSink  *lumberjack.Logger
)

func init() {
	// Safe no-op until Initialize runs, so package-level callers never hit a nil logger
	Logger = zap.NewNop().Sugar()
}

// Options configures the global logger.
type Options struct {
	// JSON selects the production JSON encoder instead of the console encoder
	JSON bool
	// Verbosity is the -v count from the CLI
	Verbosity int
	// File, when set, tees log output into a size-rotated file
	File string
	// MaxSizeMB and MaxBackups bound the rotated file; zero uses lumberjack defaults
	MaxSizeMB  int
	MaxBackups int
}

// Initialize sets up the global logger.
// Console output goes to stderr so command results on stdout stay pipeable.
func Initialize(opts Options) error {
	JSONOutput = opts.JSON
	verbosity = opts.Verbosity
	level := zap.NewAtomicLevelAt(VerbosityToLevel(opts.Verbosity))

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}

	if opts.File != "" {
		fileSink = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		// Files always get JSON, regardless of console format
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(fileSink), level))
	}

	Logger = zap.New(zapcore.NewTee(cores...)).Sugar()
	return nil
}

// Cleanup flushes buffered entries and closes the file sink
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
}

// Verbosity returns the -v count the logger was initialized with
func Verbosity() int {
	return verbosity
}

// Named returns a child of the global logger tagged with a component name
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component).With(FieldComponent, component)
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}

// Infow logs an info message with structured fields
func Infow(msg string, keysAndValues ...interface{}) {
	Logger.Infow(msg, keysAndValues...)
}

// Warnw logs a warning message with structured fields
func Warnw(msg string, keysAndValues ...interface{}) {
	Logger.Warnw(msg, keysAndValues...)
}

// Errorw logs an error message with structured fields
func Errorw(msg string, keysAndValues ...interface{}) {
	Logger.Errorw(msg, keysAndValues...)
}

// Debugw logs a debug message with structured fields
func Debugw(msg string, keysAndValues ...interface{}) {
	Logger.Debugw(msg, keysAndValues...)
}
