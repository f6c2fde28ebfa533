package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/filemass/filemass/lib/config"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel converts a string to LogLevel.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Logger wraps a zap.SugaredLogger behind filemass's own level/output
// vocabulary, so callers see the same Debug/Info/Warn/Error/Fatal(+f)
// surface regardless of which backend formats the lines.
type Logger struct {
	level   LogLevel
	output  string
	logDir  string
	started time.Time

	mu      sync.Mutex
	sugar   *zap.SugaredLogger
	closeFn func() error
}

var (
	globalLogger *Logger
	once         sync.Once
)

// InitLogger initializes the global logger from a config.Store holding
// fmrepo.conf's logging.level / logging.output / logging.dir keys.
func InitLogger(store *config.Store) error {
	var err error
	once.Do(func() {
		globalLogger, err = NewLogger(store)
	})
	return err
}

// GetLogger returns the global logger instance, falling back to a basic
// stdout logger if InitLogger was never called.
func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger, _ = NewBasicLogger()
	}
	return globalLogger
}

// NewLogger creates a logger from the given config store. Missing keys
// fall back to INFO level, stdout output. A nil store is treated as one
// with no keys set at all, so callers without a repository open yet
// (or tests) can request the same INFO/stdout defaults NewBasicLogger
// gives.
func NewLogger(store *config.Store) (*Logger, error) {
	if store == nil {
		return NewBasicLogger()
	}

	levelStr, _, _ := store.Get("logging.level")
	output, ok, _ := store.Get("logging.output")
	if !ok {
		output = "stdout"
	}
	logDir, _, _ := store.Get("logging.dir")

	logger := &Logger{
		level:   ParseLogLevel(levelStr),
		output:  output,
		logDir:  logDir,
		started: time.Now(),
	}
	if err := logger.build(); err != nil {
		return nil, fmt.Errorf("logging: building logger: %w", err)
	}
	return logger, nil
}

// NewBasicLogger creates an INFO-level stdout logger for fallback use.
func NewBasicLogger() (*Logger, error) {
	logger := &Logger{level: INFO, output: "stdout", started: time.Now()}
	if err := logger.build(); err != nil {
		return nil, err
	}
	return logger, nil
}

func (l *Logger) build() error {
	var sinks []zapcore.WriteSyncer
	if l.output == "stdout" || l.output == "both" || l.output == "" {
		sinks = append(sinks, zapcore.AddSync(os.Stdout))
	}

	var closeFn func() error
	if l.output == "file" || l.output == "both" {
		path, err := l.logFilePath()
		if err != nil {
			return err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(file))
		closeFn = file.Close
	}
	if len(sinks) == 0 {
		sinks = append(sinks, zapcore.AddSync(os.Stdout))
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), l.level.zapLevel())
	l.sugar = zap.New(core).Sugar()
	l.closeFn = closeFn
	return nil
}

// logFilePath lays out log files as 2006-01-02/15-04-05.log directly
// under the configured logging.dir, creating the date directory.
func (l *Logger) logFilePath() (string, error) {
	dateDir := l.started.Format("2006-01-02")
	timeFile := l.started.Format("15-04-05") + ".log"

	fullDir := filepath.Join(l.logDir, dateDir)
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}
	return filepath.Join(fullDir, timeFile), nil
}

func (l *Logger) withFields(fields map[string]interface{}) *zap.SugaredLogger {
	if len(fields) == 0 {
		return l.sugar
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.sugar.With(args...)
}

// Public logging methods

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.withFields(firstOrNil(fields)).Debug(msg)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.withFields(firstOrNil(fields)).Info(msg)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.withFields(firstOrNil(fields)).Warn(msg)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.withFields(firstOrNil(fields)).Error(msg)
}

// Fatal logs at fatal level and terminates the process, matching zap's
// own Fatal semantics.
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	l.withFields(firstOrNil(fields)).Fatal(msg)
}

func firstOrNil(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	return fields[0]
}

// Formatted logging methods

func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

// Close flushes the logger and closes any open log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.sugar.Sync()
	if l.closeFn != nil {
		return l.closeFn()
	}
	return nil
}

// Global convenience functions

func Debug(msg string, fields ...map[string]interface{}) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { GetLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...map[string]interface{}) { GetLogger().Fatal(msg, fields...) }

func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetLogger().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetLogger().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }
