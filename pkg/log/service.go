package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	config "github.com/mwantia/s3offload/internal/config/server"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerService interface {
	Debug(msg string, args ...any)

	Info(msg string, args ...any)

	Warn(msg string, args ...any)

	Error(msg string, args ...any)

	Fatal(msg string, args ...any)

	Named(name string) LoggerService
}

// sink is shared by a logger and every logger derived through Named.
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	file   *lumberjack.Logger
	colors bool
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(line)
}

type LoggerServiceImpl struct {
	cfg   config.LogServerConfig
	name  string
	level LogLevel
	sink  *sink
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

// NewLoggerService logs to stdout and, when configured, to a rotated file.
func NewLoggerService(name string, cfg config.LogServerConfig) LoggerService {
	return newLogger(name, cfg, os.Stdout)
}

// NewLoggerServiceTo is NewLoggerService with the terminal output replaced by w.
// The CLI passes stderr so that command results on stdout stay parseable.
func NewLoggerServiceTo(name string, cfg config.LogServerConfig, w io.Writer) LoggerService {
	return newLogger(name, cfg, w)
}

// NewDiscardLogger returns a logger that drops every entry.
func NewDiscardLogger() LoggerService {
	return &LoggerServiceImpl{
		level: Fatal + 1,
		sink:  &sink{out: io.Discard},
	}
}

func newLogger(name string, cfg config.LogServerConfig, terminal io.Writer) *LoggerServiceImpl {
	s := &sink{}

	var writers []io.Writer
	if !cfg.NoTerminal {
		writers = append(writers, terminal)
		s.colors = !cfg.NoColor
	}
	if cfg.File != "" {
		s.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAge,
			Compress:   cfg.Rotation.Compress,
		}
		writers = append(writers, s.file)
	}
	if len(writers) == 0 {
		writers = append(writers, terminal)
	}
	// Escape codes must not end up in the rotated file.
	if s.file != nil {
		s.colors = false
	}
	s.out = io.MultiWriter(writers...)

	return &LoggerServiceImpl{
		cfg:   cfg,
		name:  name,
		level: Parse(cfg.Level),
		sink:  s,
	}
}

// Close flushes and closes the rotated log file, if any.
func (impl *LoggerServiceImpl) Close() error {
	if impl.sink.file == nil {
		return nil
	}
	return impl.sink.file.Close()
}

func (impl *LoggerServiceImpl) format(level LogLevel, msg string) []byte {
	layout := impl.cfg.TimeFormat
	if layout == "" {
		layout = time.RFC3339
	}
	timestamp := time.Now().Format(layout)

	var buf bytes.Buffer
	if impl.cfg.JSON {
		data, _ := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   impl.name,
			Message:   msg,
		})
		buf.Write(data)
		buf.WriteByte('\n')
		return buf.Bytes()
	}

	if impl.sink.colors {
		buf.WriteString(Color(level))
	}
	fmt.Fprintf(&buf, "[%s] %-5s", timestamp, level)
	if impl.name != "" {
		fmt.Fprintf(&buf, " [%s]", impl.name)
	}
	buf.WriteByte(' ')
	buf.WriteString(msg)
	if impl.sink.colors {
		buf.WriteString("\033[0m")
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func (impl *LoggerServiceImpl) log(level LogLevel, msg string, args ...any) {
	if level < impl.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	impl.sink.write(impl.format(level, msg))

	if level == Fatal {
		_ = impl.Close()
		os.Exit(1)
	}
}

func (impl *LoggerServiceImpl) Debug(msg string, args ...any) {
	impl.log(Debug, msg, args...)
}

func (impl *LoggerServiceImpl) Info(msg string, args ...any) {
	impl.log(Info, msg, args...)
}

func (impl *LoggerServiceImpl) Warn(msg string, args ...any) {
	impl.log(Warn, msg, args...)
}

func (impl *LoggerServiceImpl) Error(msg string, args ...any) {
	impl.log(Error, msg, args...)
}

func (impl *LoggerServiceImpl) Fatal(msg string, args ...any) {
	impl.log(Fatal, msg, args...)
}

// Named returns a child logger whose entries carry "parent/name".
func (impl *LoggerServiceImpl) Named(name string) LoggerService {
	full := name
	if impl.name != "" {
		full = impl.name + "/" + name
	}

	return &LoggerServiceImpl{
		cfg:   impl.cfg,
		name:  full,
		level: impl.level,
		sink:  impl.sink,
	}
}
