package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the minimum severity a logger writes.
type Level int

const (
	LevelDebug Level = iota // LevelDebug writes everything.
	LevelInfo               // LevelInfo drops debug entries.
	LevelWarn               // LevelWarn keeps warnings and errors.
	LevelError              // LevelError keeps errors only.
)

// LogDirEnv overrides the default log directory.
const LogDirEnv = "TIMELOG_LOG_DIR"

// Logger writes component tagged entries to the run's log file.
// All loggers created during one process share a run id and a file
// in ~/.timelog/logs/ (or $TIMELOG_LOG_DIR).
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	closeOnce sync.Once
}

var (
	// Global run ID for the current process
	runID     string
	runIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir string

	// initOnce ensures directory initialization happens once
	initOnce sync.Once

	// initErr stores any error from directory initialization
	initErr error

	levelMu  sync.RWMutex
	minLevel = LevelDebug
	mirror   io.Writer
)

func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

func initLogDirectory() error {
	initOnce.Do(func() {
		if logDir == "" {
			logDir = os.Getenv(LogDirEnv)
		}
		if logDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				initErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			logDir = filepath.Join(homeDir, ".timelog", "logs")
		}
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
	})
	return initErr
}

// NewLogger creates a logger for a component. It writes to
// <log dir>/<run-id>-timelog.log.
//
// If the log file cannot be opened, a logger that writes to stderr is
// returned together with the error so callers can warn about it.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-timelog.log", id))

	// Multiple components append to the same file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(component, fmt.Errorf("failed to open log file: %w", err)), err
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		logger:    log.New(file, "", 0),
		logPath:   logPath,
	}, nil
}

func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags|log.Lshortfile)
	logger.Printf("WARNING: Failed to initialize file logging: %v", err)
	logger.Printf("Falling back to stderr logging")

	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    logger,
	}
}

// SetLevel sets the minimum level for every logger in the process.
func SetLevel(level Level) {
	levelMu.Lock()
	defer levelMu.Unlock()
	minLevel = level
}

// SetMirror copies every written entry to w as well (nil disables).
// The server uses it to echo request logs on stderr.
func SetMirror(w io.Writer) {
	levelMu.Lock()
	defer levelMu.Unlock()
	mirror = w
}

// ParseLevel maps a verbosity name to a Level. Unknown names yield LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "verbose":
		return LevelDebug
	case "warn", "warning", "quiet":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) formatLogEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) write(level Level, label, format string, v ...interface{}) {
	levelMu.RLock()
	enabled := level >= minLevel
	out := mirror
	levelMu.RUnlock()
	if !enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.formatLogEntry(label, fmt.Sprintf(format, v...))
	l.logger.Println(entry)
	if out != nil {
		fmt.Fprintln(out, entry)
	}
}

// Printf logs a formatted message at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.write(LevelInfo, "INFO", format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, "INFO", format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, "WARN", format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, "ERROR", format, v...)
}

// Writer returns an io.Writer that writes to this logger's destination
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// RunID returns the process run ID
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file, empty in fallback mode
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetRunID returns the current global run ID
func GetRunID() string {
	return getRunID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}

// MustNew returns a component logger, falling back to stderr on error.
// Packages use it for their package-level debug loggers.
func MustNew(component string) *Logger {
	l, err := NewLogger(component)
	if err != nil {
		l.Warnf("file logging unavailable: %v", err)
	}
	return l
}
