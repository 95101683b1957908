package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.New()

func init() {
	logger.Out = os.Stdout
	env := os.Getenv("ENV")
	// LOG_TO_FILE=true forces file logging, stdout otherwise (systemd/docker).
	if os.Getenv("LOG_TO_FILE") == "true" {
		if f, err := openLogFile(env); err != nil {
			log.Warnf("Failed to open log file: %v, falling back to stdout", err)
		} else {
			logger.Out = f
		}
	}

	logger.Formatter = &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
	level := log.DebugLevel
	if env == "stage" || env == "prod" {
		level = log.InfoLevel
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := log.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	logger.SetLevel(level)
}

func openLogFile(env string) (*os.File, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	logsDir := filepath.Join(cwd, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, err
	}
	filePath := filepath.Join(logsDir, fmt.Sprintf("%s%s.log", time.Now().Format("2006-01-02"), env))
	return os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// SetOutput redirects the logger, used by tests and the CLI.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func GetLogger() *log.Entry {
	return withCaller(2)
}

// Security tags an entry as a security event (state mismatch, replay, undecryptable secrets).
func Security() *log.Entry {
	return withCaller(2).WithField("security_event", true)
}

func withCaller(skip int) *log.Entry {
	function, file, line, _ := runtime.Caller(skip)
	name := ""
	if fn := runtime.FuncForPC(function); fn != nil {
		name = fn.Name()
	}
	return logger.WithFields(log.Fields{
		"requestId": time.Now().UnixNano() / int64(time.Millisecond),
		"function":  name,
		"file":      file,
		"line":      line,
	})
}
