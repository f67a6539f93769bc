package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"time"
)

type LogLevel string

const (
	DebugLevel LogLevel = "DEBUG"
	InfoLevel  LogLevel = "INFO"
	WarnLevel  LogLevel = "WARN"
	ErrorLevel LogLevel = "ERROR"
)

// LogEntry describes the structure of a log message
type LogEntry struct {
	Time    string            `json:"time"`
	Level   LogLevel          `json:"level"`
	Module  string            `json:"module,omitempty"`
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Logger is a centralized structured logger
type Logger struct {
	out *log.Logger
}

// New creates a new Logger writing to stdout
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Logger writing JSON lines to w
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		out: log.New(w, "", 0),
	}
}

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex = regexp.MustCompile(`eyJ[^\s]+`)
	urlRegex   = regexp.MustCompile(`https?://[^\s"]+`)
)

// Anonymize replaces sensitive information in logs (emails, tokens, avatar URLs)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = urlRegex.ReplaceAllString(s, "[REDACTED_URL]")
	return s
}

// internal log function; kv is a flat list of key/value pairs
func (l *Logger) log(module string, level LogLevel, msg string, err error, kv []any) {
	entry := LogEntry{
		Time:    time.Now().Format(time.RFC3339),
		Level:   level,
		Module:  module,
		Message: Anonymize(msg),
	}
	if err != nil {
		entry.Error = Anonymize(err.Error())
	}
	if len(kv) > 0 {
		entry.Fields = make(map[string]string, len(kv)/2+1)
		for i := 0; i < len(kv); i += 2 {
			key := fmt.Sprint(kv[i])
			if i+1 == len(kv) {
				entry.Fields[key] = "(MISSING)"
				break
			}
			entry.Fields[key] = Anonymize(fmt.Sprint(kv[i+1]))
		}
	}
	data, _ := json.Marshal(entry)
	l.out.Println(string(data))
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string, kv ...any) {
	l.log(module, InfoLevel, msg, nil, kv)
}

func (l *Logger) Debug(module, msg string, kv ...any) {
	l.log(module, DebugLevel, msg, nil, kv)
}

func (l *Logger) Warn(module, msg string, kv ...any) {
	l.log(module, WarnLevel, msg, nil, kv)
}

func (l *Logger) Error(module, msg string, err error, kv ...any) {
	l.log(module, ErrorLevel, msg, err, kv)
}
