package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Logger emits levelled log lines, plain or JSON, with structured fields.
type Logger struct {
	json bool
	out  io.Writer
	base map[string]any
}

func New(jsonOutput bool) *Logger {
	return NewWriter(jsonOutput, os.Stdout)
}

func NewWriter(jsonOutput bool, out io.Writer) *Logger {
	return &Logger{json: jsonOutput, out: out}
}

// With returns a logger that includes fields on every line it emits.
func (l *Logger) With(fields map[string]any) *Logger {
	merged := make(map[string]any, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{json: l.json, out: l.out, base: merged}
}

func (l *Logger) log(level string, msg string, fields map[string]any) {
	all := make(map[string]any, len(l.base)+len(fields))
	for k, v := range l.base {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	if !l.json {
		if len(all) > 0 {
			b, _ := json.Marshal(all)
			fmt.Fprintf(l.out, "[%s] %s %s\n", level, msg, string(b))
		} else {
			fmt.Fprintf(l.out, "[%s] %s\n", level, msg)
		}
		return
	}
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"msg":   msg,
	}
	for k, v := range all {
		payload[k] = v
	}
	enc := json.NewEncoder(l.out)
	_ = enc.Encode(payload)
}

func (l *Logger) Info(msg string, fields map[string]any)  { l.log("INFO", msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log("WARN", msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log("ERROR", msg, fields) }

// JSONEnabled reports whether this logger is configured to emit JSON output.
func (l *Logger) JSONEnabled() bool { return l.json }
