package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	mu      sync.Mutex
	logFile *os.File
	debug   atomic.Bool
)

func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// InitFileOnly routes log output to the log file alone, for interactive
// sessions that own the terminal.
func InitFileOnly(logPath string) error {
	if err := Init(logPath); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(logFile)
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// SetDebug toggles Debugf output.
func SetDebug(enabled bool) { debug.Store(enabled) }

// DebugEnabled reports whether Debugf output is enabled.
func DebugEnabled() bool { return debug.Load() }

func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

func Debugf(format string, args ...any) {
	if !debug.Load() {
		return
	}
	log.Println("[DEBUG] " + fmt.Sprintf(format, args...))
}

// LogStage records one pipeline stage summary.
func LogStage(runID, stage string, elapsed time.Duration, summary string, err error) {
	log.Println(buildStageMessage(runID, stage, elapsed, summary, err))
}

func LogRequest(direction, endpoint, model string, payload any) {
	msg := buildRequestMessage(direction, endpoint, model, payload)
	log.Println(msg)
}

func buildStageMessage(runID, stage string, elapsed time.Duration, summary string, err error) string {
	parts := []string{fmt.Sprintf("[%s]", strings.ToUpper(strings.TrimSpace(stage)))}
	if runID = strings.TrimSpace(runID); runID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", runID))
	}
	parts = append(parts, fmt.Sprintf("elapsed=%s", elapsed.Truncate(time.Microsecond)))
	parts = append(parts, fmt.Sprintf("out=%s", formatPayload(summary)))
	if err != nil {
		parts = append(parts, fmt.Sprintf("err=%q", err.Error()))
	}
	return strings.Join(parts, " ")
}

func buildRequestMessage(direction, endpoint, model string, payload any) string {
	dir := strings.TrimSpace(direction)
	if dir != "" {
		dir = strings.ToUpper(dir)
	}
	endpointValue := strings.TrimSpace(endpoint)
	if endpointValue == "" {
		endpointValue = "unknown"
	}
	modelValue := strings.TrimSpace(model)
	if modelValue == "" {
		modelValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("endpoint=%s", endpointValue))
	parts = append(parts, fmt.Sprintf("model=%s", modelValue))
	parts = append(parts, fmt.Sprintf("payload=%s", formatPayload(payload)))
	return strings.Join(parts, " ")
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
