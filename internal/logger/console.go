// Package logger provides logging implementations for forge's task execution.
//
// The console logger reports layer-by-layer progress and per-task output at
// configurable verbosity, with automatic color detection for TTY output.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/forge/internal/executor"
	"github.com/harrison/forge/internal/taskgraph"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread
// safety. Log messages and task result lines are prefixed with [HH:MM:SS]
// timestamps; mirrored output lines and the run summary are not. Color output is
// automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	verbose     bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded. logLevel
// determines the minimum log level for messages to be output (trace, debug,
// info, warn, error; case-insensitive, defaults to info if invalid).
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
	if w == os.Stderr {
		return isatty.IsTerminal(os.Stderr.Fd())
	}
	return false
}

// SetVerbose sets whether task output lines are mirrored to the console as
// they arrive (executor.Logger.TaskOutputLine). When it is off, task output
// is not printed; only each task's result line is.
func (cl *ConsoleLogger) SetVerbose(verbose bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.verbose = verbose
}

// IsVerbose returns whether verbose mode is enabled.
func (cl *ConsoleLogger) IsVerbose() bool {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	return cl.verbose
}

func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if validLevels[normalized] {
		return normalized
	}
	return "info"
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }
func (cl *ConsoleLogger) LogInfo(message string)  { cl.logWithLevel("INFO", message) }
func (cl *ConsoleLogger) LogWarn(message string)  { cl.logWithLevel("WARN", message) }
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.LogInfo(fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.LogWarn(fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}
	cl.writer.Write([]byte(formatted))
}

func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string
	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}
	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LayerStart logs the start of a DAG layer.
func (cl *ConsoleLogger) LayerStart(layer int, taskIDs []taskgraph.TaskID) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}
	names := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		names[i] = string(id)
	}
	cl.LogInfo(fmt.Sprintf("Layer %d: %s", layer, strings.Join(names, ", ")))
}

// LayerComplete logs the outcome of every task in a finished layer.
func (cl *ConsoleLogger) LayerComplete(layer int, results []executor.Result) {
	if cl.writer == nil {
		return
	}
	for _, r := range results {
		cl.TaskResult(r)
	}
}

// TaskResult logs one task's terminal status, colorized by outcome.
func (cl *ConsoleLogger) TaskResult(r executor.Result) {
	if cl.writer == nil {
		return
	}
	duration := r.EndTime.Sub(r.StartTime).Round(time.Millisecond)

	var label string
	switch r.Status {
	case executor.StatusCompleted:
		label = "PASS"
		if cl.colorOutput {
			label = color.New(color.FgGreen).Sprint(label)
		}
	default:
		label = "FAIL"
		if cl.colorOutput {
			label = color.New(color.FgRed).Sprint(label)
		}
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "[%s] %s %s (%s)", timestamp(), label, r.TaskID, duration)
	if r.Status != executor.StatusCompleted && r.Error != "" {
		fmt.Fprintf(cl.writer, " - %s", r.Error)
	}
	fmt.Fprintln(cl.writer)
}

// TaskOutputLine implements executor.Logger: mirrors a running command's
// output line-by-line when verbose mode is enabled.
func (cl *ConsoleLogger) TaskOutputLine(id taskgraph.TaskID, line string) {
	if !cl.IsVerbose() || cl.writer == nil {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "  [%s] %s\n", id, line)
}

// Summary prints the final run summary.
func (cl *ConsoleLogger) Summary(runID string, total, success, failed int, duration time.Duration) {
	if cl.writer == nil {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "\nRun %s summary:\n", runID)
	fmt.Fprintf(cl.writer, "  Total tasks: %d\n", total)
	fmt.Fprintf(cl.writer, "  Succeeded:   %d\n", success)
	fmt.Fprintf(cl.writer, "  Failed:      %d\n", failed)
	fmt.Fprintf(cl.writer, "  Duration:    %s\n", duration.Round(time.Millisecond))
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}
