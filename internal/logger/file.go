package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrison/forge/internal/executor"
	"github.com/harrison/forge/internal/filelock"
	"github.com/harrison/forge/internal/taskgraph"
)

// FileLogger logs run events to files in .forge/logs/. It creates
// timestamped per-run log files, per-task detailed logs, and maintains a
// latest.log symlink pointing to the most recent run. It is thread-safe and
// supports log level filtering.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	tasksDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .forge/logs/ with default
// log level "info".
func NewFileLogger() (*FileLogger, error) {
	logDir := filepath.Join(".forge", "logs")
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDir creates a FileLogger with a custom log directory.
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log
// directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tasks directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", timestamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		tasksDir: tasksDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== forge run log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(normalizeLogLevel(level)) {
		return
	}
	formatted := fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message)
	fl.writeRunLog(formatted)
}

// LayerStart logs the start of a DAG layer at INFO level.
func (fl *FileLogger) LayerStart(layer int, taskIDs []taskgraph.TaskID) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Starting layer %d: %d task(s)\n",
		time.Now().Format("15:04:05"), layer, len(taskIDs)))
}

// LayerComplete writes a per-task detailed log for every result in the
// layer and an INFO-level summary line to the run log.
func (fl *FileLogger) LayerComplete(layer int, results []executor.Result) {
	if fl.shouldLog("info") {
		var succeeded, failed int
		for _, r := range results {
			if r.Status == executor.StatusCompleted {
				succeeded++
			} else {
				failed++
			}
		}
		fl.writeRunLog(fmt.Sprintf("[%s] Layer %d complete: %d succeeded, %d failed\n",
			time.Now().Format("15:04:05"), layer, succeeded, failed))
	}

	for _, r := range results {
		if err := fl.writeTaskLog(r); err != nil {
			fl.LogWarn(fmt.Sprintf("failed to write task log for %s: %v", r.TaskID, err))
		}
	}
}

// writeTaskLog atomically writes one task's full output to
// tasks/<task-id>.log, so a concurrent reader (e.g. something tailing
// .forge/logs/tasks/ mid-run) never sees a partial file.
func (fl *FileLogger) writeTaskLog(result executor.Result) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	safeName := taskLogFileName(result.TaskID)
	taskLogPath := filepath.Join(fl.tasksDir, safeName)

	duration := result.EndTime.Sub(result.StartTime)
	content := fmt.Sprintf("=== %s ===\n", result.TaskID)
	content += fmt.Sprintf("Status: %s\n", result.Status)
	content += fmt.Sprintf("Exit code: %d\n", result.ExitCode)
	content += fmt.Sprintf("Duration: %.1fs\n\n", duration.Seconds())

	if result.Stdout != "" {
		content += fmt.Sprintf("Stdout:\n%s\n\n", result.Stdout)
	}
	if result.Stderr != "" {
		content += fmt.Sprintf("Stderr:\n%s\n\n", result.Stderr)
	}
	if result.Error != "" {
		content += fmt.Sprintf("Error:\n%s\n\n", result.Error)
	}
	content += fmt.Sprintf("Completed at: %s\n", result.EndTime.Format(time.RFC3339))

	if err := filelock.AtomicWrite(taskLogPath, []byte(content)); err != nil {
		return fmt.Errorf("failed to write task log: %w", err)
	}
	return nil
}

func taskLogFileName(id taskgraph.TaskID) string {
	name := string(id)
	replacer := func(r rune) rune {
		switch r {
		case ':', '/', '\\':
			return '-'
		default:
			return r
		}
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		out = append(out, replacer(r))
	}
	return "task-" + string(out) + ".log"
}

// TaskOutputLine implements executor.Logger by writing directly to the run
// log; verbose filtering is the caller's responsibility.
func (fl *FileLogger) TaskOutputLine(id taskgraph.TaskID, line string) {
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), id, line))
}

// Summary writes the final run summary at INFO level.
func (fl *FileLogger) Summary(runID string, total, success, failed int, duration time.Duration) {
	if !fl.shouldLog("info") {
		return
	}
	ts := time.Now().Format("15:04:05")
	status := "SUCCESS"
	if failed > 0 {
		if success == 0 {
			status = "FAILED"
		} else {
			status = "PARTIAL"
		}
	}
	message := fmt.Sprintf(
		"\n[%s] === RUN SUMMARY (%s) ===\n"+
			"[%s] Total tasks: %d\n"+
			"[%s] Succeeded:   %d\n"+
			"[%s] Failed:      %d\n"+
			"[%s] Duration:    %.1fs\n"+
			"[%s] Status:      %s\n"+
			"[%s] Completed at: %s\n",
		ts, runID, ts, total, ts, success, ts, failed, ts, duration.Seconds(), ts, status, ts, time.Now().Format(time.RFC3339),
	)
	fl.writeRunLog(message)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
