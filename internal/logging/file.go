package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RunLog is a timestamped log file for one CLI run.
type RunLog struct {
	file     *os.File
	filePath string
}

// Setup opens a timestamped log file in logDir and installs it as the
// global logger. Returns nil if logging is disabled (noLog=true).
func Setup(logDir string, verbose, noLog bool) (*RunLog, error) {
	if noLog {
		SetGlobal(New(Config{Enabled: false}))
		return nil, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("keyframes_run_%s.log", timestamp)
	filePath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}

	Init(LevelFor(verbose), file)

	Info("keyframes starting", "log_file", filePath)
	if verbose {
		Debug("debug level logging enabled")
	}

	return &RunLog{file: file, filePath: filePath}, nil
}

// Close closes the log file and restores the default stderr logger.
func (r *RunLog) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	SetGlobal(New(DefaultConfig()))
	return r.file.Close()
}

// FilePath returns the path to the log file.
func (r *RunLog) FilePath() string {
	if r == nil {
		return ""
	}
	return r.filePath
}

// LevelFor returns the slog level for a verbose flag.
func LevelFor(verbose bool) slog.Level {
	if verbose {
		return LevelDebug
	}
	return LevelInfo
}
