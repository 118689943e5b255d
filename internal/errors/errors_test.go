package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"
)

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected string
	}{
		{KindIO, "I/O error"},
		{KindPath, "Path error"},
		{KindCommand, "Command error"},
		{KindFFprobeParse, "FFprobe parse error"},
		{KindJSONParse, "JSON parse error"},
		{KindInvalidVideo, "Invalid video"},
		{KindInvalidParameter, "Invalid parameter"},
		{KindExternalService, "External service error"},
		{KindRateLimit, "Rate limit exceeded"},
		{KindNotFound, "Not found"},
		{KindNoFilesFound, "No files found"},
		{KindOperationFailed, "Operation failed"},
		{KindCancelled, "Operation cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("ErrorKind.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCoreErrorError(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &CoreError{
		Kind:       KindIO,
		Message:    "test message",
		Underlying: underlying,
	}

	got := err.Error()
	expected := "I/O error: test message: underlying error"
	if got != expected {
		t.Errorf("CoreError.Error() = %v, want %v", got, expected)
	}

	err2 := &CoreError{
		Kind:    KindInvalidParameter,
		Message: "threshold must be positive",
	}

	got2 := err2.Error()
	expected2 := "Invalid parameter: threshold must be positive"
	if got2 != expected2 {
		t.Errorf("CoreError.Error() = %v, want %v", got2, expected2)
	}
}

func TestCoreErrorUnwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &CoreError{
		Kind:       KindIO,
		Message:    "test",
		Underlying: underlying,
	}

	if err.Unwrap() != underlying {
		t.Error("Unwrap() should return underlying error")
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestCoreErrorIs(t *testing.T) {
	err1 := &CoreError{Kind: KindIO, Message: "test1"}
	err2 := &CoreError{Kind: KindIO, Message: "test2"}
	err3 := &CoreError{Kind: KindNotFound, Message: "test3"}

	if !err1.Is(err2) {
		t.Error("Same kind errors should match")
	}

	if err1.Is(err3) {
		t.Error("Different kind errors should not match")
	}

	wrapped := fmt.Errorf("loading session: %w", err3)
	if !errors.Is(wrapped, &CoreError{Kind: KindNotFound}) {
		t.Error("errors.Is should match by kind through wrapping")
	}
}

func TestCommandError(t *testing.T) {
	startErr := &CommandError{
		Command:    "ffmpeg",
		Kind:       CommandStart,
		Underlying: errors.New("not found"),
	}
	if got := startErr.Error(); got != "failed to execute ffmpeg: not found" {
		t.Errorf("CommandStart error = %v", got)
	}

	waitErr := &CommandError{
		Command:    "ffprobe",
		Kind:       CommandWait,
		Underlying: errors.New("signal"),
	}
	if got := waitErr.Error(); got != "failed to wait for ffprobe: signal" {
		t.Errorf("CommandWait error = %v", got)
	}

	failedErr := &CommandError{
		Command:  "ffprobe",
		Kind:     CommandFailed,
		ExitCode: 1,
		Stderr:   "file not found",
	}
	expected := "command ffprobe failed with exit code 1: file not found"
	if got := failedErr.Error(); got != expected {
		t.Errorf("CommandFailed error = %v, want %v", got, expected)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *CoreError
		want ErrorKind
	}{
		{"NewIOError", NewIOError("disk full", errors.New("no space")), KindIO},
		{"NewPathError", NewPathError("invalid path"), KindPath},
		{"NewInvalidVideoError", NewInvalidVideoError("cannot decode", nil), KindInvalidVideo},
		{"NewInvalidParameterError", NewInvalidParameterError("max_frames", nil), KindInvalidParameter},
		{"NewExternalServiceError", NewExternalServiceError("judge", errors.New("timeout")), KindExternalService},
		{"NewRateLimitError", NewRateLimitError("judge"), KindRateLimit},
		{"NewNotFoundError", NewNotFoundError("session"), KindNotFound},
		{"NewNoFilesFoundError", NewNoFilesFoundError("/test/dir"), KindNoFilesFound},
		{"NewCancelledError", NewCancelledError(), KindCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.err.Kind)
			}
		})
	}
}

func TestKindHelpers(t *testing.T) {
	if !IsInvalidVideo(NewInvalidVideoError("x", nil)) {
		t.Error("IsInvalidVideo should match")
	}
	if !IsInvalidParameter(fmt.Errorf("wrap: %w", NewInvalidParameterError("x", nil))) {
		t.Error("IsInvalidParameter should match through wrapping")
	}
	if !IsNotFound(NewNotFoundError("x")) {
		t.Error("IsNotFound should match")
	}
	if !IsRateLimit(NewRateLimitError("x")) {
		t.Error("IsRateLimit should match")
	}
	if IsRateLimit(NewExternalServiceError("x", nil)) {
		t.Error("IsRateLimit should not match an external service error")
	}
	if IsKind(errors.New("plain error"), KindIO) {
		t.Error("IsKind should return false for non-CoreError")
	}
	if !IsCancelled(NewCancelledError()) {
		t.Error("IsCancelled should return true for cancelled error")
	}
	if !IsNoFilesFound(NewNoFilesFoundError("/test")) {
		t.Error("IsNoFilesFound should return true for no-files-found error")
	}
}

func TestWrapExecError(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	exitErr := exec.Command(sh, "-c", "exit 3").Run()

	tests := []struct {
		name     string
		err      error
		wantKind CommandErrorKind
		wantCode int
	}{
		{"non-zero exit", exitErr, CommandFailed, 3},
		{"not started", errors.New("executable not found"), CommandStart, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapExecError("ffmpeg", tt.err, "moov atom not found")
			if got.Kind != KindCommand {
				t.Fatalf("Kind = %v, want %v", got.Kind, KindCommand)
			}
			var cmdErr *CommandError
			if !errors.As(got, &cmdErr) {
				t.Fatalf("%v does not wrap a CommandError", got)
			}
			if cmdErr.Kind != tt.wantKind || cmdErr.ExitCode != tt.wantCode {
				t.Errorf("command error = %+v, want kind %v exit %d", cmdErr, tt.wantKind, tt.wantCode)
			}
			if tt.wantKind == CommandFailed && cmdErr.Stderr != "moov atom not found" {
				t.Errorf("Stderr = %q", cmdErr.Stderr)
			}
		})
	}
}
