package util

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("decode failed"), false},
		{"eio errno", syscall.EIO, true},
		{"eagain errno", syscall.EAGAIN, true},
		{"wrapped path error", &os.PathError{Op: "read", Path: "/p", Err: syscall.ETIMEDOUT}, true},
		{"timeout message", errors.New("operation timed out"), true},
		{"too many open files", errors.New("open /p: too many open files"), true},
		{"permission denied", &os.PathError{Op: "open", Path: "/p", Err: syscall.EACCES}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.retryable {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tc.err, got, tc.retryable)
			}
		})
	}
}

func TestRetryWithBackoffSucceedsAfterTransientFailure(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	attempts := 0
	result, err := RetryWithBackoff(cfg, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", syscall.EIO
		}
		return "pixels", nil
	}, "test-op")

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result != "pixels" {
		t.Errorf("result = %q, want pixels", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoffGivesUpOnPermanentError(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 5, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	permanent := errors.New("corrupt header")
	attempts := 0
	_, err := RetryWithBackoff(cfg, func() (int, error) {
		attempts++
		return 0, permanent
	}, "test-op")

	if !errors.Is(err, permanent) {
		t.Errorf("expected the permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent errors)", attempts)
	}
}

func TestRetryWithBackoffExhaustsAttempts(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	attempts := 0
	_, err := RetryWithBackoff(cfg, func() (int, error) {
		attempts++
		return 0, fmt.Errorf("read /p: %w", syscall.EIO)
	}, "test-op")

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, syscall.EIO) {
		t.Errorf("final error should wrap the cause, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoffNilConfigUsesDefaults(t *testing.T) {
	result, err := RetryWithBackoff(nil, func() (int, error) {
		return 42, nil
	}, "test-op")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
}
