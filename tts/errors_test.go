package tts

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestIsRecoverableError tests recoverability classification.
func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"voice unavailable", ErrVoiceUnavailable, true},
		{"invalid request", ErrInvalidRequest, true},
		{"engine unavailable", ErrEngineUnavailable, false},
		{"disposed", ErrControllerDisposed, false},
		{"wrapped engine unavailable", fmt.Errorf("speak: %w", ErrEngineUnavailable), false},
		{"tts error", NewTTSError(ErrEngineClosed, "espeak", "speak"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverableError(tt.err); got != tt.want {
				t.Errorf("IsRecoverableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestTTSError tests the error wrapper.
func TestTTSError(t *testing.T) {
	err := NewTTSError(ErrVoiceUnavailable, "controller", "speak").
		WithSeverity(SeverityWarning).
		WithContext("gender", "female")

	if !errors.Is(err, ErrVoiceUnavailable) {
		t.Error("errors.Is should find the wrapped sentinel")
	}
	if err.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want warning", err.Severity)
	}
	if err.Context["gender"] != "female" {
		t.Errorf("Context[gender] = %v, want female", err.Context["gender"])
	}
	if !strings.Contains(err.Error(), "no voice available") || !strings.HasPrefix(err.Error(), "controller: speak") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !err.IsRecoverable() {
		t.Error("voice unavailable should be recoverable")
	}
	if err.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}

	var target *TTSError
	if !errors.As(fmt.Errorf("outer: %w", err), &target) {
		t.Error("errors.As should find TTSError")
	}
}

// TestTTSErrorNilError tests the zero error message.
func TestTTSErrorNilError(t *testing.T) {
	err := &TTSError{}
	if err.Error() != "unknown TTS error" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("Unwrap() should be nil")
	}

	bare := &TTSError{Err: ErrInvalidRequest}
	if bare.Error() != ErrInvalidRequest.Error() {
		t.Errorf("Error() without component = %q", bare.Error())
	}
}

// TestErrorSeverityString tests severity names.
func TestErrorSeverityString(t *testing.T) {
	for sev, want := range map[ErrorSeverity]string{
		SeverityInfo:      "info",
		SeverityWarning:   "warning",
		SeverityError:     "error",
		SeverityCritical:  "critical",
		ErrorSeverity(42): "unknown",
	} {
		if got := sev.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", sev, got, want)
		}
	}
}
