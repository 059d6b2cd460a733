package lsp

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	inner := errors.New("connection refused")
	err := &Error{Kind: ErrorServerStartup, Message: "starting gopls", Err: inner}

	want := "server startup failed: starting gopls: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Error("Unwrap chain lost the inner error")
	}

	bare := &Error{Kind: ErrorConfiguration, Message: "bad marker"}
	if got := bare.Error(); got != "configuration error: bad marker" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", detectionError("walking root", nil))
	if kind, ok := ErrorKindOf(err); !ok || kind != ErrorProjectDetection {
		t.Errorf("ErrorKindOf = %v, %v", kind, ok)
	}
	if _, ok := ErrorKindOf(errors.New("foreign")); ok {
		t.Error("foreign error should have no kind")
	}
}
