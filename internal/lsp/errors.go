package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the manager and broadcaster.
var (
	// ErrManagerAlreadyStarted indicates Start was called twice.
	ErrManagerAlreadyStarted = errors.New("manager already started")

	// ErrManagerNotStarted indicates Stop was called before Start.
	ErrManagerNotStarted = errors.New("manager not started")

	// ErrWatcherClosed indicates the marker watcher has been closed.
	ErrWatcherClosed = errors.New("marker watcher closed")
)

// ErrorKind classifies manager errors. The set is closed; every error
// produced by this package carries exactly one kind.
type ErrorKind int

const (
	// ErrorProjectDetection covers failures while analyzing a workspace.
	ErrorProjectDetection ErrorKind = iota
	// ErrorServerStartup covers failures starting a server, including
	// command-channel and timeout failures.
	ErrorServerStartup
	// ErrorServerCommunication covers failures talking to a running server.
	ErrorServerCommunication
	// ErrorConfiguration covers invalid configuration.
	ErrorConfiguration
	// ErrorInternal covers everything that should not happen.
	ErrorInternal
)

// String returns a human-readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorProjectDetection:
		return "project detection failed"
	case ErrorServerStartup:
		return "server startup failed"
	case ErrorServerCommunication:
		return "server communication failed"
	case ErrorConfiguration:
		return "configuration error"
	default:
		return "internal error"
	}
}

// Error is the typed error returned by manager operations. All kinds are
// terminal for the operation that produced them; there is no built-in retry.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKindOf extracts the kind from an error produced by this package.
// The second return is false for foreign errors.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func detectionError(msg string, err error) *Error {
	return &Error{Kind: ErrorProjectDetection, Message: msg, Err: err}
}

func startupError(msg string, err error) *Error {
	return &Error{Kind: ErrorServerStartup, Message: msg, Err: err}
}

func configError(msg string, err error) *Error {
	return &Error{Kind: ErrorConfiguration, Message: msg, Err: err}
}
