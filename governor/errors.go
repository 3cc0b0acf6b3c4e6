package governor

import "errors"

var (
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("governor: invalid config")

	// ErrNilInvoker indicates New was called without a downstream invoker.
	ErrNilInvoker = errors.New("governor: invoker is nil")

	// ErrInvalidRequest indicates a request without a method.
	ErrInvalidRequest = errors.New("governor: invalid request")

	// ErrNotStarted is returned by AdmitAndRun before Start or after Shutdown.
	ErrNotStarted = errors.New("governor: not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("governor: already started")
)
