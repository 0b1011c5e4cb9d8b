// Package engine implements the typing test session: comparison, countdown,
// metrics and the session state machine.
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is the kind of every rejected input event.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidConfig is the kind of every rejected session configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

var (
	// ErrBulkInput reports a paste-equivalent insert.
	ErrBulkInput = fmt.Errorf("%w: pasting is not allowed", ErrInvalidInput)
	// ErrEmptyReference reports a test without content.
	ErrEmptyReference = fmt.Errorf("%w: reference text is empty", ErrInvalidConfig)
	// ErrInvalidDuration reports a non-positive test duration.
	ErrInvalidDuration = fmt.Errorf("%w: duration must be > 0", ErrInvalidConfig)
)
