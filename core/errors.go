package core

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable signals a transport or provider failure of the model.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelMalformedOutput signals model output that cannot form a valid assistant Message.
	ErrModelMalformedOutput = errors.New("model output malformed")

	// ErrUnknownTool is reported (as a tool result) when a requested tool is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is reported (as a tool result) when arguments violate the tool schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrToolExecution is reported (as a tool result) when a tool fails at runtime.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrTurnBudgetExceeded marks a turn truncated at the configured round limit.
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")
	// ErrTurnCancelled is returned when a turn is cancelled between rounds.
	ErrTurnCancelled = errors.New("turn cancelled")
	// ErrTurnInProgress rejects a Submit issued while another turn runs on the same conversation.
	ErrTurnInProgress = errors.New("turn already in progress")

	// ErrInvalidMessage rejects an append that would break transcript invariants.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrSessionNotFound is returned by stores for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
)

// TurnFailedError terminates a turn because the model could not produce a message.
// It matches its Cause with errors.Is / errors.As.
type TurnFailedError struct {
	Round int   // 1-based model call that failed
	Cause error // ErrModelUnavailable or ErrModelMalformedOutput (possibly wrapped)
}

// Error implements the error interface.
func (e *TurnFailedError) Error() string {
	return fmt.Sprintf("turn failed in round %d: %v", e.Round, e.Cause)
}

// Unwrap exposes the underlying model error.
func (e *TurnFailedError) Unwrap() error { return e.Cause }

// IsTurnFailed reports whether err is (or wraps) a TurnFailedError.
func IsTurnFailed(err error) bool {
	var tf *TurnFailedError
	return errors.As(err, &tf)
}

func invalidMessagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, fmt.Sprintf(format, args...))
}
