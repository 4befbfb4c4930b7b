package errdefs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error taxonomy used across Grove. Callers classify
// errors with the Is* helpers instead of matching strings.
var (
	// ErrValidation indicates a business-rule violation (duplicate habit
	// name, habit-count limit, malformed input). Surfaced synchronously,
	// never queued.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a referenced entity is absent locally.
	ErrNotFound = errors.New("not found")

	// ErrLocalStore indicates a durable-storage failure. Fatal to the
	// current action; the action is considered not to have happened.
	ErrLocalStore = errors.New("local store failure")

	// ErrRemoteTransient indicates a network or timeout failure talking to
	// the remote store. The associated sync operation is retried.
	ErrRemoteTransient = errors.New("remote transient failure")

	// ErrRemoteTerminal indicates a validation or conflict response from
	// the remote store. The operation is abandoned, the local write stands.
	ErrRemoteTerminal = errors.New("remote terminal failure")

	// ErrSyncBacklogged indicates the sync queue is over capacity. Local
	// writes still succeed; the caller is warned.
	ErrSyncBacklogged = errors.New("sync queue backlogged")
)

func IsValidation(err error) bool      { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsLocalStore(err error) bool      { return errors.Is(err, ErrLocalStore) }
func IsRemoteTransient(err error) bool { return errors.Is(err, ErrRemoteTransient) }
func IsRemoteTerminal(err error) bool  { return errors.Is(err, ErrRemoteTerminal) }
func IsSyncBacklogged(err error) bool  { return errors.Is(err, ErrSyncBacklogged) }

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// LocalStore wraps a storage error with ErrLocalStore, preserving the cause.
func LocalStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrLocalStore)
}

// RemoteTransient wraps err with ErrRemoteTransient.
func RemoteTransient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%v: %w", err, ErrRemoteTransient)
}

// RemoteTerminal wraps err with ErrRemoteTerminal.
func RemoteTerminal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%v: %w", err, ErrRemoteTerminal)
}
