package shared

import (
	"fmt"
)

// ErrorCode is the stable, machine-readable identifier surfaced to API callers.
type ErrorCode string

const (
	CodeInvalidState         ErrorCode = "INVALID_STATE"
	CodeForbidden            ErrorCode = "FORBIDDEN"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeValidation           ErrorCode = "VALIDATION_FAILED"
	CodeStorage              ErrorCode = "STORAGE_ERROR"
	CodeNotificationDispatch ErrorCode = "NOTIFICATION_DISPATCH_FAILED"
)

// CodedError is implemented by every workflow error.
type CodedError interface {
	error
	Code() ErrorCode
}

// ErrInvalidState means the requested transition is not legal from the deed's current status.
type ErrInvalidState struct {
	DeedID  int64
	Current string
	Action  string
	Reason  string
}

func (e ErrInvalidState) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("deed %d cannot %s: %s", e.DeedID, e.Action, e.Reason)
	}
	return fmt.Sprintf("deed %d cannot %s while in status %s", e.DeedID, e.Action, e.Current)
}

func (e ErrInvalidState) Code() ErrorCode { return CodeInvalidState }

// Is matches any ErrInvalidState when the target carries no deed id.
func (e ErrInvalidState) Is(target error) bool {
	t, ok := target.(ErrInvalidState)
	if !ok {
		return false
	}
	return t.DeedID == 0 || t.DeedID == e.DeedID
}

// ErrAuthorization means the guard denied the action for this actor.
type ErrAuthorization struct {
	Actor  string
	Role   string
	Action string
	DeedID int64
}

func (e ErrAuthorization) Error() string {
	return fmt.Sprintf("%s %q is not permitted to %s on deed %d", e.Role, e.Actor, e.Action, e.DeedID)
}

func (e ErrAuthorization) Code() ErrorCode { return CodeForbidden }

func (e ErrAuthorization) Is(target error) bool {
	t, ok := target.(ErrAuthorization)
	if !ok {
		return false
	}
	return t.DeedID == 0 || t.DeedID == e.DeedID
}

// ErrNotFound covers a missing deed, borrower, cooperative signer or cooperative.
type ErrNotFound struct {
	Resource string
	Key      string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func (e ErrNotFound) Code() ErrorCode { return CodeNotFound }

// Is matches on resource and key; empty target fields act as wildcards.
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	if t.Resource != "" && t.Resource != e.Resource {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}

// ErrValidation rejects malformed input before any state is touched.
type ErrValidation struct {
	Field   string
	Message string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e ErrValidation) Code() ErrorCode { return CodeValidation }

// ErrStorage wraps a failure of the underlying store, lock contention included.
type ErrStorage struct {
	Op             string
	LockContention bool
	Err            error
}

func (e ErrStorage) Error() string {
	if e.LockContention {
		return fmt.Sprintf("storage lock contention during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e ErrStorage) Unwrap() error { return e.Err }

func (e ErrStorage) Code() ErrorCode { return CodeStorage }

func (e ErrStorage) Is(target error) bool {
	_, ok := target.(ErrStorage)
	return ok
}

// ErrNotificationDispatch records a notification that could not be handed to
// or delivered by the transport. It never fails a transition.
type ErrNotificationDispatch struct {
	RequestID string
	Recipient string
	Reason    string
}

func (e ErrNotificationDispatch) Error() string {
	return fmt.Sprintf("notification %s to %s failed: %s", e.RequestID, e.Recipient, e.Reason)
}

func (e ErrNotificationDispatch) Code() ErrorCode { return CodeNotificationDispatch }
