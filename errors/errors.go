package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrInvalidToken = fmt.Errorf("invalid or expired token")

	ErrEmptyBody     = fmt.Errorf("message body is empty")
	ErrAmbiguousBody = fmt.Errorf("message carries both text and an image")
	ErrBadImageRef   = fmt.Errorf("image reference is malformed")

	ErrUnknownEvent   = fmt.Errorf("unknown wire event")
	ErrInvalidPayload = fmt.Errorf("invalid event payload")
	ErrStoreAppend    = fmt.Errorf("conversation store append failed")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// Wire error codes surfaced to the sending client as a failure notice.
const (
	CodeAuth       = "auth"
	CodeValidation = "validation"
	CodeStore      = "store"
	CodeInternal   = "internal"
)

// IsValidation reports whether err belongs to the validation family:
// the send is dropped before any store call and the sender is notified.
func IsValidation(err error) bool {
	return stderrors.Is(err, ErrEmptyBody) ||
		stderrors.Is(err, ErrAmbiguousBody) ||
		stderrors.Is(err, ErrBadImageRef) ||
		stderrors.Is(err, ErrInvalidPayload) ||
		stderrors.Is(err, ErrUnknownEvent)
}

// WireCode maps an internal error to the code carried by the outbound
// error event. Unrecognized errors degrade to CodeInternal.
func WireCode(err error) string {
	switch {
	case stderrors.Is(err, ErrInvalidToken):
		return CodeAuth
	case IsValidation(err):
		return CodeValidation
	case stderrors.Is(err, ErrStoreAppend):
		return CodeStore
	default:
		return CodeInternal
	}
}
