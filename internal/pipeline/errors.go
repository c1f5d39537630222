package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/reelforge/internal/media"
)

type ErrorType int

const (
	ErrValidation ErrorType = iota
	ErrSafety
	ErrStoryBounds
	ErrProvider
	ErrEncoder
	ErrPersistence
	ErrConfig
	ErrUnknown
)

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "Validation"
	case ErrSafety:
		return "Safety"
	case ErrStoryBounds:
		return "StoryBounds"
	case ErrProvider:
		return "Provider"
	case ErrEncoder:
		return "Encoder"
	case ErrPersistence:
		return "Persistence"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

// Error is a classified pipeline failure. Its text is what a failed job
// reports to callers.
type Error struct {
	Type    ErrorType
	Stage   string
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	e := NewError(errorType, message)
	e.Cause = cause
	return e
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if e.Stage != "" {
		parts = append(parts, "stage: "+e.Stage)
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (e *Error) AtStage(stage string) *Error {
	e.Stage = stage
	return e
}

func IsErrorType(err error, errorType ErrorType) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Type == errorType
	}
	return false
}

// WrapError classifies err. Encoder command failures are always reported
// as ErrEncoder and already classified errors keep their type.
func WrapError(err error, errorType ErrorType, message string) *Error {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr
	}
	var cmdErr *media.CommandError
	if errors.As(err, &cmdErr) {
		errorType = ErrEncoder
	}
	return NewErrorWithCause(errorType, message, err)
}

// SafeExecute runs fn and turns a panic into an ErrUnknown error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
