package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPermissionDeny = errors.New("permission denied")

	// ErrDomain is matched by every catalog and backend error so callers can
	// tell domain failures apart from unexpected faults.
	ErrDomain        = errors.New("self-service error")
	ErrAlreadyExists = errors.New("already exists")
)

type AppAlreadyExistsError struct {
	AppName string
}

func (e *AppAlreadyExistsError) Error() string {
	return fmt.Sprintf("attempting to add an application that already exists app_name=[%s]", e.AppName)
}

func (e *AppAlreadyExistsError) Is(target error) bool {
	return target == ErrDomain || target == ErrAlreadyExists
}

type EventParentNotFoundError struct {
	AppName   string
	EventName string
}

func (e *EventParentNotFoundError) Error() string {
	return fmt.Sprintf("attempt to add event to a parent application that does not exist app_name=[%s] event_name=[%s]", e.AppName, e.EventName)
}

func (e *EventParentNotFoundError) Is(target error) bool {
	return target == ErrDomain || target == ErrNotFound
}

type EventAlreadyExistsError struct {
	AppName   string
	EventName string
}

func (e *EventAlreadyExistsError) Error() string {
	return fmt.Sprintf("attempt to add event that already exists app_name=[%s] event_name=[%s]", e.AppName, e.EventName)
}

func (e *EventAlreadyExistsError) Is(target error) bool {
	return target == ErrDomain || target == ErrAlreadyExists
}

// InvalidDataInstanceTypeError means a caller handed the cache something
// other than an Application or an Event. It indicates a programming error.
type InvalidDataInstanceTypeError struct {
	Got string
}

func (e *InvalidDataInstanceTypeError) Error() string {
	return "attempt to add an unexpected type, expects Application or Event but received " + e.Got
}

func (e *InvalidDataInstanceTypeError) Is(target error) bool {
	return target == ErrDomain
}

// APIError is a failure reported by the event-collector backend.
type APIError struct {
	Detail string
}

func (e *APIError) Error() string {
	return "event collector: " + e.Detail
}

func (e *APIError) Is(target error) bool {
	return target == ErrDomain
}

// SchemaEvolutionError is a schema registration failure with per-field detail.
type SchemaEvolutionError struct {
	Detail      string
	FieldErrors []string
}

func (e *SchemaEvolutionError) Error() string {
	return fmt.Sprintf("%s: errors: %s", e.Detail, strings.Join(e.FieldErrors, ", "))
}

func (e *SchemaEvolutionError) Is(target error) bool {
	return target == ErrDomain
}
