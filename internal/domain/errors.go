package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError provides detailed validation error information
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

var (
	// Loader errors
	ErrTransientFetch      = errors.New("remote fetch failed")
	ErrReconciliation      = errors.New("item reconciliation failed")
	ErrAggregateChild      = errors.New("one or more child feeds failed")
	ErrCacheConstruction   = errors.New("content loader construction failed")
	ErrStoreUnavailable    = errors.New("item store unavailable")
	ErrLoaderNotConfigured = errors.New("loader not configured")

	// Feed errors
	ErrFeedNotFound      = errors.New("feed not found")
	ErrFeedAlreadyExists = errors.New("feed already exists")
	ErrInvalidFeed       = errors.New("invalid feed")

	// Item errors
	ErrItemNotFound = errors.New("item not found")

	// Store errors
	ErrStoreClosed = errors.New("store closed")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")

	// General errors
	ErrInternal = errors.New("internal server error")
	ErrNotFound = errors.New("resource not found")
)

// OpError ties a failure to its category and the thing it happened to.
// errors.Is matches both the category sentinel and the wrapped cause.
type OpError struct {
	Kind    error
	Subject string
	Err     error
}

func (e *OpError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Subject, e.Err)
}

func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewFetchError wraps a remote fetch failure of feed
func NewFetchError(feed string, err error) error {
	return &OpError{Kind: ErrTransientFetch, Subject: feed, Err: err}
}

// NewReconciliationError wraps a failed upsert or delete against partition
func NewReconciliationError(partition string, err error) error {
	return &OpError{Kind: ErrReconciliation, Subject: partition, Err: err}
}

// NewCacheConstructionError wraps a failed content loader factory for key
func NewCacheConstructionError(key string, err error) error {
	return &OpError{Kind: ErrCacheConstruction, Subject: key, Err: err}
}

// NewStoreUnavailableError wraps a failed store initialization or handle open
func NewStoreUnavailableError(err error) error {
	return &OpError{Kind: ErrStoreUnavailable, Err: err}
}

// AggregateError collects the failures of a group's children.
// It matches ErrAggregateChild and every individual child error.
type AggregateError struct {
	Op   string
	errs []error
}

// NewAggregateError returns nil when errs is empty
func NewAggregateError(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Op: op, errs: append([]error(nil), errs...)}
}

// Errors returns the individual child failures
func (e *AggregateError) Errors() []error {
	return append([]error(nil), e.errs...)
}

func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: %d child feed(s) failed: %s", e.Op, len(e.errs), strings.Join(msgs, "; "))
}

func (e *AggregateError) Is(target error) bool {
	return target == ErrAggregateChild
}

func (e *AggregateError) Unwrap() []error {
	return e.errs
}
