package store

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is at the HTTP boundary.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// NotFoundError reports a missing session, step or agent.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Message is the client-facing text, e.g. "Session not found".
func (e *NotFoundError) Message() string {
	return capitalize(e.Resource) + " not found"
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a duplicate id or a write against a row that has
// already left the running state.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q %s", e.Resource, e.ID, e.Reason)
}

// Message is the client-facing text, e.g. "Session already exists".
func (e *ConflictError) Message() string {
	return capitalize(e.Resource) + " " + e.Reason
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// PublicMessage returns the client-facing text for err: the short message of
// a NotFoundError or ConflictError, otherwise err.Error().
func PublicMessage(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Message()
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Message()
	}
	return err.Error()
}
