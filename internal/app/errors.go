package app

import (
	"errors"
	"fmt"
	"strings"

	"rental_expiry_monitor/internal/domain/record"
)

// Application-level errors returned by the monitor service.
var (
	ErrColumnUnresolved = errors.New("required column could not be resolved")
	ErrColumnConflict   = errors.New("two required fields resolved to the same column")
	ErrAlreadyRanToday  = errors.New("a successful decrement run is already journaled for today")
	ErrTableNotSaved    = errors.New("reconciled table was not saved")
	ErrJournalDisabled  = errors.New("run journal is disabled")
)

// UnresolvedColumnError lists the required fields no header matched.
type UnresolvedColumnError struct {
	Fields  []record.Field
	Headers []string
}

func (e *UnresolvedColumnError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, string(f))
	}
	return fmt.Sprintf("%v: %s (headers: %s)", ErrColumnUnresolved, strings.Join(names, ", "), strings.Join(e.Headers, " | "))
}

func (e *UnresolvedColumnError) Unwrap() error {
	return ErrColumnUnresolved
}
