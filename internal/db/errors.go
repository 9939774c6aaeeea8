package db

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when an operation names a session id with
// no matching row.
var ErrSessionNotFound = errors.New("session not found")

// ErrForeignKey is returned when a telemetry insert references a session id
// that does not exist. Callers treat it as non-fatal: log and discard.
var ErrForeignKey = errors.New("telemetry references unknown session")

// SchemaError indicates the schema could not be created or migrated at
// startup. It is the one terminal, user-visible failure of the store.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("database schema unavailable: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// mapConstraintError converts SQLite constraint violations into sentinel
// errors the pipeline can branch on. modernc.org/sqlite reports these as
// plain error strings, so the message text is inspected.
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	}
	return err
}
