package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an update targets a missing collection or record.
var ErrNotFound = errors.New("not found")

// EngineError is returned when the underlying engine rejects or fails a statement.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// SerializationError is returned when a stored or incoming JSON payload
// cannot be encoded or decoded.
type SerializationError struct {
	What string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("store: cannot serialize %s: %v", e.What, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var serr *SerializationError
	if errors.As(err, &serr) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &EngineError{Op: op, Err: err}
}

func collectionNotFound(id int64) error {
	return fmt.Errorf("collection %d: %w", id, ErrNotFound)
}

func recordNotFound(collectionID, recordID int64) error {
	return fmt.Errorf("record %d in collection %d: %w", recordID, collectionID, ErrNotFound)
}
