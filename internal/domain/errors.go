package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("invalid message role")
	ErrEmptyMessage    = errors.New("empty message")
)

// StorageError es fatal: el pipeline nunca lo descarta.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RetrievalError se recupera localmente (resultados vacios).
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// RefinementError se recupera localmente (prompt original).
type RefinementError struct {
	Err error
}

func (e *RefinementError) Error() string {
	return fmt.Sprintf("refinement: %v", e.Err)
}

func (e *RefinementError) Unwrap() error { return e.Err }

// ValidationError se recupera localmente (respuesta valida) pero queda en issues.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsStorageError indica si err contiene un StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
