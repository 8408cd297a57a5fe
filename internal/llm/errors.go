package llm

import (
	"errors"
	"fmt"
)

// GatewayError agrupa fallas de red, respuestas no-2xx y payloads invalidos del backend.
type GatewayError struct {
	Provider   string
	Model      string
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status=%d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsGatewayError reporta si err (o alguno de sus wrapped) es un *GatewayError.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
