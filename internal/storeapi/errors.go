package storeapi

import (
	"fmt"
)

// NetworkError is returned when the request could not be completed at the
// transport level (DNS, connection, timeout, cancelled context).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError is returned when a 2xx response body does not have the
// expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ApplicationError is a non-2xx response. Code and Message come from the
// backend error body when it carried one.
type ApplicationError struct {
	Op      string
	Status  int
	Code    int
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}
