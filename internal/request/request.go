// Package request defines the requests a load test issues and the managers
// that produce them.
package request

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusClientFailure is the status code of a response synthesised for a
// request that failed before the server answered.
const StatusClientFailure = 599

// Operation is the kind of object-storage call a request performs.
type Operation string

const (
	OpWrite    Operation = "write"
	OpRead     Operation = "read"
	OpDelete   Operation = "delete"
	OpMetadata Operation = "metadata"
)

// Operations lists every operation in reporting order.
var Operations = []Operation{OpWrite, OpRead, OpDelete, OpMetadata}

// Method returns the HTTP method used for the operation.
func (o Operation) Method() string {
	switch o {
	case OpWrite:
		return http.MethodPut
	case OpRead:
		return http.MethodGet
	case OpDelete:
		return http.MethodDelete
	case OpMetadata:
		return http.MethodHead
	default:
		return ""
	}
}

// ParseOperation parses an operation name, case-insensitively.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	if op.Method() == "" {
		return "", fmt.Errorf("unknown operation %q", s)
	}
	return op, nil
}

// Request is a single object-storage call.
type Request struct {
	ID        uuid.UUID
	Operation Operation
	Container string
	Object    string
	// Size is the payload length for writes and the expected length for reads.
	Size    int64
	Headers map[string]string
}

// New creates a request with a fresh ID.
func New(op Operation, container, object string, size int64) *Request {
	return &Request{
		ID:        uuid.New(),
		Operation: op,
		Container: container,
		Object:    object,
		Size:      size,
	}
}

// Method returns the HTTP method of the request's operation.
func (r *Request) Method() string { return r.Operation.Method() }

// Path returns the object path relative to the endpoint.
func (r *Request) Path() string {
	if r.Object == "" {
		return "/" + r.Container
	}
	return "/" + r.Container + "/" + r.Object
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method(), r.Path())
}

// Response is the outcome of a Request.
type Response struct {
	StatusCode int
	// Bytes is the number of payload bytes moved in either direction.
	Bytes     int64
	Started   time.Time
	Latency   time.Duration
	RequestID string
	// Err is set for client failures.
	Err error
}

// Success reports whether the server answered with a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ClientFailure synthesises the response for a request that never got an
// answer from the server.
func ClientFailure(started time.Time, err error) *Response {
	return &Response{
		StatusCode: StatusClientFailure,
		Started:    started,
		Latency:    time.Since(started),
		Err:        err,
	}
}
