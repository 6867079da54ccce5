package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pact-foundation/pactengine/internal/types"
)

// ErrInvalidRequest indicates a request that is missing or mixes inputs.
var ErrInvalidRequest = errors.New("invalid request")

// statusFor maps service errors to gRPC status codes.
// Bad input maps to INVALID_ARGUMENT, unknown plans and contracts to
// NOT_FOUND, context timeouts to DEADLINE_EXCEEDED and the rest, database
// errors mostly, to UNAVAILABLE.
func statusFor(err error) error {
	code := codes.Unavailable
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, types.ErrInvalidPlan),
		errors.Is(err, types.ErrInvalidGenerator):
		code = codes.InvalidArgument
	case errors.Is(err, types.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
