package types

import "errors"

// Sentinel errors for contract matching operations.
var (
	// ErrUnknownAction indicates a plan references an action with no registered handler.
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnknownNamespace indicates a namespaced literal uses an unsupported namespace.
	ErrUnknownNamespace = errors.New("unknown namespace")

	// ErrUnresolvablePath indicates a path could not be resolved against a value.
	ErrUnresolvablePath = errors.New("unresolvable path")

	// ErrEmptyStack indicates the interpreter value stack had no usable value.
	ErrEmptyStack = errors.New("value stack is empty")

	// ErrTypeMismatch indicates a value of the wrong kind was supplied to an operation.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnsupportedPathShape indicates a resolver does not support the path shape.
	ErrUnsupportedPathShape = errors.New("unsupported path shape")

	// ErrPlanTooDeep indicates evaluation exceeded MaxPlanDepth.
	ErrPlanTooDeep = errors.New("plan exceeds maximum depth")

	// ErrInvalidPath indicates a malformed path expression.
	ErrInvalidPath = errors.New("invalid path expression")

	// ErrInvalidMatcher indicates a malformed matching rule definition.
	ErrInvalidMatcher = errors.New("invalid matching rule")

	// ErrInvalidGenerator indicates a malformed generator definition.
	ErrInvalidGenerator = errors.New("invalid generator")

	// ErrInvalidExpression indicates a date or time expression failed to parse.
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrInvalidArguments indicates an action received the wrong number of arguments.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrMismatch indicates an actual value did not satisfy an expectation.
	ErrMismatch = errors.New("mismatch")

	// ErrInvalidPlan indicates a plan document could not be decoded.
	ErrInvalidPlan = errors.New("invalid plan document")

	// ErrNotFound indicates a stored record does not exist.
	ErrNotFound = errors.New("not found")
)

// EvalError carries the exact message reported on a plan node together with
// the sentinel classifying it.
type EvalError struct {
	Kind error
	Msg  string
}

// NewEvalError builds an EvalError of the given kind.
func NewEvalError(kind error, msg string) *EvalError {
	return &EvalError{Kind: kind, Msg: msg}
}

func (e *EvalError) Error() string { return e.Msg }

func (e *EvalError) Unwrap() error { return e.Kind }
