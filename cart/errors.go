package cart

import "fmt"

// StatusCode represents the category of a rejected cart command.
type StatusCode int

const (
	StatusInvalidArgument StatusCode = iota
	StatusFailedPrecondition
)

// Error message constants for the cart domain.
const (
	ErrMsgProductIDRequired = "Product ID is required"
	ErrMsgQuantityPositive  = "Quantity must be positive"
	ErrMsgPriceNegative     = "Price cannot be negative"
	ErrMsgQuantityTooLarge  = "Quantity is too large"
	ErrMsgStorageUnwritable = "Cart could not be saved"
)

func (s StatusCode) String() string {
	switch s {
	case StatusInvalidArgument:
		return "INVALID_ARGUMENT"
	case StatusFailedPrecondition:
		return "FAILED_PRECONDITION"
	default:
		return "UNKNOWN"
	}
}

// CommandError is returned when a cart command is rejected.
type CommandError struct {
	Code    StatusCode
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CommandError) Unwrap() error { return e.Err }

// NewInvalidArgument creates a CommandError for invalid input.
func NewInvalidArgument(message string) *CommandError {
	return &CommandError{Code: StatusInvalidArgument, Message: message}
}

// NewFailedPrecondition creates a CommandError for violated preconditions.
func NewFailedPrecondition(message string, err error) *CommandError {
	return &CommandError{Code: StatusFailedPrecondition, Message: message, Err: err}
}
