package errors

import "errors"

// ErrorDetails represents detailed information about an error.
type ErrorDetails struct {
	// Message (required) is the human readable error message.
	// E.g. "timeframe multiplier must be positive".
	Message string

	// Code (required) is one of the ErrorCode values.
	Code string

	// Field (optional) is the related option or column the error occurred on, if any.
	Field string

	// Object (optional) is the related object the error occured on, if any.
	Object interface{}

	// Category classifies the error for retry and propagation decisions.
	Category Category

	// Err (optional) is the underlying cause.
	Err error
}

// NewErrorDetails creates a new ErrorDetails struct with the given parameters.
func NewErrorDetails(message, code, field string) *ErrorDetails {
	return &ErrorDetails{
		Message:  message,
		Code:     code,
		Field:    field,
		Category: CategoryUnknown,
	}
}

// NewErrorDetailsWithObject creates a new ErrorDetails struct with an associated object.
func NewErrorDetailsWithObject(message, code, field string, object interface{}) *ErrorDetails {
	d := NewErrorDetails(message, code, field)
	d.Object = object
	return d
}

// NewConfigError reports a missing or invalid configuration option.
func NewConfigError(code ErrorCode, field, message string) *ErrorDetails {
	return &ErrorDetails{
		Message:  message,
		Code:     string(code),
		Field:    field,
		Category: CategoryConfig,
	}
}

// NewDataContractError reports data that violates what a stage expects to receive.
func NewDataContractError(code ErrorCode, field, message string) *ErrorDetails {
	return &ErrorDetails{
		Message:  message,
		Code:     string(code),
		Field:    field,
		Category: CategoryDataContract,
	}
}

// NewTransportError wraps a failure of an external collaborator.
func NewTransportError(code ErrorCode, err error, message string) *ErrorDetails {
	if err != nil {
		message = message + ": " + err.Error()
	}
	return &ErrorDetails{
		Message:  message,
		Code:     string(code),
		Category: CategoryTransport,
		Err:      err,
	}
}

// NewStateError reports an operation attempted in the wrong lifecycle state.
func NewStateError(code ErrorCode, message string) *ErrorDetails {
	return &ErrorDetails{
		Message:  message,
		Code:     string(code),
		Category: CategoryState,
	}
}

// Error() is used to implement the Golang `error` interface.
func (e *ErrorDetails) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ErrorDetails) Unwrap() error {
	return e.Err
}

// ErrorCodeEquals checks whether a given `error` has a specific code.
func ErrorCodeEquals(err error, code ErrorCode) bool {
	var details *ErrorDetails
	if errors.As(err, &details) && details.Code == string(code) {
		return true
	}

	var base *BaseError
	if errors.As(err, &base) {
		return base.IsAnyCodeEqual(code)
	}
	return false
}

// IsCategory reports whether err, or anything it wraps, belongs to category.
func IsCategory(err error, category Category) bool {
	var details *ErrorDetails
	if errors.As(err, &details) {
		return details.Category == category
	}
	return false
}

// CategoryOf returns the category of the first ErrorDetails found in err.
func CategoryOf(err error) Category {
	var details *ErrorDetails
	if errors.As(err, &details) {
		return details.Category
	}
	return CategoryUnknown
}
