package errors

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalError represents a generic internal error.
	GeneralInternalError ErrorCode = "general_internal_error"

	// ConfigMissingOption represents a required option that was not provided.
	ConfigMissingOption ErrorCode = "config_missing_option"
	// ConfigInvalidOption represents an option holding an unsupported value.
	ConfigInvalidOption ErrorCode = "config_invalid_option"
	// ConfigInvalidTimeframe represents a timeframe spec that cannot be parsed.
	ConfigInvalidTimeframe ErrorCode = "config_invalid_timeframe"
	// ConfigInvalidSubscription represents an illegal link between two stages.
	ConfigInvalidSubscription ErrorCode = "config_invalid_subscription"

	// DataContractMissingStream represents an event without the expected stream.
	DataContractMissingStream ErrorCode = "data_contract_missing_stream"
	// DataContractWrongVariant represents a stream holding an unexpected payload variant.
	DataContractWrongVariant ErrorCode = "data_contract_wrong_variant"
	// DataContractMissingPrice represents a tick missing the fields needed to price it.
	DataContractMissingPrice ErrorCode = "data_contract_missing_price"
	// DataContractUnordered represents a sequence whose timestamps go backwards.
	DataContractUnordered ErrorCode = "data_contract_unordered"

	// TransportSourceFailure represents a failure while reading from a data source.
	TransportSourceFailure ErrorCode = "transport_source_failure"
	// TransportSinkFailure represents a failure while writing to an external sink.
	TransportSinkFailure ErrorCode = "transport_sink_failure"

	// StoreBusy represents a close attempt while readers are still active.
	StoreBusy ErrorCode = "store_busy"
	// StoreClosed represents a read attempt on a closed store.
	StoreClosed ErrorCode = "store_closed"
	// StageTerminated represents a request to a pipeline stage that already stopped.
	StageTerminated ErrorCode = "stage_terminated"
	// StageAlreadyRunning represents a second Run of the same stage.
	StageAlreadyRunning ErrorCode = "stage_already_running"
)

// Severity represents the severity level of an error.
type Severity string

const (
	// SeverityCritical indicates a critical error that requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityHigh indicates a high severity error that should be addressed promptly.
	SeverityHigh Severity = "high"
	// SeverityLow indicates a low severity error that can be addressed at a later time.
	SeverityLow Severity = "low"
)

// Category represents the category of an error.
type Category string

const (
	// CategoryConfig indicates invalid or missing configuration. Never retryable.
	CategoryConfig Category = "config"
	// CategoryDataContract indicates data that does not satisfy what a stage expects.
	CategoryDataContract Category = "data_contract"
	// CategoryTransport indicates an I/O failure of an external collaborator.
	CategoryTransport Category = "transport"
	// CategoryState indicates an operation on a resource in the wrong lifecycle state.
	CategoryState Category = "state"
	// CategoryUnknown indicates an unknown error category.
	CategoryUnknown Category = "unknown"
)

// Severity returns the default severity of errors in the category.
func (c Category) Severity() Severity {
	switch c {
	case CategoryDataContract, CategoryTransport:
		return SeverityCritical
	case CategoryConfig:
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// BaseError is an `error` type containing an array of ErrorDetails.
// It is returned when several independent problems are found at once,
// e.g. while validating a pipeline definition.
type BaseError struct {
	details []*ErrorDetails
}

// NewBaseError create BaseError with ErrorDetails
func NewBaseError(details ...*ErrorDetails) *BaseError {
	return &BaseError{details: details}
}

// AddErrorDetails add more ErrorDetails to BaseError
func (b *BaseError) AddErrorDetails(errors ...*ErrorDetails) {
	b.details = append(b.details, errors...)
}

// Merge appends the details of err when it carries any. Plain errors are
// recorded as a single detail with the general internal code.
func (b *BaseError) Merge(err error) {
	if err == nil {
		return
	}

	var base *BaseError
	if errors.As(err, &base) {
		b.details = append(b.details, base.details...)
		return
	}

	var details *ErrorDetails
	if errors.As(err, &details) {
		b.details = append(b.details, details)
		return
	}

	b.details = append(b.details, &ErrorDetails{
		Message:  err.Error(),
		Code:     string(GeneralInternalError),
		Category: CategoryUnknown,
		Err:      err,
	})
}

// GetDetails get array ErrorDetails on BaseError
func (b *BaseError) GetDetails() []*ErrorDetails {
	return b.details
}

// HasDetails reports whether any detail was recorded.
func (b *BaseError) HasDetails() bool {
	return len(b.details) > 0
}

// ErrorOrNil returns b when it has details, otherwise nil.
func (b *BaseError) ErrorOrNil() error {
	if b == nil || !b.HasDetails() {
		return nil
	}
	return b
}

// Error implement error interface
func (b *BaseError) Error() string {
	buff := bytes.NewBufferString("")

	buff.WriteString("Error on\n")
	for _, err := range b.details {
		buff.WriteString("code: ")
		buff.WriteString(err.Code)
		buff.WriteString("; error: ")
		buff.WriteString(err.Error())
		buff.WriteString("; field: ")
		buff.WriteString(err.Field)
		buff.WriteString("; object: ")
		if err.Object != nil {
			buff.WriteString(reflect.TypeOf(err.Object).String())
		}
		buff.WriteString("\n")
	}

	return strings.TrimSpace(buff.String())
}

// Unwrap exposes every detail to errors.Is and errors.As.
func (b *BaseError) Unwrap() []error {
	errs := make([]error, 0, len(b.details))
	for _, d := range b.details {
		errs = append(errs, d)
	}
	return errs
}

// PrependFields prepend all field on ErrorDetails with given prefix. Will skip ErrorDetail without field
func (b *BaseError) PrependFields(prefix string) {
	for _, d := range b.GetDetails() {
		if d.Field == "" {
			continue
		}
		d.Field = fmt.Sprintf("%s%s", prefix, d.Field)
	}
}

// IsAllCodeEqual check if all ErrorDetails code is equal with given code
func (b *BaseError) IsAllCodeEqual(code ErrorCode) bool {
	if len(b.details) == 0 {
		return false
	}

	for _, d := range b.GetDetails() {
		if d.Code != string(code) {
			return false
		}
	}
	return true
}

// IsAnyCodeEqual check if any ErrorDetails code is equal with given code
func (b *BaseError) IsAnyCodeEqual(code ErrorCode) bool {
	for _, d := range b.GetDetails() {
		if d.Code == string(code) {
			return true
		}
	}
	return false
}

// GetFieldErrorDetailsMap groups ErrorDetails by field.
func (b *BaseError) GetFieldErrorDetailsMap() map[string][]*ErrorDetails {
	errMap := make(map[string][]*ErrorDetails)

	for _, detail := range b.details {
		errMap[detail.Field] = append(errMap[detail.Field], detail)
	}

	return errMap
}
