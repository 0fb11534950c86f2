package entities

import (
	"errors"
	"fmt"
)

// RouteOperationError represents an error that occurred during route operations
type RouteOperationError struct {
	ErrorType RouteErrorType
	Item      string        // The offending input line or item
	Entry     *ForwardEntry // The attempted entry, if one was built
	Status    uint32        // Platform status code, 0 when not from an OS call
	Cause     error         // Underlying error
}

// RouteErrorType represents the category of routing operation error
type RouteErrorType int

// Route error type constants
const (
	// RouteErrFormat indicates malformed IPv4 or CIDR text
	RouteErrFormat RouteErrorType = iota
	// RouteErrResolution indicates a hostname or destination that could not be resolved
	RouteErrResolution
	// RouteErrOSCall indicates a non-success status from the network stack
	RouteErrOSCall
	// RouteErrConfigAccess indicates the persisted host forwarding setting could not be read or written
	RouteErrConfigAccess
	// RouteErrPermission indicates insufficient privileges for route operations
	RouteErrPermission
	// RouteErrUnsupported indicates the platform has no implementation
	RouteErrUnsupported
	// RouteErrCancelled indicates an item that was never attempted because the batch was interrupted
	RouteErrCancelled
)

// String returns a string representation of the route error type
func (e RouteErrorType) String() string {
	switch e {
	case RouteErrFormat:
		return "Format"
	case RouteErrResolution:
		return "Resolution"
	case RouteErrOSCall:
		return "OSCall"
	case RouteErrConfigAccess:
		return "ConfigAccess"
	case RouteErrPermission:
		return "Permission"
	case RouteErrUnsupported:
		return "Unsupported"
	case RouteErrCancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Error implements the error interface for RouteOperationError
func (roe *RouteOperationError) Error() string {
	msg := fmt.Sprintf("route operation failed [%s]", roe.ErrorType)
	if roe.Item != "" {
		msg += " for " + roe.Item
	}
	if roe.Entry != nil {
		msg += " (" + roe.Entry.String() + ")"
	}
	if roe.Status != 0 {
		msg += fmt.Sprintf(" status %d", roe.Status)
	}
	if roe.Cause != nil {
		msg += ": " + roe.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (roe *RouteOperationError) Unwrap() error {
	return roe.Cause
}

// IsPermissionError returns true if the error is due to insufficient privileges
func (roe *RouteOperationError) IsPermissionError() bool {
	return roe.ErrorType == RouteErrPermission
}

// NewFormatError wraps a parse failure for item
func NewFormatError(item string, cause error) *RouteOperationError {
	return &RouteOperationError{ErrorType: RouteErrFormat, Item: item, Cause: cause}
}

// NewResolutionError wraps a lookup failure for item
func NewResolutionError(item string, cause error) *RouteOperationError {
	return &RouteOperationError{ErrorType: RouteErrResolution, Item: item, Cause: cause}
}

// NewOSCallError records a failed network stack call and its status code
func NewOSCallError(item string, status uint32, cause error) *RouteOperationError {
	return &RouteOperationError{ErrorType: RouteErrOSCall, Item: item, Status: status, Cause: cause}
}

// NewConfigAccessError wraps a failure to read or write persisted forwarding config
func NewConfigAccessError(item string, cause error) *RouteOperationError {
	return &RouteOperationError{ErrorType: RouteErrConfigAccess, Item: item, Cause: cause}
}

// NewCancelledError marks item as skipped by an interrupted batch
func NewCancelledError(item string, cause error) *RouteOperationError {
	return &RouteOperationError{ErrorType: RouteErrCancelled, Item: item, Cause: cause}
}

// ErrorTypeOf extracts the category of err, ok is false for foreign errors
func ErrorTypeOf(err error) (RouteErrorType, bool) {
	var roe *RouteOperationError
	if errors.As(err, &roe) {
		return roe.ErrorType, true
	}
	return 0, false
}

// IsFormatError reports whether err is a RouteErrFormat error
func IsFormatError(err error) bool {
	t, ok := ErrorTypeOf(err)
	return ok && t == RouteErrFormat
}

// IsResolutionError reports whether err is a RouteErrResolution error
func IsResolutionError(err error) bool {
	t, ok := ErrorTypeOf(err)
	return ok && t == RouteErrResolution
}

// IsOSCallError reports whether err is a RouteErrOSCall error
func IsOSCallError(err error) bool {
	t, ok := ErrorTypeOf(err)
	return ok && (t == RouteErrOSCall || t == RouteErrPermission)
}

// IsConfigAccessError reports whether err is a RouteErrConfigAccess error
func IsConfigAccessError(err error) bool {
	t, ok := ErrorTypeOf(err)
	return ok && t == RouteErrConfigAccess
}

// IsCancelledError reports whether err is a RouteErrCancelled error
func IsCancelledError(err error) bool {
	t, ok := ErrorTypeOf(err)
	return ok && t == RouteErrCancelled
}
