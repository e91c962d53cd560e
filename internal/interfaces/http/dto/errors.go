package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used when request validation fails
	ErrCodeValidation = "ERR_VALIDATION"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
)

// Sync error codes
const (
	// ErrCodeSyncRunning is used when a sync is already running for the supplier
	ErrCodeSyncRunning = "ERR_SYNC_RUNNING"
	// ErrCodeSupplierInactive is used when the supplier is deactivated
	ErrCodeSupplierInactive = "ERR_SUPPLIER_INACTIVE"
	// ErrCodeConnectorUnavailable is used when no connector can serve the supplier
	ErrCodeConnectorUnavailable = "ERR_CONNECTOR_UNAVAILABLE"
	// ErrCodeSyncFailed is used when a sync could not start
	ErrCodeSyncFailed = "ERR_SYNC_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	ErrCodeSyncRunning:          http.StatusConflict,
	ErrCodeSupplierInactive:     http.StatusUnprocessableEntity,
	ErrCodeConnectorUnavailable: http.StatusUnprocessableEntity,
	ErrCodeSyncFailed:           http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
