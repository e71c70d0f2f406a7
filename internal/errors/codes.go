// Package errors provides structured error handling for azmig.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (plan files, session files, history)
//   - 3XX: Provider errors (cloud API reachability)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryProvider indicates cloud-provider reachability errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeUnknownStage   = "ERR_103_UNKNOWN_STAGE"

	// IO errors (200-299)
	ErrCodePlanNotFound    = "ERR_201_PLAN_NOT_FOUND"
	ErrCodePlanUnreadable  = "ERR_202_PLAN_UNREADABLE"
	ErrCodeSessionIO       = "ERR_203_SESSION_IO"
	ErrCodeSessionCorrupt  = "ERR_204_SESSION_CORRUPT"
	ErrCodeSessionLocked   = "ERR_205_SESSION_LOCKED"
	ErrCodeHistoryIO       = "ERR_206_HISTORY_IO"

	// Provider errors (300-399)
	ErrCodeProviderTimeout     = "ERR_301_PROVIDER_TIMEOUT"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodePlanInvalid       = "ERR_401_PLAN_INVALID"
	ErrCodeDuplicateTarget   = "ERR_402_DUPLICATE_TARGET"
	ErrCodeUnknownTarget     = "ERR_403_UNKNOWN_TARGET"
	ErrCodeNoTargets         = "ERR_404_NO_TARGETS"
	ErrCodeStageUnregistered = "ERR_405_STAGE_UNREGISTERED"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeExecutorPanic = "ERR_502_EXECUTOR_PANIC"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors abort the batch before any stage executes.
	switch code {
	case ErrCodeConfigInvalid, ErrCodeUnknownStage,
		ErrCodePlanNotFound, ErrCodePlanInvalid,
		ErrCodeNoTargets, ErrCodeStageUnregistered,
		ErrCodeSessionLocked:
		return SeverityFatal
	}

	// Retryable provider errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	// Default to error severity
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderUnavailable:
		return true
	default:
		return false
	}
}
