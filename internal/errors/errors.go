// Package errors provides structured error handling for netrecon operations.
// It defines error codes and typed errors for discovery, port scanning,
// persistence and configuration, each carrying enough context to log or
// map onto a user-facing message.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodePermission    ErrorCode = "PERMISSION"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"

	// Network, discovery and scanning errors.
	CodeNetworkUnreachable ErrorCode = "NETWORK_UNREACHABLE"
	CodeHostUnreachable    ErrorCode = "HOST_UNREACHABLE"
	CodeScanFailed         ErrorCode = "SCAN_FAILED"
	CodeScanInProgress     ErrorCode = "SCAN_IN_PROGRESS"
	CodeDiscoveryFailed    ErrorCode = "DISCOVERY_FAILED"
	CodeTargetInvalid      ErrorCode = "TARGET_INVALID"
	CodeCommandFailed      ErrorCode = "COMMAND_FAILED"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
	CodeDatabaseTimeout    ErrorCode = "DATABASE_TIMEOUT"
)

// ScanError represents an error that occurred during port scanning or
// coordination of a scan run.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	err := NewScanError(code, message)
	err.Target = target
	return err
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, cause error) *ScanError {
	err := NewScanError(code, message)
	err.Cause = cause
	return err
}

// DiscoveryError represents a failure to enumerate the local network.
type DiscoveryError struct {
	Code    ErrorCode
	Message string
	Network string
	Source  string
	Cause   error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s (source: %s)", e.Code, e.Message, e.Source)
	}
	if e.Network != "" {
		return fmt.Sprintf("[%s] %s (network: %s)", e.Code, e.Message, e.Network)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// NewDiscoveryError creates a new discovery error.
func NewDiscoveryError(code ErrorCode, message string) *DiscoveryError {
	return &DiscoveryError{Code: code, Message: message}
}

// WrapDiscoveryError wraps an existing error as a discovery error.
func WrapDiscoveryError(code ErrorCode, message string, cause error) *DiscoveryError {
	return &DiscoveryError{Code: code, Message: message, Cause: cause}
}

// DatabaseError represents persistence errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Query     string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// WithQuery records the SQL statement that failed.
func (e *DatabaseError) WithQuery(query string) *DatabaseError {
	e.Query = query
	return e
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{Code: code, Message: message}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, cause error) *DatabaseError {
	return &DatabaseError{Code: code, Message: message, Cause: cause}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{Code: code, Message: message}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, cause error) *ConfigError {
	return &ConfigError{Code: code, Message: message, Cause: cause}
}

// GetCode extracts the error code from the first typed error in the chain.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var discErr *DiscoveryError
	if stderrors.As(err, &discErr) {
		return discErr.Code
	}
	var dbErr *DatabaseError
	if stderrors.As(err, &dbErr) {
		return dbErr.Code
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error, or any error it wraps, has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return GetCode(err) == code
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeNetworkUnreachable, CodeDatabaseTimeout, CodeScanInProgress:
		return true
	default:
		return false
	}
}

// IsFatal determines if an error indicates a fatal condition that should stop execution.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodePermission, CodeConfiguration, CodeDatabaseMigration:
		return true
	default:
		return false
	}
}

// ErrScanInProgress is returned when a scan is requested while another one is running.
func ErrScanInProgress() *ScanError {
	return NewScanError(CodeScanInProgress, "A scan is already in progress")
}

// ErrInvalidPorts is returned when a port list is empty or contains only zeros.
func ErrInvalidPorts(count int) *ScanError {
	return NewScanError(CodeValidation, "Port list is empty or invalid").WithContext("ports", count)
}

// ErrInvalidTarget creates an error for invalid scan targets.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, "Invalid target specification", target)
}

// ErrDiscoveryFailed creates an error for discovery failures.
func ErrDiscoveryFailed(source string, err error) *DiscoveryError {
	discErr := WrapDiscoveryError(CodeDiscoveryFailed, "Network discovery failed", err)
	discErr.Source = source
	return discErr
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", err)
}

// ErrDatabaseQuery creates an error for database query failures.
func ErrDatabaseQuery(query string, err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseQuery, "Database query failed", err).WithQuery(query)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
