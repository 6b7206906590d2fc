package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Topology and formation errors
	ErrCodeInvalidTopology ErrorCode = "INVALID_TOPOLOGY"
	ErrCodeBringUpFailed   ErrorCode = "BRINGUP_FAILED"
	ErrCodeSeedFailed      ErrorCode = "SEED_FAILED"
	ErrCodeJoinFailed      ErrorCode = "JOIN_FAILED"

	// Remote command errors
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"
	ErrCodeNodeUnreachable ErrorCode = "NODE_UNREACHABLE"

	// Provisioning errors
	ErrCodeProvisioningFailed ErrorCode = "PROVISIONING_FAILED"

	// Storage related errors
	ErrCodeStorageError   ErrorCode = "STORAGE_ERROR"
	ErrCodeStorageTimeout ErrorCode = "STORAGE_TIMEOUT"
	ErrCodeRunNotFound    ErrorCode = "RUN_NOT_FOUND"

	// Timeouts of remote commands
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// Serialization related errors
	ErrCodeSerializationError   ErrorCode = "SERIALIZATION_ERROR"
	ErrCodeDeserializationError ErrorCode = "DESERIALIZATION_ERROR"
	ErrCodeCompressionError     ErrorCode = "COMPRESSION_ERROR"
	ErrCodeDecompressionError   ErrorCode = "DECOMPRESSION_ERROR"

	// Configuration related errors
	ErrCodeInvalidConfig  ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
)

// ClusterError represents a structured error in rmqcluster
type ClusterError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

// NewClusterError creates a new ClusterError
func NewClusterError(code ErrorCode, message string) *ClusterError {
	return &ClusterError{
		Code:      code,
		Message:   message,
		Details:   make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// NewClusterErrorWithCause creates a new ClusterError with a cause
func NewClusterErrorWithCause(code ErrorCode, message string, cause error) *ClusterError {
	err := NewClusterError(code, message)
	err.Cause = cause
	return err
}

// WithDetail adds a detail to the error
func (e *ClusterError) WithDetail(key string, value interface{}) *ClusterError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface
func (e *ClusterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *ClusterError) Unwrap() error {
	return e.Cause
}

// Is matches another ClusterError by code
func (e *ClusterError) Is(target error) bool {
	if ce, ok := target.(*ClusterError); ok {
		return e.Code == ce.Code
	}
	return false
}

// ErrInvalidTopology creates an invalid topology error
func ErrInvalidTopology(reason string) *ClusterError {
	return NewClusterError(ErrCodeInvalidTopology, "invalid cluster topology").WithDetail("reason", reason)
}

// ErrFormationFailed creates the error reported when a formation run aborts.
// The code is chosen from the phase the run stopped in; reset never aborts a
// run, so anything past seed is a join failure.
func ErrFormationFailed(phase string, nodes []string) *ClusterError {
	var code ErrorCode
	switch phase {
	case "bring-up":
		code = ErrCodeBringUpFailed
	case "seed":
		code = ErrCodeSeedFailed
	default:
		code = ErrCodeJoinFailed
	}

	msg := fmt.Sprintf("cluster formation aborted in %s phase", phase)
	if len(nodes) > 0 {
		msg = fmt.Sprintf("%s (nodes: %s)", msg, strings.Join(nodes, ", "))
	}

	return NewClusterError(code, msg).
		WithDetail("phase", phase).
		WithDetail("nodes", nodes)
}

// ErrProvisioningFailed creates an error for a rejected declare command
func ErrProvisioningFailed(kind, name, output string) *ClusterError {
	return NewClusterError(ErrCodeProvisioningFailed, fmt.Sprintf("failed to declare %s %q", kind, name)).
		WithDetail("kind", kind).
		WithDetail("name", name).
		WithDetail("output", output)
}

// ErrCommandFailed creates the error for a command that ran but exited
// non-zero. Only the first word of the command is kept, the rest may carry
// credentials.
func ErrCommandFailed(address, command string, cause error) *ClusterError {
	return NewClusterErrorWithCause(ErrCodeCommandFailed, fmt.Sprintf("command failed on %s", address), cause).
		WithDetail("address", address).
		WithDetail("command", commandName(command))
}

// ErrTimeout creates the error for a command abandoned because its deadline
// passed or its context was cancelled.
func ErrTimeout(address, command string, cause error) *ClusterError {
	msg := fmt.Sprintf("command on %s did not finish", address)
	if errors.Is(cause, context.Canceled) {
		msg = fmt.Sprintf("command on %s was cancelled", address)
	}
	return NewClusterErrorWithCause(ErrCodeTimeout, msg, cause).
		WithDetail("address", address).
		WithDetail("command", commandName(command))
}

// ErrNodeUnreachable creates the error for a node that could not be
// connected to.
func ErrNodeUnreachable(address string, cause error) *ClusterError {
	return NewClusterErrorWithCause(ErrCodeNodeUnreachable, fmt.Sprintf("node %s is unreachable", address), cause).
		WithDetail("address", address)
}

func commandName(command string) string {
	if fields := strings.Fields(command); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// ErrRunNotFound creates a run not found error
func ErrRunNotFound(id string) *ClusterError {
	return NewClusterError(ErrCodeRunNotFound, "formation run not found").WithDetail("run_id", id)
}

// ErrStorageError creates a storage error
func ErrStorageError(operation string, cause error) *ClusterError {
	return NewClusterErrorWithCause(ErrCodeStorageError, fmt.Sprintf("storage operation failed: %s", operation), cause)
}

// ErrSerializationError creates a serialization error
func ErrSerializationError(format string, cause error) *ClusterError {
	return NewClusterErrorWithCause(ErrCodeSerializationError, fmt.Sprintf("serialization failed for format: %s", format), cause).
		WithDetail("format", format)
}

// ErrDeserializationError creates a deserialization error
func ErrDeserializationError(format string, cause error) *ClusterError {
	return NewClusterErrorWithCause(ErrCodeDeserializationError, fmt.Sprintf("deserialization failed for format: %s", format), cause).
		WithDetail("format", format)
}

// ErrCompressionError creates a compression error
func ErrCompressionError(algorithm string, cause error) *ClusterError {
	return NewClusterErrorWithCause(ErrCodeCompressionError, fmt.Sprintf("compression failed for algorithm: %s", algorithm), cause).
		WithDetail("algorithm", algorithm)
}

// ErrDecompressionError creates a decompression error
func ErrDecompressionError(algorithm string, cause error) *ClusterError {
	return NewClusterErrorWithCause(ErrCodeDecompressionError, fmt.Sprintf("decompression failed for algorithm: %s", algorithm), cause).
		WithDetail("algorithm", algorithm)
}

// ErrInvalidConfig creates a configuration error
func ErrInvalidConfig(field string, reason string) *ClusterError {
	return NewClusterError(ErrCodeInvalidConfig, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field)
}

// ErrConfigNotFound creates the error for an explicitly named config file
// that does not exist.
func ErrConfigNotFound(path string, cause error) *ClusterError {
	return NewClusterErrorWithCause(ErrCodeConfigNotFound, fmt.Sprintf("config file %s not found", path), cause).
		WithDetail("path", path)
}

// ErrorCollector collects multiple errors
type ErrorCollector struct {
	Errors []error
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		Errors: make([]error, 0),
	}
}

// Add adds an error to the collector
func (ec *ErrorCollector) Add(err error) {
	if err != nil {
		ec.Errors = append(ec.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	return len(ec.Errors) > 0
}

// Error returns a combined error message
func (ec *ErrorCollector) Error() string {
	if !ec.HasErrors() {
		return ""
	}

	if len(ec.Errors) == 1 {
		return ec.Errors[0].Error()
	}

	result := fmt.Sprintf("multiple errors (%d):", len(ec.Errors))
	for i, err := range ec.Errors {
		result += fmt.Sprintf("\n  %d: %v", i+1, err)
	}

	return result
}

// ToError returns the collected errors as a single error, or nil if no errors
func (ec *ErrorCollector) ToError() error {
	if !ec.HasErrors() {
		return nil
	}
	return ec
}
