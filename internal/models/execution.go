package models

import "time"

// ExecutionContext carries the inputs for one execution attempt. A context
// is built fresh per attempt and never reused.
type ExecutionContext struct {
	Descriptor     *CommandDescriptor `json:"descriptor"`
	Parameters     map[string]any     `json:"parameters,omitempty"`
	Timeout        time.Duration      `json:"timeout"`
	CreateSnapshot bool               `json:"create_snapshot"`
	Confirmed      bool               `json:"confirmed"`
	CallerContext  map[string]any     `json:"caller_context,omitempty"`
}

// ErrorType classifies a structured execution error.
type ErrorType string

const (
	ErrorTimeout          ErrorType = "timeout"
	ErrorCancelled        ErrorType = "cancelled"
	ErrorNotFound         ErrorType = "not_found"
	ErrorPermissionDenied ErrorType = "permission_denied"
	ErrorInvalidParameter ErrorType = "invalid_parameter"
	ErrorUnknown          ErrorType = "unknown"
)

// ExecutionError is the structured error attached to a failed attempt.
// Recoverable errors are candidates for caller-driven retry.
type ExecutionError struct {
	Message     string    `json:"message"`
	Type        ErrorType `json:"type"`
	Recoverable bool      `json:"recoverable"`
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// ExecutionResult is the immutable outcome of one attempt.
type ExecutionResult struct {
	Success     bool            `json:"success"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Duration    time.Duration   `json:"duration"`
	ReturnValue any             `json:"return_value,omitempty"`
	Err         *ExecutionError `json:"error,omitempty"`
	SideEffects []SideEffect    `json:"side_effects"`
	SnapshotID  string          `json:"snapshot_id,omitempty"`
}
