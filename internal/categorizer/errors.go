package categorizer

import "fmt"

// ValidationError means the user input was rejected before any remote call.
// Its message is safe to show to the user as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ModelErrorReason separates "model unreachable" from "model replied with
// garbage" so callers can log and alert on them differently.
type ModelErrorReason string

const (
	ModelUnreachable    ModelErrorReason = "unreachable"
	ModelMalformedReply ModelErrorReason = "malformed_reply"
	ModelEmptyReply     ModelErrorReason = "empty_reply"
)

// ModelError means the remote categorization call failed, timed out, or
// returned output that does not conform to the result schema.
type ModelError struct {
	Reason ModelErrorReason
	Err    error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model categorization failed (%s): %v", e.Reason, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a history-write failure. It is logged by the
// service and never joined with the caller's result.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history write failed (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
