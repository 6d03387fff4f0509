package model

import "fmt"

// ValidationError reports a malformed workflow definition. Raised at
// definition save time, never while an instance runs.
type ValidationError struct {
	Definition string
	Reason     string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid workflow definition %s: %s", e.Definition, e.Reason)
}

// UnauthorizedError means a user lacks the role, assignment or condition
// match required for an action. No side effects are applied.
type UnauthorizedError struct {
	User   string
	Action string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("user %s is not allowed to perform %s", e.User, e.Action)
}

// InvalidTransitionError reports a state machine table violation. Raised
// before any mutation.
type InvalidTransitionError struct {
	From WorkflowState
	To   WorkflowState
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// InconsistentStateError means an instance references a step or definition
// that cannot be resolved anymore. Fatal for the operation.
type InconsistentStateError struct {
	Instance string
	Reason   string
}

func (e InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent workflow instance %s: %s", e.Instance, e.Reason)
}

// NotificationDeliveryError is always caught and logged by the dispatcher,
// never propagated to the triggering action.
type NotificationDeliveryError struct {
	Subject string
	Cause   error
}

func (e NotificationDeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver notification %q: %v", e.Subject, e.Cause)
}

func (e NotificationDeliveryError) Unwrap() error {
	return e.Cause
}
