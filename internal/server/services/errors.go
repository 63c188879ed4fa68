package services

import "fmt"

// Step names the registration stage an infrastructure failure happened in.
// It ends up in logs and alerts, never in user-facing text.
type Step string

const (
	StepDirectory   Step = "directory"
	StepRelational  Step = "relational"
	StepCredentials Step = "db_credentials"
	StepFinalize    Step = "finalize"
	StepInternal    Step = "internal"
)

// RegistrationError is an infrastructure failure inside the provisioning
// pipeline. The compensation cascade has already run by the time a caller
// sees one; the correlation id ties the user-facing "contact support"
// message to the full cause in the server log.
type RegistrationError struct {
	Step          Step
	CorrelationID string
	Err           error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration failed at %s step (correlation id %s): %v", e.Step, e.CorrelationID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// ValidationError is a recoverable, field-level rejection of the submitted
// form. Nothing has been provisioned and the confirmation token stays
// usable, so the member can simply resubmit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
