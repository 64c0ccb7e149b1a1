package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldDevice is the standardized structured logging key for the monitored block device.
	FieldDevice = "device"
	// FieldState is the standardized structured logging key for controller state names.
	FieldState = "state"
	// FieldErrorHint suggests a next step when a warning or error is logged.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)
