package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (file_detected, file_processed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRunID identifies one pipeline session from Start to Stop.
	FieldRunID = "run_id"
	// FieldSource is the source image path.
	FieldSource = "source"
	// FieldOutput is the produced output path.
	FieldOutput = "output"
	// FieldOrientation is the classified orientation of the image.
	FieldOrientation = "orientation"
	// FieldReason explains why a file was skipped.
	FieldReason = "reason"
)
