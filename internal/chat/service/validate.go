package service

// ValidationInfo collects the field-level errors found while validating one
// request. Validity is derived from the error list, never stored separately,
// so a "valid with errors" state cannot be constructed.
type ValidationInfo struct {
	Name string

	errs []string
}

// NewValidationInfo creates an empty validation result for the named service.
func NewValidationInfo(name string) *ValidationInfo {
	return &ValidationInfo{Name: name}
}

// AddError appends one error message and returns the receiver for chaining.
func (v *ValidationInfo) AddError(msg string) *ValidationInfo {
	v.errs = append(v.errs, msg)
	return v
}

// Valid reports whether the request passed validation.
func (v *ValidationInfo) Valid() bool {
	return len(v.errs) == 0
}

// Errors returns the collected error messages in insertion order. The
// messages are server-side diagnostics and never cross the wire.
func (v *ValidationInfo) Errors() []string {
	return v.errs
}
