package mhc

import "fmt"

// DataValidationError reports malformed or unrecognized allele and genotype data.
type DataValidationError struct {
	Message string
	Err     error
}

func (e *DataValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data validation error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("data validation error: %s", e.Message)
}

func (e *DataValidationError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a missing or unusable reference setup.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// invariantError is a structural check that failed inside the package.
// Exported functions convert it to a DataValidationError before returning.
type invariantError struct {
	msg string
}

func (e *invariantError) Error() string {
	return e.msg
}

func invariantf(format string, args ...any) error {
	return &invariantError{msg: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) error {
	return &DataValidationError{Message: fmt.Sprintf(format, args...)}
}
