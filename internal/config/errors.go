package config

import (
	"fmt"
	"strings"
)

// ConfigurationError describes a config file that could not be used.
type ConfigurationError struct {
	FilePath  string `json:"filePath"`  // Full path to the file that caused the error
	FileName  string `json:"fileName"`  // Base name of the file
	ErrorType string `json:"errorType"` // parse or validation
	Message   string `json:"message"`
	// Cause is the underlying error, usually ValidationErrors
	Cause error `json:"-"`
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FileName, ce.Message)
}

// Unwrap returns the cause.
func (ce *ConfigurationError) Unwrap() error {
	return ce.Cause
}

// DetailedError returns a multi-line description including every
// validation failure.
func (ce *ConfigurationError) DetailedError() string {
	parts := []string{
		fmt.Sprintf("Configuration Error in %s", ce.FileName),
		fmt.Sprintf("  File: %s", ce.FilePath),
		fmt.Sprintf("  Type: %s", ce.ErrorType),
	}

	if verrs, ok := ce.Cause.(ValidationErrors); ok {
		parts = append(parts, "  Errors:")
		for _, err := range verrs {
			parts = append(parts, fmt.Sprintf("    - %s", err.Error()))
		}
	} else {
		parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))
	}
	return strings.Join(parts, "\n")
}
