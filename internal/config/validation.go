package config

import (
	"fmt"
	"strings"

	"assay/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks value ranges and enumerations.
func (c AppConfig) Validate() error {
	var errs ValidationErrors

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		errs.Add("server.readTimeout", "must not be negative", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		errs.Add("server.writeTimeout", "must not be negative", c.Server.WriteTimeout)
	}
	if c.Server.MaxConnections < 0 {
		errs.Add("server.maxConnections", "must not be negative", c.Server.MaxConnections)
	}
	if c.Execution.RequestTimeout < 0 {
		errs.Add("execution.requestTimeout", "must not be negative", c.Execution.RequestTimeout)
	}
	if c.Execution.Load.ThinkTime < 0 {
		errs.Add("execution.load.thinkTime", "must not be negative", c.Execution.Load.ThinkTime)
	}
	if c.Execution.Load.ErrorPenalty < 0 {
		errs.Add("execution.load.errorPenalty", "must not be negative", c.Execution.Load.ErrorPenalty)
	}
	if c.Execution.Load.MaxVirtualUsers < 0 {
		errs.Add("execution.load.maxVirtualUsers", "must not be negative", c.Execution.Load.MaxVirtualUsers)
	}
	if c.Browser.RemoteURL != "" && !strings.HasPrefix(c.Browser.RemoteURL, "ws://") && !strings.HasPrefix(c.Browser.RemoteURL, "wss://") {
		errs.Add("browser.remoteURL", "must be a ws:// or wss:// URL", c.Browser.RemoteURL)
	}
	if c.Logging.Level != "" {
		if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
			errs.Add("logging.level", err.Error(), c.Logging.Level)
		}
	}
	switch c.Logging.Format {
	case "", string(logging.FormatText), string(logging.FormatJSON):
	default:
		errs.Add("logging.format", "must be text or json", c.Logging.Format)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
