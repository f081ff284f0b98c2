package demand

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel behind every ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an entry that cannot be turned into a model.
type ConfigurationError struct {
	Topic  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if e.Topic != "" {
		msg = fmt.Sprintf("topic %q: %s", e.Topic, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "configuration error: " + msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfiguration, e.Err}
	}
	return []error{ErrConfiguration}
}

func configError(topic, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Topic: topic, Reason: fmt.Sprintf(format, args...)}
}
