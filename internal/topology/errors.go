package topology

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalidConfig is matched by every configuration error returned from this package.
var ErrInvalidConfig = errors.New("invalid scale configuration")

// ConfigError carries every problem found while validating a scale configuration.
type ConfigError struct {
	result *multierror.Error
}

// Error joins all problems into a single line, first one first.
func (e *ConfigError) Error() string {
	msgs := make([]string, 0, len(e.result.Errors))
	for _, err := range e.result.Errors {
		msgs = append(msgs, err.Error())
	}
	return ErrInvalidConfig.Error() + ": " + strings.Join(msgs, "; ")
}

// Unwrap exposes ErrInvalidConfig and each individual problem to errors.Is/As.
func (e *ConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.result.Errors...)
}

// Problems returns the individual validation messages.
func (e *ConfigError) Problems() []string {
	msgs := make([]string, 0, len(e.result.Errors))
	for _, err := range e.result.Errors {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// problems accumulates validation failures so that one run reports all of them.
type problems struct {
	result *multierror.Error
}

func (p *problems) addf(format string, args ...any) {
	p.result = multierror.Append(p.result, fmt.Errorf(format, args...))
}

func (p *problems) merge(err error) {
	if err == nil {
		return
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		p.result = multierror.Append(p.result, cfgErr.result.Errors...)
		return
	}
	p.result = multierror.Append(p.result, err)
}

func (p *problems) err() error {
	if p.result == nil || len(p.result.Errors) == 0 {
		return nil
	}
	return &ConfigError{result: p.result}
}
