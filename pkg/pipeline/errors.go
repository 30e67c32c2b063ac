package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProvider marks a failure inside an input's unit provider or section
	// builder. The provider's own error stays in the chain.
	ErrProvider = errors.New("input provider failed")

	// ErrMissingTemplateVariables is matched by *MissingVariablesError.
	ErrMissingTemplateVariables = errors.New("template references variables not found in sections")

	// ErrUnknownInput is returned when no factory is registered for an input name.
	ErrUnknownInput = errors.New("unknown input")
)

// MissingVariablesError lists every template variable that has no section.
type MissingVariablesError struct {
	Template string
	Names    []string // sorted
}

// Error returns all missing names in one message
func (e *MissingVariablesError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("%s: template '%s' uses {{ %s }}", ErrMissingTemplateVariables, e.Template, e.Names[0])
	}
	return fmt.Sprintf("%s: template '%s' uses %d unknown variables: %s",
		ErrMissingTemplateVariables, e.Template, len(e.Names), strings.Join(e.Names, ", "))
}

func (e *MissingVariablesError) Is(target error) bool {
	return target == ErrMissingTemplateVariables
}
