package pipeline

import (
	"github.com/matrix-org/batesian/pkg/renderer"
)

// ValidateTemplateVars checks that every variable the template reads has a
// section. All missing names are reported together. Sections the template
// does not use are fine.
func ValidateTemplateVars(env *renderer.Environment, name, source string, sections map[string]string) error {
	free, err := env.FreeVariables(name, source)
	if err != nil {
		return err
	}

	var missing []string
	for _, v := range free {
		if _, ok := sections[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return &MissingVariablesError{Template: name, Names: missing}
	}
	return nil
}
