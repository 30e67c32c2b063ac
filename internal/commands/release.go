package commands

import (
	"regexp"

	"github.com/matrix-org/batesian/pkg/pipeline"
)

// Placeholders replaced in every rendered document.
const (
	ReleaseLabelPlaceholder = "%RELEASE_LABEL%"
	MajorVersionPlaceholder = "%MAJOR_VERSION%"
)

var releaseLabelRe = regexp.MustCompile(`^(r\d)+(\.\d+)?$`)

// ParseReleaseLabel returns the major version of a label such as "r0.6"
// ("r0"). Labels that do not look like releases are returned unchanged.
func ParseReleaseLabel(label string) string {
	if m := releaseLabelRe.FindStringSubmatch(label); m != nil {
		return m[1]
	}
	return label
}

// ReleaseSubstitutions returns the post-render replacements for label.
func ReleaseSubstitutions(label string) []pipeline.Substitution {
	return []pipeline.Substitution{
		{Old: ReleaseLabelPlaceholder, New: label},
		{Old: MajorVersionPlaceholder, New: ParseReleaseLabel(label)},
	}
}
