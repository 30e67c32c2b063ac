// Package batesian builds a single text document from a template, a set of
// named sections, and the raw units those sections are derived from.
package batesian

// Version is the current release of the batesian tool.
const Version = "0.3.0"
