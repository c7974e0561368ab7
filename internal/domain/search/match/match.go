// Package match names how a search result was found.
package match

// Type is the branch that produced a search result.
type Type string

// Match type constants.
const (
	Filename Type = "filename"
	Content  Type = "content"
)

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	return t == Filename || t == Content
}
