// Package tagset holds the canonical, ordered tag set attached to chunks.
package tagset

import (
	"slices"
	"strings"
)

// Delimiter separates tags in the stored scalar form. A tag containing it
// cannot round-trip and is dropped during canonicalization.
const Delimiter = ","

// Set is an ordered, duplicate-free collection of tags. Order is first-seen.
// The zero value is an empty set.
type Set struct {
	tags []string
}

// Canonicalize trims every entry, drops empty ones and entries containing the
// delimiter, and removes exact duplicates keeping the first occurrence.
// Case is preserved: "Go" and "go" are distinct tags.
func Canonicalize(raw []string) Set {
	if len(raw) == 0 {
		return Set{}
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := strings.TrimSpace(r)
		if t == "" || strings.Contains(t, Delimiter) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return Set{}
	}
	return Set{tags: out}
}

// Of is a shorthand for Canonicalize(tags).
func Of(tags ...string) Set { return Canonicalize(tags) }

// ParseList splits a user-supplied comma separated list ("a, b,c") into a set.
func ParseList(s string) Set {
	if strings.TrimSpace(s) == "" {
		return Set{}
	}
	return Canonicalize(strings.Split(s, Delimiter))
}

// Encode joins the set into the stored scalar form.
func Encode(s Set) string { return strings.Join(s.tags, Delimiter) }

// Decode parses the stored scalar form. Inverse of Encode for canonical sets.
func Decode(stored string) Set { return ParseList(stored) }

// Len returns the number of tags.
func (s Set) Len() int { return len(s.tags) }

// IsEmpty reports whether the set has no tags.
func (s Set) IsEmpty() bool { return len(s.tags) == 0 }

// Slice returns a copy of the tags in first-seen order.
func (s Set) Slice() []string {
	if len(s.tags) == 0 {
		return []string{}
	}
	return slices.Clone(s.tags)
}

// Contains reports whether tag is a member (case-sensitive).
func (s Set) Contains(tag string) bool { return slices.Contains(s.tags, tag) }

// Intersects reports whether the sets share at least one tag.
func (s Set) Intersects(other Set) bool {
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	for _, t := range small.tags {
		if large.Contains(t) {
			return true
		}
	}
	return false
}

// Equal reports whether both sets hold the same tags in the same order.
func (s Set) Equal(other Set) bool { return slices.Equal(s.tags, other.tags) }

// Union returns s followed by the tags of other that s does not contain.
func (s Set) Union(other Set) Set {
	return Canonicalize(append(s.Slice(), other.tags...))
}

// String renders the stored form; handy in logs.
func (s Set) String() string { return Encode(s) }
