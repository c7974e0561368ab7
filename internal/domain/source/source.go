// Package source turns chunk hits back into document-level views.
package source

import (
	"path"
	"strings"
)

// DirectInput is the source recorded for text ingested without a filename.
const DirectInput = "direct_input"

var tempMarkers = []string{
	"/tmp/",
	"/var/tmp/",
	"/var/folders/",
	"/appdata/local/temp/",
	"/windows/temp/",
}

// Normalize returns the display form of a stored source. Sources that look
// like a temporary upload path collapse to their final path component;
// everything else is returned unchanged.
func Normalize(src string) string {
	if !IsTempPath(src) {
		return src
	}
	return Base(src)
}

// IsTempPath reports whether src looks like a filesystem temp path.
func IsTempPath(src string) bool {
	p := strings.ToLower(toSlash(src))
	if !strings.Contains(p, "/") {
		return false
	}
	for _, m := range tempMarkers {
		if strings.Contains(p, m) {
			return true
		}
	}
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if seg == "tmp" || seg == "temp" {
			return true
		}
	}
	return false
}

// Base returns the final path component of src, accepting both separators.
func Base(src string) string {
	p := strings.TrimRight(toSlash(src), "/")
	if p == "" {
		return src
	}
	return path.Base(p)
}

// Matches reports whether a stored source refers to target: equal, or a
// path whose final components end with target.
func Matches(stored, target string) bool {
	if stored == target {
		return true
	}
	if target == "" {
		return false
	}
	s := toSlash(stored)
	t := toSlash(target)
	return strings.HasSuffix(s, "/"+strings.TrimLeft(t, "/"))
}

func toSlash(p string) string { return strings.ReplaceAll(p, `\`, "/") }
