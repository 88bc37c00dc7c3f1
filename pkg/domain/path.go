package domain

import "strings"

// PathSeparator delimits the segments of a node path.
const PathSeparator = "/"

// Path is a parsed node address. Each segment names a node among its siblings.
// The empty Path addresses the root collection.
type Path []string

// ParsePath splits a slash-delimited path. The empty string is the root path.
// Splitting is strict: "a//b" keeps an empty middle segment, which matches nothing.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	return Path(strings.Split(s, PathSeparator))
}

// IsRoot reports whether the path addresses the root collection.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent returns the path without its final segment. The parent of a top-level
// node (and of the root) is the root path.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return Path{}
	}
	return p[:len(p)-1]
}

// Base returns the final segment, or "" for the root path.
func (p Path) Base() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Join appends segments, returning a new path.
func (p Path) Join(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

func (p Path) String() string {
	return strings.Join(p, PathSeparator)
}
