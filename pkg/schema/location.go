package schema

import "fmt"

// Location points at a declaration in a source file.
type Location struct {
	// Base is the root the path is relative to.
	Base   string
	Path   string
	Line   int
	Column int
}

// NewLocation returns a location for the start of path.
func NewLocation(base, path string) Location {
	return Location{Base: base, Path: path}
}

// At returns a copy of l pointing at line and column.
func (l Location) At(line, column int) Location {
	l.Line = line
	l.Column = column
	return l
}

// String returns "path:line:column", omitting unknown parts.
func (l Location) String() string {
	switch {
	case l.Line <= 0:
		return l.Path
	case l.Column <= 0:
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
	}
}
