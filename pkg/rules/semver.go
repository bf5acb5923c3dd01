package rules

import (
	"cmp"
	"strings"
)

// SemVer is a loosely parsed version string such as "1.2.0-beta.1+build7".
//
// Parsing never fails. The release and pre-release sections are split on dots and
// compared segment by segment; build metadata is ignored.
type SemVer struct {
	raw        string
	release    []string
	preRelease []string
	hasPre     bool
}

// ParseSemVer lower-cases and splits v.
func ParseSemVer(v string) SemVer {
	raw := strings.ToLower(strings.TrimSpace(v))
	s := raw
	if i := strings.IndexByte(s, '+'); i != -1 {
		s = s[:i]
	}

	release, pre, hasPre := strings.Cut(s, "-")
	version := SemVer{
		raw:     raw,
		release: strings.Split(release, "."),
		hasPre:  hasPre,
	}
	if hasPre {
		version.preRelease = strings.Split(pre, ".")
	}
	return version
}

// String returns the lower-cased source form.
func (v SemVer) String() string {
	return v.raw
}

// Compare returns -1, 0 or +1. A version without a pre-release sorts after the same
// release with one.
func (v SemVer) Compare(other SemVer) int {
	if c := compareSegments(v.release, other.release); c != 0 {
		return c
	}

	switch {
	case !v.hasPre && !other.hasPre:
		return 0
	case !v.hasPre:
		return 1
	case !other.hasPre:
		return -1
	}
	return compareSegments(v.preRelease, other.preRelease)
}

func compareSegments(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareSegment(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// compareSegment orders numeric segments numerically, others lexically, and numeric
// before non-numeric.
func compareSegment(a, b string) int {
	aNumeric, bNumeric := isNumeric(a), isNumeric(b)
	switch {
	case aNumeric && bNumeric:
		return compareNumeric(a, b)
	case aNumeric:
		return -1
	case bNumeric:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// compareNumeric compares digit strings of any length without overflowing.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return cmp.Compare(len(a), len(b))
	}
	return strings.Compare(a, b)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
