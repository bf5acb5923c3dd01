package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrInvertedVersions is returned when the oldest retained version is newer than the
	// newest one.
	ErrInvertedVersions = errors.New("since must not be greater than until")
	// ErrOnlyWithRange is returned when only is combined with since or until.
	ErrOnlyWithRange = errors.New("only cannot be combined with since or until")
)

// PruningRules is the immutable configuration of one prune: roots, prunes and an
// optional version window.
type PruningRules struct {
	ids    IdentifierSet
	since  string
	until  string
	only   string
	oldest *SemVer
	newest *SemVer
}

// Builder accumulates rules. The zero value is not usable; call NewBuilder.
type Builder struct {
	roots  []string
	prunes []string
	since  string
	until  string
	only   string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddRoot adds identifiers to retain.
func (b *Builder) AddRoot(ids ...string) *Builder {
	b.roots = append(b.roots, ids...)
	return b
}

// AddPrune adds identifiers to remove.
func (b *Builder) AddPrune(ids ...string) *Builder {
	b.prunes = append(b.prunes, ids...)
	return b
}

// Since sets the oldest version to retain.
func (b *Builder) Since(version string) *Builder {
	b.since = version
	return b
}

// Until sets the newest version to retain.
func (b *Builder) Until(version string) *Builder {
	b.until = version
	return b
}

// Only retains exactly the members whose version window contains version.
func (b *Builder) Only(version string) *Builder {
	b.only = version
	return b
}

// Build validates the configuration. When no root was added the rules retain "*".
func (b *Builder) Build() (*PruningRules, error) {
	roots := b.roots
	if len(toSet(roots)) == 0 {
		roots = []string{"*"}
	}

	r := &PruningRules{
		ids:   NewIdentifierSet(roots, b.prunes),
		since: b.since,
		until: b.until,
		only:  b.only,
	}

	if b.only != "" {
		if b.since != "" || b.until != "" {
			return nil, ErrOnlyWithRange
		}
		v := ParseSemVer(b.only)
		r.oldest, r.newest = &v, &v
		return r, nil
	}

	if b.since != "" {
		v := ParseSemVer(b.since)
		r.oldest = &v
	}
	if b.until != "" {
		v := ParseSemVer(b.until)
		r.newest = &v
	}
	if r.oldest != nil && r.newest != nil && r.oldest.Compare(*r.newest) > 0 {
		return nil, fmt.Errorf("%w: since=%s until=%s", ErrInvertedVersions, b.since, b.until)
	}
	return r, nil
}

// Roots returns the root identifiers, sorted.
func (r *PruningRules) Roots() []string {
	return r.ids.IncludeRules()
}

// Prunes returns the prune identifiers, sorted.
func (r *PruningRules) Prunes() []string {
	return r.ids.ExcludeRules()
}

// Since returns the configured oldest version, if any.
func (r *PruningRules) Since() string {
	return r.since
}

// Until returns the configured newest version, if any.
func (r *PruningRules) Until() string {
	return r.until
}

// Only returns the configured single version, if any.
func (r *PruningRules) Only() string {
	return r.only
}

// IsEmpty reports whether these rules keep everything.
func (r *PruningRules) IsEmpty() bool {
	roots := r.Roots()
	return len(roots) == 1 && roots[0] == "*" &&
		len(r.Prunes()) == 0 &&
		r.oldest == nil && r.newest == nil
}

// IsRoot reports whether id (a type or "Type#member") is explicitly retained.
func (r *PruningRules) IsRoot(id string) Decision {
	return r.ids.Includes(id)
}

// IsPruned reports whether id is explicitly removed.
func (r *PruningRules) IsPruned(id string) Decision {
	return r.ids.Excludes(id)
}

// IsRetainedVersion reports whether a member annotated with the given since and until
// option values survives the version window. Empty values are unbounded.
func (r *PruningRules) IsRetainedVersion(since, until string) bool {
	if since != "" && r.newest != nil && ParseSemVer(since).Compare(*r.newest) > 0 {
		return false
	}
	if until != "" && r.oldest != nil && ParseSemVer(until).Compare(*r.oldest) <= 0 {
		return false
	}
	return true
}
