package rules

import (
	"sort"
	"strings"
)

// Decision is the outcome of matching one identifier against a rule set.
type Decision struct {
	// Result is the answer to the question asked (included, or excluded).
	Result bool
	// Rule is the rule that decided, empty when no rule matched.
	Rule string
	// Exclude reports whether Rule came from the exclude side.
	Exclude bool
}

// IdentifierSet is an immutable set of include and exclude identifiers.
type IdentifierSet struct {
	includes map[string]struct{}
	excludes map[string]struct{}
}

// NewIdentifierSet builds a set. Blank identifiers are ignored.
func NewIdentifierSet(includes, excludes []string) IdentifierSet {
	return IdentifierSet{
		includes: toSet(includes),
		excludes: toSet(excludes),
	}
}

// Includes reports whether id is included. With no include rules everything not
// excluded is included.
func (s IdentifierSet) Includes(id string) Decision {
	rule, exclude, found := s.nearest(id)
	if !found {
		return Decision{Result: len(s.includes) == 0}
	}
	return Decision{Result: !exclude, Rule: rule, Exclude: exclude}
}

// Excludes reports whether id is excluded. A more specific include shields id from a
// broader exclude.
func (s IdentifierSet) Excludes(id string) Decision {
	rule, exclude, found := s.nearest(id)
	if !found {
		return Decision{}
	}
	return Decision{Result: exclude, Rule: rule, Exclude: exclude}
}

// IsEmpty reports whether the set has no rules at all.
func (s IdentifierSet) IsEmpty() bool {
	return len(s.includes) == 0 && len(s.excludes) == 0
}

// IncludeRules returns the include identifiers, sorted.
func (s IdentifierSet) IncludeRules() []string {
	return sortedKeys(s.includes)
}

// ExcludeRules returns the exclude identifiers, sorted.
func (s IdentifierSet) ExcludeRules() []string {
	return sortedKeys(s.excludes)
}

// nearest walks from id towards "*" and returns the first rule found. Excludes are
// tested before includes at every level.
func (s IdentifierSet) nearest(id string) (rule string, exclude bool, found bool) {
	for r := id; r != ""; r = Enclosing(r) {
		if _, ok := s.excludes[r]; ok {
			return r, true, true
		}
		if _, ok := s.includes[r]; ok {
			return r, false, true
		}
	}
	return "", false, false
}

// Enclosing returns the identifier one level up, or "" above "*".
//
//	pkg.Type#member -> pkg.Type
//	pkg.Outer.Inner -> pkg.Outer.*
//	pkg.Type        -> pkg.*
//	a.b.*           -> a.*
//	a.*             -> *
func Enclosing(id string) string {
	if i := strings.LastIndexByte(id, '#'); i != -1 {
		return id[:i]
	}

	end := len(id)
	if strings.HasSuffix(id, ".*") {
		end -= 2
	}
	if i := strings.LastIndexByte(id[:end], '.'); i != -1 {
		return id[:i] + ".*"
	}
	if id != "*" {
		return "*"
	}
	return ""
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
