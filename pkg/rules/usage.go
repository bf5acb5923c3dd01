package rules

// Usage accumulates which rules decided at least one match. It is owned by a single
// prune and is not safe for concurrent use.
type Usage struct {
	roots  map[string]struct{}
	prunes map[string]struct{}
}

// NewUsage returns an empty accumulator.
func NewUsage() *Usage {
	return &Usage{
		roots:  make(map[string]struct{}),
		prunes: make(map[string]struct{}),
	}
}

// Record notes the rule behind d and returns d.Result.
func (u *Usage) Record(d Decision) bool {
	if d.Rule == "" {
		return d.Result
	}
	if d.Exclude {
		u.prunes[d.Rule] = struct{}{}
	} else {
		u.roots[d.Rule] = struct{}{}
	}
	return d.Result
}

// UnusedRoots returns the roots of r that never decided a match.
func (u *Usage) UnusedRoots(r *PruningRules) []string {
	return unused(r.Roots(), u.roots)
}

// UnusedPrunes returns the prunes of r that never decided a match.
func (u *Usage) UnusedPrunes(r *PruningRules) []string {
	return unused(r.Prunes(), u.prunes)
}

func unused(rules []string, used map[string]struct{}) []string {
	var result []string
	for _, rule := range rules {
		if _, ok := used[rule]; !ok {
			result = append(result, rule)
		}
	}
	return result
}
