package graph

// UnionFind is a disjoint-set forest over comparable elements.
type UnionFind[T comparable] struct {
	parent map[T]T
	rank   map[T]int
	order  []T
}

// NewUnionFind returns a forest where every element is its own set.
func NewUnionFind[T comparable](elements ...T) *UnionFind[T] {
	u := &UnionFind[T]{
		parent: make(map[T]T, len(elements)),
		rank:   make(map[T]int, len(elements)),
	}
	for _, e := range elements {
		u.Add(e)
	}
	return u
}

// Add inserts x as a singleton set. Adding an existing element is a no-op.
func (u *UnionFind[T]) Add(x T) {
	if _, ok := u.parent[x]; ok {
		return
	}
	u.parent[x] = x
	u.order = append(u.order, x)
}

// Find returns the representative of the set containing x, adding x if needed.
func (u *UnionFind[T]) Find(x T) T {
	u.Add(x)

	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// Path compression.
	for x != root {
		next := u.parent[x]
		u.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets containing a and b.
func (u *UnionFind[T]) Union(a, b T) {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return
	}

	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// Connected reports whether a and b are in the same set.
func (u *UnionFind[T]) Connected(a, b T) bool {
	return u.Find(a) == u.Find(b)
}

// Sets returns every set. Sets and their members keep insertion order.
func (u *UnionFind[T]) Sets() [][]T {
	index := make(map[T]int)
	var sets [][]T
	for _, e := range u.order {
		root := u.Find(e)
		i, ok := index[root]
		if !ok {
			i = len(sets)
			index[root] = i
			sets = append(sets, nil)
		}
		sets[i] = append(sets[i], e)
	}
	return sets
}
