package graph

// DisjointSet is a union-find structure with union by rank and path
// compression. Elements are remembered in insertion order so that Sets is
// deterministic.
type DisjointSet[T comparable] struct {
	parent map[T]T
	rank   map[T]int
	order  []T
}

func NewDisjointSet[T comparable]() *DisjointSet[T] {
	return &DisjointSet[T]{
		parent: make(map[T]T),
		rank:   make(map[T]int),
	}
}

// Add registers x as a singleton set. Adding a known element is a no-op.
func (d *DisjointSet[T]) Add(x T) {
	if _, ok := d.parent[x]; ok {
		return
	}
	d.parent[x] = x
	d.rank[x] = 0
	d.order = append(d.order, x)
}

func (d *DisjointSet[T]) Contains(x T) bool {
	_, ok := d.parent[x]
	return ok
}

// Find returns the representative of x, adding x first if it is unknown.
func (d *DisjointSet[T]) Find(x T) T {
	d.Add(x)
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for x != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets of x and y and reports whether they were distinct.
func (d *DisjointSet[T]) Union(x, y T) bool {
	rx, ry := d.Find(x), d.Find(y)
	if rx == ry {
		return false
	}
	switch {
	case d.rank[rx] < d.rank[ry]:
		d.parent[rx] = ry
	case d.rank[rx] > d.rank[ry]:
		d.parent[ry] = rx
	default:
		d.parent[ry] = rx
		d.rank[rx]++
	}
	return true
}

func (d *DisjointSet[T]) Connected(x, y T) bool {
	if !d.Contains(x) || !d.Contains(y) {
		return false
	}
	return d.Find(x) == d.Find(y)
}

func (d *DisjointSet[T]) Len() int { return len(d.order) }

// Sets returns the equivalence classes. Classes are ordered by their first
// inserted member and members keep insertion order.
func (d *DisjointSet[T]) Sets() [][]T {
	slot := make(map[T]int)
	var sets [][]T
	for _, x := range d.order {
		root := d.Find(x)
		i, ok := slot[root]
		if !ok {
			i = len(sets)
			slot[root] = i
			sets = append(sets, nil)
		}
		sets[i] = append(sets[i], x)
	}
	return sets
}
