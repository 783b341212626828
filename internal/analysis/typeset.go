package analysis

import (
	"strings"

	"untangle/internal/resolver"
)

// TypeSet is an insertion-ordered set of candidate types.
type TypeSet struct {
	keys  map[string]struct{}
	items []resolver.Type
}

func NewTypeSet(types ...resolver.Type) *TypeSet {
	s := &TypeSet{keys: make(map[string]struct{})}
	for _, t := range types {
		s.Add(t)
	}
	return s
}

func (s *TypeSet) Add(t resolver.Type) bool {
	key := t.Describe()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.items = append(s.items, t)
	return true
}

func (s *TypeSet) Merge(o *TypeSet) {
	if o == nil {
		return
	}
	for _, t := range o.items {
		s.Add(t)
	}
}

func (s *TypeSet) Copy() *TypeSet {
	c := NewTypeSet()
	c.Merge(s)
	return c
}

func (s *TypeSet) Items() []resolver.Type { return s.items }

func (s *TypeSet) Len() int { return len(s.items) }

func (s *TypeSet) IsEmpty() bool { return len(s.items) == 0 }

func (s *TypeSet) String() string {
	names := make([]string, len(s.items))
	for i, t := range s.items {
		names[i] = t.Describe()
	}
	return "{" + strings.Join(names, ", ") + "}"
}
