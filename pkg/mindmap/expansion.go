package mindmap

import "sort"

// ExpansionSet holds the IDs of nodes whose children are shown.
// Membership is a property of the node, independent of current visibility:
// a collapsed ancestor hides an expanded descendant without forgetting it.
type ExpansionSet map[string]struct{}

// NewExpansionSet builds a set from ids.
func NewExpansionSet(ids ...string) ExpansionSet {
	s := make(ExpansionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s ExpansionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add marks id as expanded.
func (s ExpansionSet) Add(id string) { s[id] = struct{}{} }

// Remove marks id as collapsed.
func (s ExpansionSet) Remove(id string) { delete(s, id) }

// Toggle flips membership and reports whether id is now expanded.
func (s ExpansionSet) Toggle(id string) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Sorted returns the members in lexical order for stable persistence.
func (s ExpansionSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy.
func (s ExpansionSet) Clone() ExpansionSet {
	out := make(ExpansionSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
