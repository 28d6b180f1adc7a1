package fingerprint

import "sort"

// Set is a collection of distinct fingerprints. The zero value is not usable;
// create sets with NewSet.
type Set struct {
	items map[string]struct{}
}

// NewSet returns a set holding the given fingerprints. Duplicates collapse.
func NewSet(fps ...string) Set {
	s := Set{items: make(map[string]struct{}, len(fps))}
	for _, fp := range fps {
		s.items[fp] = struct{}{}
	}
	return s
}

func (s Set) Contains(fp string) bool {
	_, ok := s.items[fp]
	return ok
}

// Add inserts fp and reports whether it was absent.
func (s Set) Add(fp string) bool {
	if s.Contains(fp) {
		return false
	}
	s.items[fp] = struct{}{}
	return true
}

func (s Set) Len() int {
	return len(s.items)
}

// Union returns a new set with the members of both s and other.
// Neither input is modified.
func (s Set) Union(other Set) Set {
	out := Set{items: make(map[string]struct{}, s.Len()+other.Len())}
	for fp := range s.items {
		out.items[fp] = struct{}{}
	}
	for fp := range other.items {
		out.items[fp] = struct{}{}
	}
	return out
}

// Sorted returns the members in ascending order. Never returns nil.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s.items))
	for fp := range s.items {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold exactly the same members.
func (s Set) Equal(other Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for fp := range s.items {
		if !other.Contains(fp) {
			return false
		}
	}
	return true
}
