package dscore

import (
	"slices"
	"strings"
)

// State is the logical state vector a connector must hold before a query runs.
type State []string

// Equal compares state vectors element by element.
func (s State) Equal(other State) bool { return slices.Equal(s, other) }

// Clone returns an independent copy.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return slices.Clone(s)
}

// At returns the element at i, or "" when the vector is shorter.
func (s State) At(i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i]
}

func (s State) String() string { return "[" + strings.Join(s, " ") + "]" }
