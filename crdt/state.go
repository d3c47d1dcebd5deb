package crdt

import (
	"cmp"
	"slices"
)

// Structs

// Pair is one (element, tag) pair of either
// the live-tag set or the tombstone set.
type Pair[T cmp.Ordered] struct {
	Value T   `json:"value"`
	Tag   Tag `json:"tag"`
}

// State is the enumerable form of an ORSet that
// replication and storage layers ship around.
type State[T cmp.Ordered] struct {
	Live       []Pair[T] `json:"live"`
	Tombstones []Pair[T] `json:"tombstones"`
}

// Functions

// comparePairs orders pairs by value first, tag second.
func comparePairs[T cmp.Ordered](a, b Pair[T]) int {

	if c := cmp.Compare(a.Value, b.Value); c != 0 {
		return c
	}

	return cmp.Compare(a.Tag, b.Tag)
}

// flatten turns per-element tag sets into a
// deterministically sorted slice of pairs.
func flatten[T cmp.Ordered](sets map[T]tagSet) []Pair[T] {

	pairs := make([]Pair[T], 0, len(sets))

	for e, tags := range sets {
		for tag := range tags {
			pairs = append(pairs, Pair[T]{Value: e, Tag: tag})
		}
	}

	slices.SortFunc(pairs, comparePairs[T])

	return pairs
}

// State enumerates both internal sets of s. Two
// replicas holding the same logical state produce
// equal State values.
func (s *ORSet[T]) State() State[T] {

	return State[T]{
		Live:       flatten(s.live),
		Tombstones: flatten(s.tombstones),
	}
}

// FromState reconstructs an ORSet from an enumerated
// state, e.g. one received from another replica.
func FromState[T cmp.Ordered](state State[T]) *ORSet[T] {

	s := InitORSet[T]()

	for _, p := range state.Live {
		insert(s.live, p.Value, p.Tag)
	}

	for _, p := range state.Tombstones {
		insert(s.tombstones, p.Value, p.Tag)
	}

	return s
}

// Clone returns a deep copy of s.
func (s *ORSet[T]) Clone() *ORSet[T] {

	c := InitORSet[T]()
	c.Merge(s)

	return c
}
