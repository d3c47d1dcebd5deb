package crdt

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Structs

// Tag identifies exactly one add operation.
type Tag = int64

// tagSet is the set of tags recorded for one element.
type tagSet map[Tag]struct{}

// ORSet conforms to the specification of an observed-
// removed set defined by Shapiro, Preguiça, Baquero
// and Zawirski. For every element it keeps the tags of
// all add operations seen so far and, separately, the
// tags that have been tombstoned by a remove.
type ORSet[T cmp.Ordered] struct {
	live       map[T]tagSet
	tombstones map[T]tagSet
}

// Functions

// InitORSet returns an empty initialized new
// observed-removed set.
func InitORSet[T cmp.Ordered]() *ORSet[T] {

	return &ORSet[T]{
		live:       make(map[T]tagSet),
		tombstones: make(map[T]tagSet),
	}
}

// insert places tag into the tag set of e in sets,
// creating the tag set on first use.
func insert[T cmp.Ordered](sets map[T]tagSet, e T, tag Tag) {

	tags, found := sets[e]
	if !found {
		tags = make(tagSet)
		sets[e] = tags
	}

	tags[tag] = struct{}{}
}

// Contains returns true if at least one tag of element
// e is live and not yet tombstoned, false otherwise.
func (s *ORSet[T]) Contains(e T) bool {

	dead := s.tombstones[e]

	for tag := range s.live[e] {

		if _, removed := dead[tag]; !removed {
			return true
		}
	}

	return false
}

// Add inserts element e under tag into the set. The
// caller has to guarantee that tag was never used for
// any other add operation on any replica. Adding the
// exact same pair twice has no further effect.
func (s *ORSet[T]) Add(e T, tag Tag) {
	insert(s.live, e, tag)
}

// Remove tombstones every tag of element e this replica
// has observed so far. Tags of concurrent adds that have
// not been merged in yet stay untouched, which makes a
// concurrent add win over this remove.
func (s *ORSet[T]) Remove(e T) {

	for tag := range s.live[e] {
		insert(s.tombstones, e, tag)
	}
}

// Merge folds the state of other into s by building the
// union of both live-tag sets and both tombstone sets.
// other is left unmodified.
func (s *ORSet[T]) Merge(other *ORSet[T]) {

	if other == nil || other == s {
		return
	}

	for e, tags := range other.live {
		for tag := range tags {
			insert(s.live, e, tag)
		}
	}

	for e, tags := range other.tombstones {
		for tag := range tags {
			insert(s.tombstones, e, tag)
		}
	}
}

// Elements returns every member of the set exactly
// once, in ascending order.
func (s *ORSet[T]) Elements() []T {

	elements := make([]T, 0, len(s.live))

	for e := range s.live {

		if s.Contains(e) {
			elements = append(elements, e)
		}
	}

	slices.Sort(elements)

	return elements
}

// Len returns the number of members.
func (s *ORSet[T]) Len() int {

	n := 0

	for e := range s.live {

		if s.Contains(e) {
			n++
		}
	}

	return n
}

// Tags returns the live and not tombstoned tags
// of element e in ascending order.
func (s *ORSet[T]) Tags(e T) []Tag {

	dead := s.tombstones[e]
	tags := make([]Tag, 0, len(s.live[e]))

	for tag := range s.live[e] {

		if _, removed := dead[tag]; !removed {
			tags = append(tags, tag)
		}
	}

	slices.Sort(tags)

	return tags
}

// String renders the members of the set sorted
// and brace-delimited, e.g. {a, b, c}.
func (s *ORSet[T]) String() string {

	elements := s.Elements()
	parts := make([]string, len(elements))

	for i, e := range elements {
		parts[i] = fmt.Sprintf("%v", e)
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
