package crdt

import (
	"testing"
)

// Variables

var (
	k1 = "1"
	k2 = "🕤🕤🕤🙉🙉🚀🚀🚀🚶🚶🆒™"
	k3 = "☕"
)

// Functions

// TestContains executes a white-box unit test
// on implemented Contains() function.
func TestContains(t *testing.T) {

	// Create new ORSet.
	s := InitORSet[string]()

	// Make sure, set is initially empty.
	if len(s.live) != 0 || len(s.tombstones) != 0 {
		t.Fatalf("[crdt.TestContains] Expected set to be empty initially, but found %d live and %d dead entries\n", len(s.live), len(s.tombstones))
	}

	if s.Contains(k1) {
		t.Fatalf("[crdt.TestContains] Expected '%s' not to be in set but Contains() returns true.\n", k1)
	}

	// Place a pair directly into the internal map.
	insert(s.live, k1, 10)
	if !s.Contains(k1) {
		t.Fatalf("[crdt.TestContains] Expected '%s' to be in set but Contains() returns false.\n", k1)
	}

	// Tombstone exactly that pair.
	insert(s.tombstones, k1, 10)
	if s.Contains(k1) {
		t.Fatalf("[crdt.TestContains] Expected '%s' not to be in set after tombstoning but Contains() returns true.\n", k1)
	}

	// A second live tag makes the element visible again.
	insert(s.live, k1, 11)
	if !s.Contains(k1) {
		t.Fatalf("[crdt.TestContains] Expected '%s' to be in set with one surviving tag but Contains() returns false.\n", k1)
	}

	// A tombstone for an unrelated element does not matter.
	insert(s.tombstones, k2, 11)
	if !s.Contains(k1) {
		t.Fatalf("[crdt.TestContains] Expected '%s' to stay in set but Contains() returns false.\n", k1)
	}
}

// TestAdd executes a white-box unit test
// on implemented Add() function.
func TestAdd(t *testing.T) {

	s := InitORSet[string]()

	if tags, found := s.live[k1]; found {
		t.Fatalf("[crdt.TestAdd] Expected '%s' not to be an active map key but found '%v' at that place.\n", k1, tags)
	}

	s.Add(k1, 1)
	if _, found := s.live[k1][1]; !found {
		t.Fatalf("[crdt.TestAdd] Expected tag 1 to be recorded for '%s'.\n", k1)
	}

	// Adding the same pair again is a no-op.
	s.Add(k1, 1)
	if len(s.live[k1]) != 1 {
		t.Fatalf("[crdt.TestAdd] Expected exactly one tag for '%s' but found %d.\n", k1, len(s.live[k1]))
	}

	s.Add(k1, 2)
	s.Add(k3, 3)
	if len(s.live[k1]) != 2 {
		t.Fatalf("[crdt.TestAdd] Expected two tags for '%s' but found %d.\n", k1, len(s.live[k1]))
	}

	if len(s.tombstones) != 0 {
		t.Fatalf("[crdt.TestAdd] Expected Add() to leave tombstones untouched but found %d entries.\n", len(s.tombstones))
	}
}

// TestRemove executes a white-box unit test
// on implemented Remove() function.
func TestRemove(t *testing.T) {

	s := InitORSet[string]()

	// Removing an unknown element does nothing.
	s.Remove(k2)
	if len(s.tombstones) != 0 {
		t.Fatalf("[crdt.TestRemove] Expected no tombstones after removing unknown element but found %d.\n", len(s.tombstones))
	}

	s.Add(k2, 1)
	s.Add(k2, 2)
	s.Add(k3, 3)
	s.Remove(k2)

	if len(s.tombstones[k2]) != 2 {
		t.Fatalf("[crdt.TestRemove] Expected both tags of '%s' to be tombstoned but found %d.\n", k2, len(s.tombstones[k2]))
	}

	if len(s.live[k2]) != 2 {
		t.Fatalf("[crdt.TestRemove] Expected live tags of '%s' to be kept but found %d.\n", k2, len(s.live[k2]))
	}

	if _, found := s.tombstones[k3]; found {
		t.Fatalf("[crdt.TestRemove] Expected '%s' not to be tombstoned.\n", k3)
	}
}

// TestMergeSelf makes sure merging a set into
// itself leaves it untouched.
func TestMergeSelf(t *testing.T) {

	s := InitORSet[int]()
	s.Add(7, 1)
	s.Add(8, 2)
	s.Remove(8)

	s.Merge(s)
	s.Merge(nil)

	if len(s.live) != 2 || len(s.tombstones) != 1 {
		t.Fatalf("[crdt.TestMergeSelf] Expected 2 live and 1 dead entries but found %d and %d.\n", len(s.live), len(s.tombstones))
	}
}
