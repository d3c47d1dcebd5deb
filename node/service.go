// Package node runs one orset replica: it owns the
// replica's ORSet, serializes access to it, mints tags
// for local adds, keeps the replica's vector clock and
// persists state after every change.
package node

import (
	"sync"

	"github.com/go-pluto/orset/comm"
	"github.com/go-pluto/orset/crdt"
	"github.com/go-pluto/orset/storage"
	"github.com/go-pluto/orset/tag"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Interfaces

// Service defines the interface a replica
// in an orset network provides.
type Service interface {

	// Add inserts elem under a freshly minted tag
	// and returns that tag. An error wrapping
	// comm.ErrNotPersisted still comes with a valid
	// tag, the add took place.
	Add(elem string) (crdt.Tag, error)

	// Remove tombstones every tag of elem this
	// replica has observed so far.
	Remove(elem string) error

	// Contains reports whether elem is a member.
	Contains(elem string) bool

	// Elements returns all members in ascending order.
	Elements() []string

	// String renders the members for humans.
	String() string

	// Merge folds the state carried by msg into
	// the local replica. It always merges, the
	// clock of msg is never used to skip it.
	Merge(msg *comm.Message) error

	// Snapshot returns the complete state of the
	// replica, ready to be sent to other replicas.
	Snapshot() *comm.Message
}

// Structs

type service struct {
	lock        *sync.RWMutex
	name        string
	incarnation string
	clockKey    string
	set         *crdt.ORSet[string]
	tags        *tag.Generator
	clock       comm.VClock
	store       storage.Store
}

// Functions

// NewService takes in all required parameters for spinning
// up a replica. If store holds earlier state of a replica
// with the same name, that state is restored first. A nil
// store keeps the replica in memory only. Without
// restored state the replica starts a new incarnation.
func NewService(name string, tags *tag.Generator, store storage.Store) (Service, error) {

	s := &service{
		lock:  new(sync.RWMutex),
		name:  name,
		set:   crdt.InitORSet[string](),
		tags:  tags,
		clock: make(comm.VClock),
		store: store,
	}
	s.setIncarnation(newIncarnation())

	if store == nil {
		return s, nil
	}

	data, found, err := store.Load(name)
	if err != nil {
		return nil, err
	}

	if !found {
		return s, nil
	}

	msg, err := comm.DecodeMessage(data)
	if err != nil {
		return nil, errors.Wrapf(err, "stored state of replica %s is corrupt", name)
	}

	s.set = msg.Set()
	s.clock = msg.VClock

	if msg.Incarnation != "" {
		s.setIncarnation(msg.Incarnation)
	}

	// Never mint a tag again that is part of
	// the restored state already.
	for _, p := range msg.State.Live {
		tags.Observe(p.Tag)
	}

	return s, nil
}

// newIncarnation returns a short random
// identifier for one life of a replica.
func newIncarnation() string {
	return uuid.NewString()[:8]
}

func (s *service) setIncarnation(incarnation string) {
	s.incarnation = incarnation
	s.clockKey = comm.ClockKey(s.name, incarnation)
}

// snapshot expects s.lock to be held.
func (s *service) snapshot() *comm.Message {

	return &comm.Message{
		Sender:      s.name,
		Incarnation: s.incarnation,
		VClock:      s.clock.Copy(),
		State:       s.set.State(),
	}
}

// persist writes the current state to the store.
// It expects the write lock to be held. Failures
// wrap comm.ErrNotPersisted, the in-memory state
// has changed already at this point.
func (s *service) persist() error {

	if s.store == nil {
		return nil
	}

	data, err := comm.EncodeMessage(s.snapshot())
	if err == nil {
		err = s.store.Save(s.name, data)
	}

	if err != nil {
		return errors.Wrapf(comm.ErrNotPersisted, "replica %s: %v", s.name, err)
	}

	return nil
}

func (s *service) Add(elem string) (crdt.Tag, error) {

	// Write-lock the set.
	s.lock.Lock()
	defer s.lock.Unlock()

	t := s.tags.Next()

	s.set.Add(elem, t)
	s.clock.Inc(s.clockKey)

	return t, s.persist()
}

func (s *service) Remove(elem string) error {

	s.lock.Lock()
	defer s.lock.Unlock()

	// Nothing observed, nothing to tombstone.
	if !s.set.Contains(elem) {
		return nil
	}

	s.set.Remove(elem)
	s.clock.Inc(s.clockKey)

	return s.persist()
}

func (s *service) Contains(elem string) bool {

	// Read-lock the set.
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.set.Contains(elem)
}

func (s *service) Elements() []string {

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.set.Elements()
}

func (s *service) String() string {

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.set.String()
}

func (s *service) Merge(msg *comm.Message) error {

	// Decode outside of the lock.
	other := msg.Set()

	s.lock.Lock()
	defer s.lock.Unlock()

	s.set.Merge(other)
	s.clock.Merge(msg.VClock)

	return s.persist()
}

func (s *service) Snapshot() *comm.Message {

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.snapshot()
}
