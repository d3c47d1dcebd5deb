// Package tag mints the unique add-operation tags
// an ORSet relies on. A tag carries the replica ID
// in its upper bits and a per-replica counter in
// the lower ones, so two replicas with distinct IDs
// never collide. Nothing here can check that IDs are
// distinct across replicas, that is up to whoever
// assigns them.
package tag

import (
	"sync/atomic"
	"time"

	"encoding/binary"

	"github.com/go-pluto/orset/crdt"
	"github.com/google/uuid"
)

// Bit layout of a tag: sign bit unused,
// 16 bits replica ID, 47 bits counter.
const (
	counterBits = 47
	counterMask = (int64(1) << counterBits) - 1

	// MaxReplicaID is the largest replica ID
	// that fits into a tag.
	MaxReplicaID = 1<<16 - 1
)

// Structs

// Generator hands out strictly increasing
// tags for one replica.
type Generator struct {
	replica uint16
	counter atomic.Int64
}

// Functions

// NewGenerator returns a generator for replica.
// The counter is seeded from the wall clock in
// milliseconds so that a restarted replica does not
// reissue tags as long as it minted fewer than one
// thousand tags per second on average before.
func NewGenerator(replica uint16) *Generator {
	return newGenerator(replica, time.Now())
}

func newGenerator(replica uint16, now time.Time) *Generator {

	g := &Generator{replica: replica}
	g.counter.Store(now.UnixMilli() & counterMask)

	return g
}

// Next returns a fresh tag. Safe for concurrent use.
func (g *Generator) Next() crdt.Tag {

	c := g.counter.Add(1) & counterMask

	return (int64(g.replica) << counterBits) | c
}

// Observe moves the counter of g past tag if tag was
// minted by the same replica. Replicas call it for
// every tag of restored state before minting new ones.
func (g *Generator) Observe(tag crdt.Tag) {

	replica, c := Split(tag)
	if replica != g.replica {
		return
	}

	for {

		cur := g.counter.Load()
		if cur >= c || g.counter.CompareAndSwap(cur, c) {
			return
		}
	}
}

// Replica returns the replica ID of g.
func (g *Generator) Replica() uint16 {
	return g.replica
}

// Split decomposes tag into its replica ID and counter.
func Split(tag crdt.Tag) (uint16, int64) {
	return uint16(tag >> counterBits), (tag & counterMask)
}

// RandomReplicaID derives a replica ID from a random
// UUID, as a suggestion for a new replica. Out of 65536
// IDs, two of n randomly chosen ones collide with a
// chance of about n*n/131072, so check the suggestion
// against the IDs already in use.
func RandomReplicaID() uint16 {

	id := uuid.New()

	return binary.BigEndian.Uint16(id[:2])
}
