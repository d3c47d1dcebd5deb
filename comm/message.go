package comm

import (
	"github.com/go-pluto/orset/crdt"
)

// Structs

// Message represents a state synchronization message
// between replicas. It consists of the name, incarnation
// and vector clock of the originating replica and its
// complete ORSet state to merge at the receiver.
//
// A replica that starts without stored state picks a
// new incarnation. Its own vector clock entry is keyed
// by ClockKey, so counting restarts from zero never
// looks like history a peer has already seen.
type Message struct {
	Sender      string             `json:"sender"`
	Incarnation string             `json:"incarnation,omitempty"`
	VClock      VClock             `json:"vclock"`
	State       crdt.State[string] `json:"state"`
}

// Functions

// InitMessage returns a fresh Message variable.
func InitMessage(sender string) *Message {

	return &Message{
		Sender: sender,
		VClock: make(VClock),
	}
}

// ClockKey returns the vector clock entry
// a replica incarnation counts its mutations in.
func ClockKey(sender string, incarnation string) string {

	if incarnation == "" {
		return sender
	}

	return sender + "@" + incarnation
}

// ClockKey returns the vector clock entry of
// the replica incarnation that sent m.
func (m *Message) ClockKey() string {
	return ClockKey(m.Sender, m.Incarnation)
}

// Set returns the ORSet carried by m.
func (m *Message) Set() *crdt.ORSet[string] {
	return crdt.FromState(m.State)
}
