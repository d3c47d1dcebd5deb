package crdt

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"encoding/base64"
)

// Variables

var (
	// ErrInvalidDelta is returned for marshalled deltas
	// with fewer than three pipe-separated parts.
	ErrInvalidDelta = errors.New("invalid CRDT update message found during parsing")

	// ErrUnsupportedOperation is returned for any
	// operation other than add and rmv.
	ErrUnsupportedOperation = errors.New("unsupported update operation specified in CRDT message")

	// ErrOddArguments is returned when values and
	// tags do not come in pairs.
	ErrOddArguments = errors.New("odd number of arguments, needs even one")
)

// Operations a delta can carry.
const (
	OpAdd    = "add"
	OpRemove = "rmv"
)

// Structs

// Delta represents an op-based update message for
// other replicas of an ORSet. It contains the update
// operation (add or rmv) and the affected pairs.
type Delta[T cmp.Ordered] struct {
	Operation string
	Pairs     []Pair[T]
}

// Functions

// AddDelta performs Add(e, tag) locally and returns
// the delta to send downstream.
func (s *ORSet[T]) AddDelta(e T, tag Tag) *Delta[T] {

	s.Add(e, tag)

	return &Delta[T]{
		Operation: OpAdd,
		Pairs:     []Pair[T]{{Value: e, Tag: tag}},
	}
}

// RemoveDelta performs Remove(e) locally and returns
// the delta listing every pair it tombstoned.
func (s *ORSet[T]) RemoveDelta(e T) *Delta[T] {

	s.Remove(e)

	d := &Delta[T]{
		Operation: OpRemove,
		Pairs:     make([]Pair[T], 0, len(s.live[e])),
	}

	for tag := range s.live[e] {
		d.Pairs = append(d.Pairs, Pair[T]{Value: e, Tag: tag})
	}

	return d
}

// ApplyDelta executes the effect part of a received
// delta on s. A rmv delta may arrive ahead of the
// add it refers to; the pair is tombstoned anyway and
// stays dead once the add shows up.
func (s *ORSet[T]) ApplyDelta(d *Delta[T]) error {

	var target map[T]tagSet

	switch d.Operation {
	case OpAdd:
		target = s.live
	case OpRemove:
		target = s.tombstones
	default:
		return ErrUnsupportedOperation
	}

	for _, p := range d.Pairs {
		insert(target, p.Value, p.Tag)
	}

	return nil
}

// String marshals d into op|value|tag|value|tag...,
// values base64-encoded so that they may contain
// the pipe delimiter.
func (d *Delta[T]) String() string {

	var b strings.Builder
	b.WriteString(d.Operation)

	for _, p := range d.Pairs {

		value := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%v", p.Value)))
		fmt.Fprintf(&b, "|%s|%d", value, p.Tag)
	}

	return b.String()
}

// ParseDelta takes in a marshalled version of a
// delta over string elements and turns it back into
// the struct representation.
func ParseDelta(raw string) (*Delta[string], error) {

	// Split message at pipe delimiters.
	parts := strings.Split(raw, "|")

	// Fewer than three parts cannot hold
	// operation|value|tag.
	if len(parts) < 3 {
		return nil, ErrInvalidDelta
	}

	if (parts[0] != OpAdd) && (parts[0] != OpRemove) {
		return nil, ErrUnsupportedOperation
	}

	if ((len(parts) - 1) % 2) != 0 {
		return nil, ErrOddArguments
	}

	d := &Delta[string]{
		Operation: parts[0],
		Pairs:     make([]Pair[string], 0, ((len(parts) - 1) / 2)),
	}

	for value := 1; value < len(parts); value += 2 {

		decValue, err := base64.StdEncoding.DecodeString(parts[value])
		if err != nil {
			return nil, fmt.Errorf("decoding base64 value of CRDT message failed: %v", err)
		}

		tag, err := strconv.ParseInt(parts[(value+1)], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tag '%s' in CRDT message: %v", parts[(value+1)], err)
		}

		d.Pairs = append(d.Pairs, Pair[string]{
			Value: string(decValue),
			Tag:   tag,
		})
	}

	return d, nil
}
