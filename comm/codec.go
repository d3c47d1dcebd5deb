package comm

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Variables

// ErrMissingSender is returned for messages
// that do not name their originating replica.
var ErrMissingSender = errors.New("invalid sync message because sender node name is missing")

// Functions

// EncodeMessage marshals m into its wire representation.
func EncodeMessage(m *Message) ([]byte, error) {

	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal sync message")
	}

	return data, nil
}

// DecodeMessage parses a received wire representation
// back into a Message and checks it for completeness.
func DecodeMessage(data []byte) (*Message, error) {

	m := &Message{}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrap(err, "invalid sync message")
	}

	if m.Sender == "" {
		return nil, ErrMissingSender
	}

	if m.VClock == nil {
		m.VClock = make(VClock)
	}

	return m, nil
}
