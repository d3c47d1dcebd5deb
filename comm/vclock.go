package comm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Structs

// VClock maps replica names to the number of local
// mutations of that replica folded into a state.
type VClock map[string]uint64

// Functions

// Inc increments the entry of node by one.
func (v VClock) Inc(node string) {
	v[node]++
}

// Merge sets every entry of v to the
// maximum of itself and other.
func (v VClock) Merge(other VClock) {

	for node, value := range other {

		if value > v[node] {
			v[node] = value
		}
	}
}

// Copy returns a deep copy of v.
func (v VClock) Copy() VClock {

	c := make(VClock, len(v))
	for node, value := range v {
		c[node] = value
	}

	return c
}

// Descends reports whether v has seen at
// least everything other has seen.
func (v VClock) Descends(other VClock) bool {

	for node, value := range other {

		if v[node] < value {
			return false
		}
	}

	return true
}

// String marshals v into node:value pairs
// separated by semicolons, sorted by node.
func (v VClock) String() string {

	nodes := make([]string, 0, len(v))
	for node := range v {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	pairs := make([]string, len(nodes))
	for i, node := range nodes {
		pairs[i] = fmt.Sprintf("%s:%d", node, v[node])
	}

	return strings.Join(pairs, ";")
}

// ParseVClock reverses String.
func ParseVClock(raw string) (VClock, error) {

	v := make(VClock)

	// An empty string is an empty clock.
	if raw == "" {
		return v, nil
	}

	for _, pair := range strings.Split(raw, ";") {

		// Split at the last colon, node names may contain colons.
		i := strings.LastIndex(pair, ":")
		if i < 1 {
			return nil, fmt.Errorf("invalid vector clock element '%s'", pair)
		}

		value, err := strconv.ParseUint(pair[(i+1):], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number as element in vector clock: %v", err)
		}

		v[pair[:i]] = value
	}

	return v, nil
}
