package comm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVClockMergeAndDescends(t *testing.T) {

	a := VClock{"replica-1": 2, "replica-2": 1}
	b := VClock{"replica-2": 3, "replica-3": 1}

	assert.False(t, a.Descends(b))
	assert.False(t, b.Descends(a))

	c := a.Copy()
	c.Merge(b)

	assert.Equal(t, VClock{"replica-1": 2, "replica-2": 3, "replica-3": 1}, c)
	assert.True(t, c.Descends(a))
	assert.True(t, c.Descends(b))

	// The copy is independent of its origin.
	c.Inc("replica-1")
	assert.Equal(t, uint64(2), a["replica-1"])
	assert.Equal(t, uint64(3), c["replica-1"])

	// Everything descends from the empty clock.
	assert.True(t, a.Descends(VClock{}))
	assert.False(t, VClock{}.Descends(a))
}

func TestVClockString(t *testing.T) {

	assert.Equal(t, "", VClock{}.String())
	assert.Equal(t, "a:1;b:20;c:3", VClock{"c": 3, "a": 1, "b": 20}.String())

	v, err := ParseVClock("a:1;b:20;c:3")
	require.NoError(t, err)
	assert.Equal(t, VClock{"a": 1, "b": 20, "c": 3}, v)

	v, err = ParseVClock("")
	require.NoError(t, err)
	assert.Empty(t, v)

	v, err = ParseVClock("10.0.0.1:7001:4")
	require.NoError(t, err)
	assert.Equal(t, VClock{"10.0.0.1:7001": 4}, v)

	_, err = ParseVClock("a")
	assert.Error(t, err)

	_, err = ParseVClock(":1")
	assert.Error(t, err)

	_, err = ParseVClock("a:-1")
	assert.Error(t, err)
}
