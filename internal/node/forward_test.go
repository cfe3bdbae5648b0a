package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/token"
)

func TestForwardFetch(t *testing.T) {
	n := New()

	assert.False(t, n.CanFetch("n_items"))
	_, err := n.Fetch("n_items")
	assert.ErrorIs(t, err, ErrNoSuchKey)

	n.Forward("n_items", cty.NumberIntVal(100))
	assert.True(t, n.CanFetch("n_items"))

	v, err := n.Fetch("n_items")
	require.NoError(t, err)
	assert.True(t, cty.NumberIntVal(100).RawEquals(v))
}

func TestExplicitIsSticky(t *testing.T) {
	n := New()

	n.Forward("key", cty.StringVal("explicit"))
	n.ForwardImplicit("key", cty.StringVal("implicit"))

	v, err := n.Fetch("key")
	require.NoError(t, err)
	assert.Equal(t, "explicit", v.AsString())

	// An explicit write still overrides.
	n.Forward("key", cty.StringVal("newer"))
	v, _ = n.Fetch("key")
	assert.Equal(t, "newer", v.AsString())
}

func TestImplicitOverridesImplicit(t *testing.T) {
	n := New()

	n.ForwardImplicit("key", cty.StringVal("first"))
	n.ForwardImplicit("key", cty.StringVal("second"))

	v, err := n.Fetch("key")
	require.NoError(t, err)
	assert.Equal(t, "second", v.AsString())
}

func TestForwardTo(t *testing.T) {
	a, b := New(), New()

	a.Forward("n_items", cty.NumberIntVal(100))
	a.ForwardImplicit("hint", cty.StringVal("upstream"))
	a.ForwardTo(b)

	v, err := b.Fetch("n_items")
	require.NoError(t, err)
	assert.True(t, cty.NumberIntVal(100).RawEquals(v))

	// The receiver's explicit entry survives a later implicit arrival.
	b.Forward("hint", cty.StringVal("mine"))
	a.ForwardTo(b)
	v, _ = b.Fetch("hint")
	assert.Equal(t, "mine", v.AsString())
}

func TestForwardAsFetchAs(t *testing.T) {
	n := New()

	require.NoError(t, ForwardAs(n, "count", int64(42)))
	got, err := FetchAs[int64](n, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	require.NoError(t, ForwardAs(n, "label", "sorted"))
	_, err = FetchAs[[]string](n, "label")
	assert.ErrorIs(t, err, token.ErrTypeMismatch)

	_, err = FetchAs[int64](n, "missing")
	assert.ErrorIs(t, err, ErrNoSuchKey)
}
