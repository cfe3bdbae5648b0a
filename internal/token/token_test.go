package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOwner is a minimal Owner for identity tests.
type testOwner struct {
	tok *Token
}

func (o *testOwner) NodeToken() *Token { return o.tok }

func newOwner() *testOwner {
	o := &testOwner{}
	o.tok = New(o)
	return o
}

func TestTokenIdentity(t *testing.T) {
	a := newOwner()
	b := newOwner()

	assert.NotEqual(t, a.tok.ID(), b.tok.ID())
	assert.True(t, a.tok.Equal(a.tok))
	assert.False(t, a.tok.Equal(b.tok))

	resolved, ok := a.tok.Map().Get(a.tok.ID())
	require.True(t, ok)
	assert.Same(t, a, resolved)
}

func TestTokenEqualityAcrossLink(t *testing.T) {
	a := newOwner()
	b := newOwner()

	a.tok.Map().Link(b.tok.Map())
	assert.Same(t, a.tok.Map(), b.tok.Map())
	assert.False(t, a.tok.Equal(b.tok))
	assert.True(t, a.tok.Equal(a.tok))
}

func TestRedirectPreservesIdentity(t *testing.T) {
	a := newOwner()
	id := a.tok.ID()

	// Ownership moves: a wrapper claims the same token.
	wrapper := &testOwner{tok: a.tok}
	a.tok.Redirect(wrapper)

	assert.Equal(t, id, a.tok.ID())
	resolved, ok := a.tok.Map().Get(id)
	require.True(t, ok)
	assert.Same(t, wrapper, resolved)
}

func TestRelease(t *testing.T) {
	a := newOwner()
	id := a.tok.ID()
	m := a.tok.Map()

	a.tok.Release()
	_, ok := m.Get(id)
	assert.False(t, ok)

	_, err := m.Resolve(id)
	assert.ErrorIs(t, err, ErrUnknownNode)
}
