package token

import (
	"sync/atomic"
)

// ID is the stable numeric identity of a node. Ids are unique for the
// lifetime of the process and are never reused.
type ID uint64

// Owner is the minimal view the map keeps of a registered node. The node
// package implements it; everything richer is recovered by type assertion
// at the call sites that need it.
type Owner interface {
	NodeToken() *Token
}

// nextID is the process-wide id allocator.
var nextID atomic.Uint64

// Token couples an id with the map it is registered in. The map pointer
// may go stale after a merge; Map resolves to the canonical map and
// repairs the pointer on the way.
type Token struct {
	id ID
	m  *NodeMap
}

// New allocates a fresh token in a new single-entry map and registers the
// owner under it.
func New(owner Owner) *Token {
	return NewIn(owner, newMap())
}

// NewIn allocates a fresh token inside an existing map.
func NewIn(owner Owner, m *NodeMap) *Token {
	t := &Token{id: ID(nextID.Add(1)), m: m}
	m.register(t.id, owner)
	return t
}

// ID returns the node id this token stands for.
func (t *Token) ID() ID {
	return t.id
}

// Map returns the canonical map this token belongs to.
func (t *Token) Map() *NodeMap {
	t.m = t.m.find()
	return t.m
}

// Equal reports whether two tokens denote the same identity: same id in
// the same canonical map.
func (t *Token) Equal(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.id == other.id && t.Map() == other.Map()
}

// Redirect re-points the map entry for this token's id at a new owner.
// Used when node ownership moves (wrapping, copying); the id is preserved.
func (t *Token) Redirect(owner Owner) {
	t.Map().register(t.id, owner)
}

// Release removes the map entry for this token's id. After release the id
// can no longer be resolved; relations naming it become dangling and are
// rejected by Relate.
func (t *Token) Release() {
	t.Map().deregister(t.id)
}
