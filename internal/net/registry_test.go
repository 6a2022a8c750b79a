package net

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SharedBoard/internal/state"
)

func namedPeer(name string, role state.Role) *Peer {
	p := NewPeer(&fakeTransport{})
	p.assign(name, role, state.AccessGranted)
	return p
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.IsEmpty())

	owner := namedPeer(state.OwnerName("A"), state.Owner)
	c := namedPeer("C", state.Editor)
	require.NoError(t, r.Add(owner))
	require.NoError(t, r.Add(c))
	assert.ErrorIs(t, r.Add(namedPeer("C", state.Editor)), ErrNameConflict)

	assert.Equal(t, 2, r.Len())
	assert.Same(t, c, r.Get("C"))
	assert.Nil(t, r.Get("nobody"))
	assert.True(t, r.NameTaken("A"))
	assert.True(t, r.NameTaken("C"))
	assert.False(t, r.NameTaken("D"))
	assert.Equal(t, []state.PeerInfo{
		{Name: "(Host) A", Role: state.Owner},
		{Name: "C", Role: state.Editor},
	}, r.Members())

	// a different handle with the same name is not removed
	assert.False(t, r.RemovePeer(namedPeer("C", state.Editor)))
	assert.True(t, r.RemovePeer(c))
	assert.False(t, r.Contains(c))

	cleared := r.Clear()
	assert.Equal(t, []*Peer{owner}, cleared)
	assert.True(t, r.IsEmpty())
}

func TestRegistrySnapshotIsStable(t *testing.T) {
	r := NewRegistry()
	a := namedPeer("a", state.Editor)
	b := namedPeer("b", state.Editor)
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))

	snap := r.Snapshot()
	r.RemovePeer(a)
	assert.Equal(t, []*Peer{a, b}, snap)
	assert.Equal(t, []*Peer{b}, r.Snapshot())
}

func TestReplyErrorCodes(t *testing.T) {
	for _, sentinel := range []error{ErrNameConflict, ErrAccessDenied, ErrNotOwner, ErrSessionExists, ErrDeliveryTimeout} {
		resp := replyTo(Message{Type: MsgLogin, ID: "1"}, Message{}, sentinel)
		assert.Equal(t, MsgReply, resp.Type)
		assert.Equal(t, "1", resp.ID)
		assert.ErrorIs(t, errorFromReply(resp), sentinel)
	}
	assert.NoError(t, errorFromReply(replyTo(Message{ID: "2"}, Message{}, nil)))

	resp := replyTo(Message{ID: "3"}, Message{}, errors.New("boom"))
	assert.Equal(t, "internal", resp.Code)
	assert.EqualError(t, errorFromReply(resp), "boom")
}
