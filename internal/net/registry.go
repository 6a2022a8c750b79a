package net

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"SharedBoard/internal/state"
)

// transport is what the coordinator needs from a peer connection.
type transport interface {
	Send(msg Message) error
	Call(ctx context.Context, msg Message) (Message, error)
	Resolve(msg Message) bool
	Close()
}

// Peer is the coordinator's handle on one connected participant: a stable
// connection id, the identity assigned at login and the transport used to
// call back into it.
type Peer struct {
	id   string
	t    transport
	gone atomic.Bool

	mu     sync.RWMutex
	name   string
	role   state.Role
	access state.Access
}

// NewPeer wraps a transport in a handle with a fresh connection id.
func NewPeer(t transport) *Peer {
	return &Peer{id: uuid.NewString(), t: t}
}

func (p *Peer) ID() string { return p.id }

func (p *Peer) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Peer) Role() state.Role {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.role
}

func (p *Peer) Access() state.Access {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.access
}

func (p *Peer) Info() state.PeerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return state.PeerInfo{Name: p.name, Role: p.role}
}

func (p *Peer) assign(name string, role state.Role, access state.Access) {
	p.mu.Lock()
	p.name, p.role, p.access = name, role, access
	p.mu.Unlock()
}

func (p *Peer) setAccess(a state.Access) {
	p.mu.Lock()
	p.access = a
	p.mu.Unlock()
}

// Callbacks. Fire-and-forget callbacks are bounded enqueues; callbacks that
// return a value are bounded requests.

func (p *Peer) SetRole(role state.Role, name string) error {
	return p.t.Send(Message{Type: MsgSetRole, Role: role, Name: name})
}

func (p *Peer) ApproveJoin(ctx context.Context, name string) (bool, error) {
	resp, err := p.t.Call(ctx, Message{Type: MsgApproveJoin, Name: name})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (p *Peer) SetAccess(granted bool) error {
	return p.t.Send(Message{Type: MsgSetAccess, OK: granted})
}

func (p *Peer) SyncMembers(members []state.PeerInfo) error {
	return p.t.Send(Message{Type: MsgSyncMembers, Members: members})
}

func (p *Peer) SyncDraw(e state.DrawEvent) error {
	return p.t.Send(Message{Type: MsgSyncDraw, Event: &e})
}

func (p *Peer) SyncChat(line string) error {
	return p.t.Send(Message{Type: MsgSyncChat, Text: line})
}

func (p *Peer) SyncChatHistory(lines []string) error {
	return p.t.Send(Message{Type: MsgSyncHistory, Lines: lines})
}

func (p *Peer) OverrideCanvas(img []byte) error {
	return p.t.Send(Message{Type: MsgOverrideCanvas, Image: img})
}

func (p *Peer) ClearCanvas() error {
	return p.t.Send(Message{Type: MsgClearCanvas})
}

func (p *Peer) ForceQuit() error {
	return p.t.Send(Message{Type: MsgForceQuit})
}

// Snapshot asks the peer for its encoded raster.
func (p *Peer) Snapshot(ctx context.Context) ([]byte, error) {
	resp, err := p.t.Call(ctx, Message{Type: MsgSnapshot})
	if err != nil {
		return nil, err
	}
	return resp.Image, nil
}

// Registry is the membership set. Iteration always goes through Snapshot so
// a concurrent removal cannot disturb a fan-out in progress.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
	order []*Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*Peer)}
}

// Add registers p under its current name.
func (r *Registry) Add(p *Peer) error {
	name := p.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.peers[name]; exists {
		return fmt.Errorf("%w: %s", ErrNameConflict, name)
	}
	r.peers[name] = p
	r.order = append(r.order, p)
	return nil
}

// RemovePeer drops p if it is registered and reports whether it was.
func (r *Registry) RemovePeer(p *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if r.peers[name] != p {
		return false
	}
	delete(r.peers, name)
	for i, q := range r.order {
		if q == p {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Get(name string) *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers[name]
}

func (r *Registry) Contains(p *Peer) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers[p.Name()] == p
}

// NameTaken reports an exact match or a match with the owner decoration.
func (r *Registry) NameTaken(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exact := r.peers[name]
	_, decorated := r.peers[state.OwnerName(name)]
	return exact || decorated
}

// Snapshot returns the registered peers in join order.
func (r *Registry) Snapshot() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Members() []state.PeerInfo {
	peers := r.Snapshot()
	out := make([]state.PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.Info())
	}
	return out
}

// Clear empties the registry and returns what it held.
func (r *Registry) Clear() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.order
	r.peers = make(map[string]*Peer)
	r.order = nil
	return out
}

func (r *Registry) IsEmpty() bool { return r.Len() == 0 }

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
