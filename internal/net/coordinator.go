package net

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"SharedBoard/internal/state"
)

// ServiceName is the default path the coordinator is reachable under.
const ServiceName = "canvas"

type CoordinatorConfig struct {
	Service         string
	QueueSize       int
	WriteTimeout    time.Duration
	ApprovalTimeout time.Duration
	SnapshotTimeout time.Duration
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Service:         ServiceName,
		QueueSize:       256,
		WriteTimeout:    5 * time.Second,
		ApprovalTimeout: 2 * time.Minute,
		SnapshotTimeout: 10 * time.Second,
	}
}

// Coordinator owns the single session: membership, the Owner reference and
// the chat log. It answers peer requests and fans state out to every member.
type Coordinator struct {
	cfg      CoordinatorConfig
	log      zerolog.Logger
	registry *Registry
	chat     *state.ChatLog
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	// mu is the login critical section: the emptiness check, Owner
	// assignment and every registry mutation happen under it.
	mu      sync.Mutex
	owner   *Peer
	pending map[string]struct{}

	// syncMu orders membership broadcasts so the last list a peer receives
	// is the newest one.
	syncMu sync.Mutex

	// chatMu keeps a chat append and its fan-out apart from the history
	// copy a new member receives, so no line arrives twice.
	chatMu sync.Mutex

	connMu sync.Mutex
	conns  map[*Conn]struct{}

	done    chan struct{}
	endOnce sync.Once
}

func NewCoordinator(cfg CoordinatorConfig, log zerolog.Logger) *Coordinator {
	if cfg.Service == "" {
		cfg.Service = ServiceName
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:      cfg,
		log:      log,
		registry: NewRegistry(),
		chat:     state.NewChatLog(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// peers are native applications, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]struct{}),
		conns:   make(map[*Conn]struct{}),
		done:    make(chan struct{}),
	}
}

// Done is closed once the Owner has ended the session.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Handler serves the websocket endpoint and /metrics.
func (c *Coordinator) Handler() http.Handler {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/"+c.cfg.Service, c)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Login registers p. The first peer of an empty session becomes Owner
// unconditionally; everyone else waits for the Owner's approval.
func (c *Coordinator) Login(ctx context.Context, p *Peer, name string, create bool) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, state.OwnerPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	c.mu.Lock()
	switch {
	case p.Access() == state.AccessGranted:
		c.mu.Unlock()
		return fmt.Errorf("%w: already logged in", ErrBadRequest)
	case p.Access() == state.AccessPending && p.Name() != "":
		c.mu.Unlock()
		return fmt.Errorf("%w: login already awaiting approval", ErrBadRequest)
	}
	if c.registry.IsEmpty() && c.owner == nil {
		p.assign(state.OwnerName(name), state.Owner, state.AccessGranted)
		c.owner = p
		err := c.registry.Add(p)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		recordLogin("owner")
		c.log.Info().Str("peer", p.Name()).Msg("session created")
		c.welcome(p)
		return nil
	}
	if create {
		c.mu.Unlock()
		recordLogin("session_exists")
		return ErrSessionExists
	}
	if c.nameTakenLocked(name) {
		c.mu.Unlock()
		recordLogin("conflict")
		return fmt.Errorf("%w: %s", ErrNameConflict, name)
	}
	owner := c.owner
	c.pending[name] = struct{}{}
	p.assign(name, state.Editor, state.AccessPending)
	c.mu.Unlock()

	if err := p.SetRole(state.Editor, name); err != nil {
		c.log.Warn().Err(err).Str("peer", name).Msg("set role failed")
	}

	actx, cancel := context.WithTimeout(ctx, c.cfg.ApprovalTimeout)
	approved, err := owner.ApproveJoin(actx, name)
	cancel()
	if err != nil {
		c.log.Warn().Err(err).Str("peer", name).Msg("approval failed")
	}

	c.mu.Lock()
	delete(c.pending, name)
	granted := err == nil && approved && c.owner == owner && !p.gone.Load()
	if granted {
		p.setAccess(state.AccessGranted)
		if addErr := c.registry.Add(p); addErr != nil {
			granted = false
		}
	}
	c.mu.Unlock()

	if !granted {
		p.setAccess(state.AccessDenied)
		if err := p.SetAccess(false); err != nil {
			c.log.Warn().Err(err).Str("peer", name).Msg("set access failed")
		}
		recordLogin("denied")
		c.log.Info().Str("peer", name).Msg("join denied")
		return ErrAccessDenied
	}
	recordLogin("approved")
	c.log.Info().Str("peer", name).Msg("join approved")
	c.welcome(p)
	return nil
}

// welcome runs after a successful add: role and access for the new peer,
// membership for everyone, chat history for the new peer.
func (c *Coordinator) welcome(p *Peer) {
	if p.Role() == state.Owner {
		if err := p.SetRole(state.Owner, p.Name()); err != nil {
			c.log.Warn().Err(err).Str("peer", p.Name()).Msg("set role failed")
		}
	}
	if err := p.SetAccess(true); err != nil {
		c.log.Warn().Err(err).Str("peer", p.Name()).Msg("set access failed")
	}
	c.syncMembers()
	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	if err := p.SyncChatHistory(c.chat.Lines()); err != nil {
		c.log.Warn().Err(err).Str("peer", p.Name()).Msg("chat history failed")
	}
}

// UsernameTaken reports whether name collides with a member, the decorated
// Owner name, or a join awaiting approval.
func (c *Coordinator) UsernameTaken(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nameTakenLocked(strings.TrimSpace(name))
}

func (c *Coordinator) nameTakenLocked(name string) bool {
	if _, ok := c.pending[name]; ok {
		return true
	}
	return c.registry.NameTaken(name)
}

func (c *Coordinator) Members() []state.PeerInfo {
	return c.registry.Members()
}

// ChatLog returns a copy of the session's chat lines.
func (c *Coordinator) ChatLog() []string {
	return c.chat.Lines()
}

// Quit removes the named peer. Only the Owner may name someone else. An
// Owner quitting ends the session.
func (c *Coordinator) Quit(caller *Peer, name string) error {
	target := c.registry.Get(name)
	if target == nil {
		return nil
	}
	if target != caller && !c.isOwner(caller) {
		return ErrNotOwner
	}
	if c.isOwner(target) {
		c.end("owner quit")
		return nil
	}
	c.mu.Lock()
	removed := c.registry.RemovePeer(target)
	c.mu.Unlock()
	if removed {
		c.log.Info().Str("peer", name).Msg("peer left")
		c.syncMembers()
	}
	return nil
}

// Kick forces the named peer out. Owner only.
func (c *Coordinator) Kick(caller *Peer, name string) error {
	if !c.isOwner(caller) {
		return ErrNotOwner
	}
	target := c.registry.Get(name)
	if target == nil {
		return nil
	}
	if target == caller {
		return fmt.Errorf("%w: owner cannot kick itself", ErrBadRequest)
	}
	if err := target.ForceQuit(); err != nil {
		c.log.Warn().Err(err).Str("peer", name).Msg("force quit failed")
	}
	c.mu.Lock()
	removed := c.registry.RemovePeer(target)
	c.mu.Unlock()
	if removed {
		c.log.Info().Str("peer", name).Msg("peer kicked")
		c.syncMembers()
	}
	target.t.Close()
	return nil
}

// EndSession forces every peer out and terminates the coordinator. Owner only.
func (c *Coordinator) EndSession(caller *Peer) error {
	if !c.isOwner(caller) {
		return ErrNotOwner
	}
	c.end("owner ended session")
	return nil
}

func (c *Coordinator) end(reason string) {
	c.mu.Lock()
	peers := c.registry.Clear()
	c.owner = nil
	c.mu.Unlock()

	c.fanOut("force_quit", peers, func(p *Peer) error { return p.ForceQuit() })
	recordMembers(0)
	c.log.Info().Str("reason", reason).Int("peers", len(peers)).Msg("session ended")
	c.endOnce.Do(func() { close(c.done) })
}

// BroadcastDraw delivers e to every member. The origin is stamped with the
// caller's registered name.
func (c *Coordinator) BroadcastDraw(caller *Peer, e state.DrawEvent) error {
	if !c.registry.Contains(caller) {
		return ErrNotMember
	}
	e.Origin = caller.Name()
	e = e.Clamped()
	c.fanOut("draw", c.registry.Snapshot(), func(p *Peer) error { return p.SyncDraw(e) })
	return nil
}

// BroadcastChat appends "<name>: text" to the log and delivers it to every
// member.
func (c *Coordinator) BroadcastChat(caller *Peer, text string) error {
	if !c.registry.Contains(caller) {
		return ErrNotMember
	}
	line := caller.Name() + ": " + text
	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	c.chat.Append(line)
	c.fanOut("chat", c.registry.Snapshot(), func(p *Peer) error { return p.SyncChat(line) })
	return nil
}

// RequestSnapshot fetches the Owner's current raster.
func (c *Coordinator) RequestSnapshot(ctx context.Context, caller *Peer) ([]byte, error) {
	if !c.registry.Contains(caller) {
		return nil, ErrNotMember
	}
	c.mu.Lock()
	owner := c.owner
	c.mu.Unlock()
	if owner == nil {
		return nil, ErrNoSession
	}
	sctx, cancel := context.WithTimeout(ctx, c.cfg.SnapshotTimeout)
	defer cancel()
	return owner.Snapshot(sctx)
}

// PushSnapshot overrides every non-Owner mirror. Owner only.
func (c *Coordinator) PushSnapshot(caller *Peer, img []byte) error {
	if !c.isOwner(caller) {
		return ErrNotOwner
	}
	c.fanOut("override_canvas", c.others(caller), func(p *Peer) error { return p.OverrideCanvas(img) })
	return nil
}

// ClearCanvas blanks every non-Owner mirror. Owner only.
func (c *Coordinator) ClearCanvas(caller *Peer) error {
	if !c.isOwner(caller) {
		return ErrNotOwner
	}
	c.fanOut("clear_canvas", c.others(caller), func(p *Peer) error { return p.ClearCanvas() })
	return nil
}

// Disconnect cleans up after a peer whose connection is gone. A vanished
// Owner ends the session.
func (c *Coordinator) Disconnect(p *Peer) {
	p.gone.Store(true)
	if c.isOwner(p) {
		c.end("owner disconnected")
		return
	}
	c.mu.Lock()
	removed := c.registry.RemovePeer(p)
	c.mu.Unlock()
	if removed {
		c.log.Info().Str("peer", p.Name()).Msg("peer unreachable, removed")
		c.syncMembers()
	}
}

// Shutdown closes every connection.
func (c *Coordinator) Shutdown() {
	c.cancel()
	c.connMu.Lock()
	defer c.connMu.Unlock()
	for conn := range c.conns {
		conn.Close()
	}
}

func (c *Coordinator) isOwner(p *Peer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return p != nil && p == c.owner && c.registry.Contains(p)
}

func (c *Coordinator) others(self *Peer) []*Peer {
	peers := c.registry.Snapshot()
	out := peers[:0]
	for _, p := range peers {
		if p != self {
			out = append(out, p)
		}
	}
	return out
}

func (c *Coordinator) syncMembers() {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	peers := c.registry.Snapshot()
	members := make([]state.PeerInfo, 0, len(peers))
	for _, p := range peers {
		members = append(members, p.Info())
	}
	recordMembers(len(members))
	c.fanOut("sync_members", peers, func(p *Peer) error { return p.SyncMembers(members) })
}

// fanOut calls deliver for every peer. A failure is logged and counted and
// never stops delivery to the remaining peers.
func (c *Coordinator) fanOut(kind string, peers []*Peer, deliver func(*Peer) error) {
	for _, p := range peers {
		if err := deliver(p); err != nil {
			c.log.Warn().Err(err).Str("peer", p.Name()).Str("kind", kind).Msg("delivery failed")
			recordDelivery(kind, false)
			continue
		}
		recordDelivery(kind, true)
	}
}

// ServeHTTP upgrades one peer connection and serves it until it closes.
func (c *Coordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	conn := newConn(ws, c.cfg.QueueSize, c.cfg.WriteTimeout, c.log)
	p := NewPeer(conn)
	c.track(conn, true)
	defer c.track(conn, false)
	c.log.Debug().Str("conn", p.ID()).Str("remote", r.RemoteAddr).Msg("peer connected")

	for {
		msg, err := conn.Read()
		if errors.Is(err, errBadMessage) {
			c.log.Warn().Err(err).Str("conn", p.ID()).Msg("dropping message")
			continue
		}
		if err != nil {
			c.log.Debug().Err(err).Str("conn", p.ID()).Msg("peer disconnected")
			break
		}
		c.dispatch(p, msg)
	}
	c.Disconnect(p)
	conn.Close()
}

func (c *Coordinator) track(conn *Conn, add bool) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if add {
		c.conns[conn] = struct{}{}
	} else {
		delete(c.conns, conn)
	}
}

// dispatch handles one inbound message. Draw and chat run inline so events
// from one origin keep their order; requests that may wait on another peer
// run in their own goroutine so this reader keeps serving replies.
func (c *Coordinator) dispatch(p *Peer, msg Message) {
	switch msg.Type {
	case MsgReply:
		p.t.Resolve(msg)
	case MsgDraw:
		if msg.Event == nil {
			c.log.Warn().Str("conn", p.ID()).Msg("draw without event")
			return
		}
		if err := c.BroadcastDraw(p, *msg.Event); err != nil {
			c.log.Debug().Err(err).Str("conn", p.ID()).Msg("draw rejected")
		}
	case MsgChat:
		if err := c.BroadcastChat(p, msg.Text); err != nil {
			c.log.Debug().Err(err).Str("conn", p.ID()).Msg("chat rejected")
		}
	case MsgLogin:
		go func() {
			err := c.Login(c.ctx, p, msg.Name, msg.Create)
			c.reply(p, msg, Message{Name: p.Name(), Role: p.Role()}, err)
		}()
	case MsgRequestSnapshot:
		go func() {
			img, err := c.RequestSnapshot(c.ctx, p)
			c.reply(p, msg, Message{Image: img}, err)
		}()
	case MsgUsernameTaken:
		c.reply(p, msg, Message{OK: c.UsernameTaken(msg.Name)}, nil)
	case MsgMembers:
		c.reply(p, msg, Message{Members: c.Members()}, nil)
	case MsgQuit:
		c.reply(p, msg, Message{}, c.Quit(p, msg.Name))
	case MsgKick:
		c.reply(p, msg, Message{}, c.Kick(p, msg.Name))
	case MsgEndSession:
		c.reply(p, msg, Message{}, c.EndSession(p))
	case MsgPushSnapshot:
		c.reply(p, msg, Message{}, c.PushSnapshot(p, msg.Image))
	case MsgClearCanvas:
		c.reply(p, msg, Message{}, c.ClearCanvas(p))
	default:
		c.log.Warn().Str("type", string(msg.Type)).Str("conn", p.ID()).Msg("unknown message")
		c.reply(p, msg, Message{}, fmt.Errorf("%w: %s", ErrBadRequest, msg.Type))
	}
}

func (c *Coordinator) reply(p *Peer, req Message, resp Message, err error) {
	if req.ID == "" {
		return
	}
	if sendErr := p.t.Send(replyTo(req, resp, err)); sendErr != nil {
		c.log.Debug().Err(sendErr).Str("conn", p.ID()).Msg("reply failed")
	}
}
