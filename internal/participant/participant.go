// Package participant is the per-peer core of a shared board: it answers the
// coordinator's callbacks, renders local input optimistically and exposes the
// Owner's commands. The presentation layer only subscribes to it.
package participant

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"SharedBoard/internal/canvas"
	"SharedBoard/internal/export"
	"SharedBoard/internal/net"
	"SharedBoard/internal/state"
)

var (
	ErrSessionEnded = errors.New("participant: session ended")
	ErrNotJoined    = errors.New("participant: not a granted member")
	ErrNotOwner     = net.ErrNotOwner
)

// Remote is the coordinator as seen from one peer. *net.Client implements it.
type Remote interface {
	Login(ctx context.Context, name string, create bool) (string, state.Role, error)
	UsernameTaken(ctx context.Context, name string) (bool, error)
	Quit(ctx context.Context, name string) error
	Kick(ctx context.Context, name string) error
	EndSession(ctx context.Context) error
	BroadcastDraw(e state.DrawEvent) error
	BroadcastChat(text string) error
	RequestSnapshot(ctx context.Context) ([]byte, error)
	PushSnapshot(ctx context.Context, img []byte) error
	ClearCanvas(ctx context.Context) error
	Close()
	Done() <-chan struct{}
}

// Listener receives notifications for the presentation layer. Methods may be
// called from any goroutine.
type Listener interface {
	CanvasChanged()
	MembersChanged(members []state.PeerInfo)
	ChatAppended(line string)
	ChatReset(lines []string)
	RoleChanged(role state.Role, name string)
	// Approve blocks until the Owner decides on a join request.
	Approve(name string) bool
	Terminated(err error)
}

// NopListener ignores every notification and denies every join.
type NopListener struct{}

func (NopListener) CanvasChanged() {}
func (NopListener) MembersChanged([]state.PeerInfo) {}
func (NopListener) ChatAppended(string) {}
func (NopListener) ChatReset([]string) {}
func (NopListener) RoleChanged(state.Role, string) {}
func (NopListener) Approve(string) bool { return false }
func (NopListener) Terminated(error) {}

type Participant struct {
	log    zerolog.Logger
	board  *canvas.Reconciler
	chat   *state.ChatLog
	remote Remote

	mu       sync.RWMutex
	listener Listener
	name     string
	role     state.Role
	access   state.Access
	members  []state.PeerInfo
	tool     state.Tool
	color    color.RGBA

	// leaving is set once Leave has started; the coordinator's own
	// force_quit or hangup is then part of the goodbye, not a removal.
	leaving  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// New creates a participant with a blank width x height board.
func New(width, height int, log zerolog.Logger) *Participant {
	p := &Participant{
		log:      log,
		board:    canvas.NewReconciler("", width, height),
		chat:     state.NewChatLog(),
		listener: NopListener{},
		tool:     state.FreeHand,
		color:    state.Foreground,
		done:     make(chan struct{}),
	}
	p.board.OnChange(func() { p.notify().CanvasChanged() })
	return p
}

func (p *Participant) SetListener(l Listener) {
	if l == nil {
		l = NopListener{}
	}
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

func (p *Participant) notify() Listener {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.listener
}

// Join checks the name, logs in and initialises the mirror. An Editor's mirror
// is loaded from the Owner's snapshot; an Owner starts blank.
func (p *Participant) Join(ctx context.Context, remote Remote, name string, create bool) error {
	p.mu.Lock()
	p.remote = remote
	p.mu.Unlock()

	taken, err := remote.UsernameTaken(ctx, name)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", net.ErrNameConflict, name)
	}

	assigned, role, err := remote.Login(ctx, name, create)
	if err != nil {
		if errors.Is(err, net.ErrAccessDenied) {
			p.terminate(err)
		}
		return err
	}
	p.mu.Lock()
	p.name, p.role, p.access = assigned, role, state.AccessGranted
	p.mu.Unlock()
	p.board.SetSelf(assigned)
	p.log.Info().Str("name", assigned).Str("role", role.String()).Msg("joined session")

	if role == state.Editor {
		img, err := remote.RequestSnapshot(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("initial snapshot unavailable, starting blank")
		} else if err := p.board.Override(img); err != nil {
			p.log.Warn().Err(err).Msg("initial snapshot unreadable, starting blank")
		}
	}

	go p.watch(remote)
	return nil
}

func (p *Participant) watch(remote Remote) {
	select {
	case <-remote.Done():
		p.removed(fmt.Errorf("%w: connection lost", net.ErrConnection))
	case <-p.done:
	}
}

func (p *Participant) Board() *canvas.Reconciler { return p.board }

func (p *Participant) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Participant) Role() state.Role {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.role
}

func (p *Participant) IsOwner() bool { return p.Role() == state.Owner }

func (p *Participant) Members() []state.PeerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]state.PeerInfo(nil), p.members...)
}

func (p *Participant) ChatLines() []string { return p.chat.Lines() }

func (p *Participant) Tool() state.Tool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tool
}

func (p *Participant) SetTool(t state.Tool) {
	if !t.Valid() {
		return
	}
	p.mu.Lock()
	p.tool = t
	p.mu.Unlock()
}

func (p *Participant) Color() color.RGBA {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.color
}

func (p *Participant) SetColor(c color.RGBA) {
	p.mu.Lock()
	p.color = c
	p.mu.Unlock()
}

// Done is closed once the participant has left the session for any reason.
func (p *Participant) Done() <-chan struct{} { return p.done }

// Err reports why the participant terminated. It is nil after a voluntary
// leave and before termination.
func (p *Participant) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// removed terminates with err unless the participant is already leaving on
// its own.
func (p *Participant) removed(err error) {
	if p.leaving.Load() {
		err = nil
	}
	p.terminate(err)
}

func (p *Participant) terminate(err error) {
	p.doneOnce.Do(func() {
		p.mu.Lock()
		p.err = err
		p.access = state.AccessDenied
		remote := p.remote
		p.mu.Unlock()
		if remote != nil {
			remote.Close()
		}
		if err != nil {
			p.log.Info().Err(err).Msg("left session")
		}
		close(p.done)
		p.notify().Terminated(err)
	})
}

// Local input.

func (p *Participant) Press(pt image.Point) error { return p.local(state.Start, pt, "") }
func (p *Participant) Drag(pt image.Point) error { return p.local(state.Painting, pt, "") }
func (p *Participant) Release(pt image.Point, text string) error {
	return p.local(state.End, pt, text)
}

// local renders the event through the same rules a remote copy would follow,
// then sends it. The coordinator's echo is dropped by self-suppression.
func (p *Participant) local(stage state.Stage, pt image.Point, text string) error {
	p.mu.RLock()
	e := state.DrawEvent{Stage: stage, Tool: p.tool, Color: p.color, Point: pt, Text: text, Origin: p.name}
	granted := p.access == state.AccessGranted
	remote := p.remote
	p.mu.RUnlock()
	if !granted || remote == nil {
		return ErrNotJoined
	}
	p.board.ApplyLocal(e)
	return remote.BroadcastDraw(e)
}

// SendChat posts text to the session. Blank messages are dropped.
func (p *Participant) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	remote, err := p.member()
	if err != nil {
		return err
	}
	return remote.BroadcastChat(text)
}

// Leave quits the session. For the Owner this ends it for everyone.
func (p *Participant) Leave(ctx context.Context) error {
	remote, err := p.member()
	if err != nil {
		return err
	}
	p.leaving.Store(true)
	if p.IsOwner() {
		err = remote.EndSession(ctx)
	} else {
		err = remote.Quit(ctx, p.Name())
	}
	p.terminate(nil)
	return err
}

// Owner commands.

// NewCanvas blanks the board for everyone.
func (p *Participant) NewCanvas(ctx context.Context) error {
	remote, err := p.owner()
	if err != nil {
		return err
	}
	p.board.Clear()
	return remote.ClearCanvas(ctx)
}

// OpenImage loads an image file, scaled to the board, and pushes it to every
// other peer.
func (p *Participant) OpenImage(ctx context.Context, r io.Reader) error {
	remote, err := p.owner()
	if err != nil {
		return err
	}
	img, err := canvas.Decode(r)
	if err != nil {
		return err
	}
	p.board.Load(img)
	data, err := p.board.Snapshot()
	if err != nil {
		return err
	}
	return remote.PushSnapshot(ctx, data)
}

func (p *Participant) SavePNG(w io.Writer) error {
	if _, err := p.owner(); err != nil {
		return err
	}
	data, err := p.board.Snapshot()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %v", canvas.ErrSnapshotIO, err)
	}
	return nil
}

func (p *Participant) ExportPDF(w io.Writer) error {
	if _, err := p.owner(); err != nil {
		return err
	}
	return export.WritePDF(w, p.board.Image())
}

func (p *Participant) Kick(ctx context.Context, name string) error {
	remote, err := p.owner()
	if err != nil {
		return err
	}
	return remote.Kick(ctx, name)
}

func (p *Participant) member() (Remote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.access != state.AccessGranted || p.remote == nil {
		return nil, ErrNotJoined
	}
	return p.remote, nil
}

func (p *Participant) owner() (Remote, error) {
	remote, err := p.member()
	if err != nil {
		return nil, err
	}
	if !p.IsOwner() {
		return nil, ErrNotOwner
	}
	return remote, nil
}
