package participant

import (
	"SharedBoard/internal/net"
	"SharedBoard/internal/state"
)

var _ net.Handler = (*Participant)(nil)

// Coordinator callbacks.

func (p *Participant) SetRole(role state.Role, name string) {
	p.mu.Lock()
	p.role, p.name = role, name
	p.mu.Unlock()
	p.board.SetSelf(name)
	p.notify().RoleChanged(role, name)
}

func (p *Participant) ApproveJoin(name string) bool {
	ok := p.notify().Approve(name)
	p.log.Info().Str("peer", name).Bool("approved", ok).Msg("join request")
	return ok
}

func (p *Participant) SetAccess(granted bool) {
	p.mu.Lock()
	if granted {
		p.access = state.AccessGranted
	} else {
		p.access = state.AccessDenied
	}
	p.mu.Unlock()
	if !granted {
		p.terminate(net.ErrAccessDenied)
	}
}

func (p *Participant) SyncMembers(members []state.PeerInfo) {
	p.mu.Lock()
	p.members = append([]state.PeerInfo(nil), members...)
	p.mu.Unlock()
	p.notify().MembersChanged(members)
}

func (p *Participant) SyncDraw(e state.DrawEvent) {
	p.board.Apply(e)
}

func (p *Participant) SyncChat(line string) {
	p.chat.Append(line)
	p.notify().ChatAppended(line)
}

func (p *Participant) SyncChatHistory(lines []string) {
	p.chat.Replace(lines)
	p.notify().ChatReset(p.chat.Lines())
}

func (p *Participant) OverrideCanvas(img []byte) {
	if err := p.board.Override(img); err != nil {
		p.log.Warn().Err(err).Msg("override canvas rejected")
	}
}

func (p *Participant) ClearCanvas() {
	p.board.Clear()
}

// ForceQuit ends this peer's participation: kicked, or the Owner ended the
// session.
func (p *Participant) ForceQuit() {
	p.removed(ErrSessionEnded)
}

// Snapshot answers the coordinator's request for the authoritative raster.
func (p *Participant) Snapshot() ([]byte, error) {
	return p.board.Snapshot()
}
