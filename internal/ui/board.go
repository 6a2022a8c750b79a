package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"SharedBoard/internal/participant"
	"SharedBoard/internal/state"
)

// sessionView holds the side panels: members, chat and status. It is the
// participant's Listener and moves every notification onto the fyne
// goroutine.
type sessionView struct {
	window fyne.Window
	p      *participant.Participant
	board  *BoardWidget
	owner  *ownerMenu

	status   *widget.Label
	members  []state.PeerInfo
	list     *widget.List
	kick     *widget.Button
	selected int
	chat     *widget.Entry
	input    *widget.Entry

	onTerminated func(err error)
}

var _ participant.Listener = (*sessionView)(nil)

func newSessionView(w fyne.Window, p *participant.Participant, board *BoardWidget) *sessionView {
	v := &sessionView{window: w, p: p, board: board, selected: -1}
	v.status = widget.NewLabel("Connecting...")

	v.list = widget.NewList(
		func() int { return len(v.members) },
		func() fyne.CanvasObject { return widget.NewLabel("member") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			if id < len(v.members) {
				o.(*widget.Label).SetText(v.members[id].Name)
			}
		},
	)
	v.list.OnSelected = func(id widget.ListItemID) { v.selected = id }
	v.list.OnUnselected = func(widget.ListItemID) { v.selected = -1 }

	v.kick = widget.NewButton("Kick", v.kickSelected)
	v.kick.Hide()

	v.chat = widget.NewMultiLineEntry()
	v.chat.Wrapping = fyne.TextWrapWord
	v.chat.Disable()

	v.input = widget.NewEntry()
	v.input.SetPlaceHolder("Say something")
	v.input.OnSubmitted = func(text string) {
		if err := p.SendChat(text); err != nil {
			v.setStatus("Chat failed: " + err.Error())
			return
		}
		v.input.SetText("")
	}
	return v
}

func (v *sessionView) content() fyne.CanvasObject {
	side := container.NewVSplit(
		container.NewBorder(widget.NewLabel("Members"), v.kick, nil, nil, v.list),
		container.NewBorder(widget.NewLabel("Chat"), v.input, nil, nil, v.chat),
	)
	side.SetOffset(0.35)
	split := container.NewHSplit(container.NewCenter(v.board), side)
	split.SetOffset(0.75)
	return split
}

func (v *sessionView) kickSelected() {
	if v.selected < 0 || v.selected >= len(v.members) {
		return
	}
	name := v.members[v.selected].Name
	go func() {
		if err := v.owner.kick(name); err != nil {
			v.setStatus("Kick failed: " + err.Error())
		}
	}()
}

func (v *sessionView) setStatus(text string) {
	fyne.Do(func() { v.status.SetText(text) })
}

func (v *sessionView) CanvasChanged() {
	fyne.Do(v.board.Redraw)
}

func (v *sessionView) MembersChanged(members []state.PeerInfo) {
	fyne.Do(func() {
		v.members = members
		v.selected = -1
		v.list.UnselectAll()
		v.list.Refresh()
	})
}

func (v *sessionView) ChatAppended(line string) {
	fyne.Do(func() { v.chat.Append(line + "\n") })
}

func (v *sessionView) ChatReset(lines []string) {
	text := strings.Join(lines, "\n")
	if text != "" {
		text += "\n"
	}
	fyne.Do(func() { v.chat.SetText(text) })
}

func (v *sessionView) RoleChanged(role state.Role, name string) {
	fyne.Do(func() {
		v.window.SetTitle("SharedBoard - " + name)
		v.status.SetText("Signed in as " + name)
		if role == state.Owner {
			v.kick.Show()
			v.owner.install()
		}
	})
}

// Approve asks the Owner and blocks until they answer.
func (v *sessionView) Approve(name string) bool {
	answer := make(chan bool, 1)
	fyne.Do(func() {
		dialog.ShowConfirm("Join request", name+" wants to share your whiteboard.", func(ok bool) {
			answer <- ok
		}, v.window)
	})
	return <-answer
}

func (v *sessionView) Terminated(err error) {
	if v.onTerminated != nil {
		v.onTerminated(err)
	}
}
