package ui

import (
	"context"
	"errors"
	"image"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"SharedBoard/internal/net"
	"SharedBoard/internal/participant"
)

// Session starts the participant's connection once the window is up.
type Session func(p *participant.Participant) error

// RunApp shows the whiteboard window for p and blocks until it is closed.
// join runs in the background; its error is shown and closes the window.
func RunApp(title string, p *participant.Participant, join Session, log zerolog.Logger) {
	a := app.NewWithID("io.sharedboard")
	w := a.NewWindow(title)

	board := NewBoardWidget(p, log)
	view := newSessionView(w, p, board)
	view.owner = &ownerMenu{window: w, p: p, log: log}

	board.OnText = func(pt image.Point, done func(string)) {
		entry := widget.NewEntry()
		dialog.ShowForm("Text", "Place", "Cancel",
			[]*widget.FormItem{widget.NewFormItem("Text", entry)},
			func(ok bool) {
				if !ok {
					done("")
					return
				}
				done(entry.Text)
			}, w)
	}
	board.OnError = func(err error) { view.setStatus(err.Error()) }

	view.onTerminated = func(err error) {
		fyne.Do(func() {
			if err == nil {
				w.Close()
				return
			}
			msg := terminationMessage(err)
			d := dialog.NewInformation("Whiteboard closed", msg, w)
			d.SetOnClosed(w.Close)
			d.Show()
		})
	}
	p.SetListener(view)

	w.SetContent(container.NewBorder(NewToolbar(p), view.status, nil, nil, view.content()))
	w.SetCloseIntercept(func() {
		select {
		case <-p.Done():
			w.Close()
			return
		default:
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.Leave(ctx); err != nil {
				log.Warn().Err(err).Msg("leave failed")
			}
			fyne.Do(w.Close)
		}()
	})
	w.Resize(fyne.NewSize(1100, 600))

	go func() {
		if err := join(p); err != nil {
			log.Error().Err(err).Msg("join failed")
			select {
			case <-p.Done():
				// the termination notice already covers it
				return
			default:
			}
			fyne.Do(func() {
				d := dialog.NewInformation("Cannot join", terminationMessage(err), w)
				d.SetOnClosed(w.Close)
				d.Show()
			})
		}
	}()
	w.ShowAndRun()
}

func terminationMessage(err error) string {
	switch {
	case errors.Is(err, net.ErrAccessDenied):
		return "The host denied your request to join."
	case errors.Is(err, participant.ErrSessionEnded):
		return "You were removed from the session or the host ended it."
	case errors.Is(err, net.ErrNameConflict):
		return "That name is already taken. Pick another one."
	case errors.Is(err, net.ErrSessionExists):
		return "A whiteboard is already running on that server. Join it instead."
	case errors.Is(err, net.ErrConnection):
		return "Cannot reach the whiteboard server."
	}
	return err.Error()
}
