package ui

import (
	"context"
	"io"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"github.com/rs/zerolog"

	"SharedBoard/internal/participant"
)

const commandTimeout = 15 * time.Second

// ownerMenu is the File menu only the Owner gets: new, open, save, PDF
// export and ending the session.
type ownerMenu struct {
	window    fyne.Window
	p         *participant.Participant
	log       zerolog.Logger
	installed bool
}

func (m *ownerMenu) install() {
	if m.installed {
		return
	}
	m.installed = true
	file := fyne.NewMenu("File",
		fyne.NewMenuItem("New", m.newCanvas),
		fyne.NewMenuItem("Open...", m.open),
		fyne.NewMenuItem("Save as PNG...", m.savePNG),
		fyne.NewMenuItem("Export PDF...", m.exportPDF),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("End session", m.endSession),
	)
	m.window.SetMainMenu(fyne.NewMainMenu(file))
}

func (m *ownerMenu) run(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			m.log.Error().Err(err).Str("command", what).Msg("owner command failed")
			fyne.Do(func() { dialog.ShowError(err, m.window) })
		}
	}()
}

func (m *ownerMenu) kick(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return m.p.Kick(ctx, name)
}

func (m *ownerMenu) newCanvas() {
	dialog.ShowConfirm("New canvas", "Clear the board for everyone?", func(ok bool) {
		if ok {
			m.run("new", m.p.NewCanvas)
		}
	}, m.window)
}

func (m *ownerMenu) open() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil || r == nil {
			return
		}
		m.run("open", func(ctx context.Context) error {
			defer r.Close()
			return m.p.OpenImage(ctx, r)
		})
	}, m.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif"}))
	d.Show()
}

func (m *ownerMenu) savePNG() {
	m.save("board.png", ".png", m.p.SavePNG)
}

func (m *ownerMenu) exportPDF() {
	m.save("board.pdf", ".pdf", m.p.ExportPDF)
}

func (m *ownerMenu) save(name, ext string, write func(io.Writer) error) {
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil || w == nil {
			return
		}
		m.run("save "+ext, func(context.Context) error {
			if err := write(w); err != nil {
				w.Close()
				return err
			}
			return w.Close()
		})
	}, m.window)
	d.SetFileName(name)
	d.SetFilter(storage.NewExtensionFileFilter([]string{ext}))
	d.Show()
}

func (m *ownerMenu) endSession() {
	dialog.ShowConfirm("End session", "Close the whiteboard for every participant?", func(ok bool) {
		if ok {
			m.run("end session", m.p.Leave)
		}
	}, m.window)
}
