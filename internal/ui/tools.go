package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"SharedBoard/internal/participant"
	"SharedBoard/internal/state"
)

var toolLabels = map[state.Tool]string{
	state.FreeHand:  "Free",
	state.Line:      "Line",
	state.Circle:    "Circle",
	state.Triangle:  "Triangle",
	state.Rectangle: "Rectangle",
	state.Text:      "Text",
	state.Eraser:    "Eraser",
}

type colorSwatch struct {
	widget.BaseWidget
	Color    color.RGBA
	Name     string
	OnTapped func(color.RGBA)
}

func newColorSwatch(c state.NamedColor, tapped func(color.RGBA)) *colorSwatch {
	s := &colorSwatch{Color: c.Color, Name: c.Name, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(24, 24))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

// NewToolbar lets the user pick the drawing tool and one of the palette
// colors. Both are plain participant state.
func NewToolbar(p *participant.Participant) fyne.CanvasObject {
	tools := state.Tools()
	labels := make([]string, len(tools))
	byLabel := make(map[string]state.Tool, len(tools))
	for i, t := range tools {
		labels[i] = toolLabels[t]
		byLabel[labels[i]] = t
	}
	picker := widget.NewRadioGroup(labels, func(label string) {
		if t, ok := byLabel[label]; ok {
			p.SetTool(t)
		}
	})
	picker.Horizontal = true
	picker.Required = true
	picker.SetSelected(toolLabels[p.Tool()])

	current := canvas.NewRectangle(p.Color())
	current.SetMinSize(fyne.NewSize(32, 32))
	onColorTapped := func(c color.RGBA) {
		p.SetColor(c)
		current.FillColor = c
		current.Refresh()
	}
	swatches := make([]fyne.CanvasObject, 0, len(state.Palette))
	for _, c := range state.Palette {
		swatches = append(swatches, newColorSwatch(c, onColorTapped))
	}
	palette := container.NewGridWithColumns(len(state.Palette)/2, swatches...)

	return container.NewVBox(
		container.NewHBox(widget.NewLabel("Tool:"), picker, layout.NewSpacer()),
		container.NewHBox(widget.NewLabel("Color:"), current, palette, layout.NewSpacer()),
	)
}
