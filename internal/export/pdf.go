package export

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"

	"SharedBoard/internal/canvas"
)

const (
	pageMargin = 10.0
	imageName  = "board"
)

// WritePDF lays the board out on a single landscape A4 page, scaled to fit
// inside the margins with its aspect ratio kept.
func WritePDF(w io.Writer, img image.Image) error {
	data, err := canvas.EncodePNG(img)
	if err != nil {
		return err
	}

	p := gofpdf.New("L", "mm", "A4", "")
	p.SetTitle("SharedBoard", true)
	p.SetCreator("SharedBoard", true)
	p.AddPage()

	pageW, pageH := p.GetPageSize()
	boxW, boxH := pageW-2*pageMargin, pageH-2*pageMargin
	b := img.Bounds()
	scale := min(boxW/float64(b.Dx()), boxH/float64(b.Dy()))
	width, height := float64(b.Dx())*scale, float64(b.Dy())*scale

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(data))
	p.ImageOptions(imageName, (pageW-width)/2, (pageH-height)/2, width, height, false, opts, 0, "")
	if err := p.Error(); err != nil {
		return fmt.Errorf("export: pdf: %w", err)
	}
	return p.Output(w)
}

// ExportPDF writes the board to path.
func ExportPDF(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePDF(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
