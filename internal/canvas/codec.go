package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

// ErrSnapshotIO wraps every encode, decode or file failure of a snapshot.
var ErrSnapshotIO = errors.New("canvas: snapshot i/o")

// EncodePNG is the wire format of a snapshot.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrSnapshotIO, err)
	}
	return buf.Bytes(), nil
}

// Decode reads any registered image format (png, jpeg, gif).
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSnapshotIO, err)
	}
	return img, nil
}

// DecodeBytes decodes an encoded snapshot.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrSnapshotIO)
	}
	return Decode(bytes.NewReader(data))
}

// fit copies src onto dst, scaling when the sizes disagree.
func fit(dst *image.RGBA, src image.Image) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}
