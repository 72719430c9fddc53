package normalize

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x % 256), A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (string, int, int) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return format, cfg.Width, cfg.Height
}

func TestImageDownscalesOversized(t *testing.T) {
	a := assert.New(t)

	n := New(1280, 85)
	out, err := n.Image(pngBytes(t, 2000, 1000))
	a.NoError(err)

	format, w, h := decodeDims(t, out)
	a.Equal("jpeg", format)
	a.Equal(1280, w)
	a.Equal(640, h)
}

func TestImageKeepsSmallDimensions(t *testing.T) {
	a := assert.New(t)

	n := New(1280, 85)
	out, err := n.Image(pngBytes(t, 100, 50))
	a.NoError(err)

	format, w, h := decodeDims(t, out)
	a.Equal("jpeg", format)
	a.Equal(100, w)
	a.Equal(50, h)
}

func TestImageIsStableUnderReapplication(t *testing.T) {
	a := assert.New(t)

	n := New(1280, 85)
	once, err := n.Image(pngBytes(t, 3000, 1500))
	a.NoError(err)
	twice, err := n.Image(once)
	a.NoError(err)

	format, w, h := decodeDims(t, twice)
	a.Equal("jpeg", format)
	a.LessOrEqual(w, 1280)
	a.LessOrEqual(h, 1280)
	a.Equal(1280, w) // already within bounds, not shrunk further
}

func TestImageFlattensAlpha(t *testing.T) {
	a := assert.New(t)

	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	// fully transparent input still has to produce a decodable JPEG
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	n := New(1280, 85)
	out, err := n.Image(buf.Bytes())
	a.NoError(err)

	format, w, h := decodeDims(t, out)
	a.Equal("jpeg", format)
	a.Equal(10, w)
	a.Equal(10, h)
}

func TestImageDecodesGIF(t *testing.T) {
	a := assert.New(t)

	img := image.NewPaletted(image.Rect(0, 0, 8, 8), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))

	n := New(1280, 85)
	out, err := n.Image(buf.Bytes())
	a.NoError(err)

	format, _, _ := decodeDims(t, out)
	a.Equal("jpeg", format)
}

func TestImageRejectsGarbage(t *testing.T) {
	a := assert.New(t)

	n := New(1280, 85)
	_, err := n.Image([]byte("not an image at all"))
	a.Error(err)
}
