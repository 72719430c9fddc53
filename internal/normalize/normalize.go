package normalize

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Normalizer converts extracted images into upload-ready JPEGs: anything
// decodable (jpeg, png, gif, webp) comes out as a JPEG whose longest side
// does not exceed maxDim. Safe for concurrent use; input is never mutated.
type Normalizer struct {
	maxDim  int
	quality int
}

// New creates a Normalizer with the given size cap and JPEG quality.
func New(maxDim, quality int) *Normalizer {
	return &Normalizer{maxDim: maxDim, quality: quality}
}

// Image decodes data, scales it down when the longest side exceeds the
// cap (aspect ratio preserved, never upscales) and re-encodes it as JPEG.
// Undecodable input returns an error; callers record it as a per-item
// failure and move on.
func (n *Normalizer) Image(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	if b.Dx() > n.maxDim || b.Dy() > n.maxDim {
		src = imaging.Fit(src, n.maxDim, n.maxDim, imaging.Linear)
	}

	// JPEG carries no alpha channel; flatten onto white first.
	flat := image.NewRGBA(src.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, src.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
