package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
)

// Codec prepares raw frame bytes for transmission to the vision model:
// bounded resize, JPEG re-compression, base64 encoding. The dimension cap
// exists to respect the model's context-size limits.
type Codec struct {
	maxDim  int
	quality int
}

func NewCodec(maxDim, quality int) *Codec {
	if maxDim <= 0 {
		maxDim = 512
	}
	if quality <= 0 {
		quality = 85
	}
	return &Codec{maxDim: maxDim, quality: quality}
}

// Encode returns a base64 payload for the frame. Payloads that cannot be
// decoded as an image are shipped unresized; only unreadable (empty) input
// is an error.
func (c *Codec) Encode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return base64.StdEncoding.EncodeToString(data), nil
	}

	img = c.shrink(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return "", fmt.Errorf("failed to re-encode frame: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// shrink scales the image so its longest edge is at most maxDim,
// preserving aspect ratio.
func (c *Codec) shrink(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= c.maxDim && h <= c.maxDim {
		return img
	}

	scale := float64(c.maxDim) / float64(w)
	if h > w {
		scale = float64(c.maxDim) / float64(h)
	}

	nw := int(math.Max(1, math.Round(float64(w)*scale)))
	nh := int(math.Max(1, math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
