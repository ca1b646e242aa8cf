package tools

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Resizer shrinks frames that would make a vision request too large.
type Resizer struct {
	// Threshold is the base64 length at which a frame is resized.
	Threshold int
	// MaxDimension bounds the longest side after resizing.
	MaxDimension int
}

// Downscale returns frame unchanged when its base64 form is shorter than
// Threshold. Otherwise it resizes so the longest side is at most
// MaxDimension and re-encodes, returning whichever encoding is smaller.
// Any decode or encode error yields the original frame.
func (r Resizer) Downscale(frame []byte) []byte {
	if r.Threshold <= 0 || base64.StdEncoding.EncodedLen(len(frame)) < r.Threshold {
		return frame
	}

	src, err := png.Decode(bytes.NewReader(frame))
	if err != nil {
		return frame
	}

	var img image.Image = src
	b := src.Bounds()
	if w, h := fitWithin(b.Dx(), b.Dy(), r.MaxDimension); w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return frame
	}
	if buf.Len() >= len(frame) {
		return frame
	}
	return buf.Bytes()
}

// fitWithin scales w×h so the longer side is at most limit, keeping the
// aspect ratio. Sizes already within bounds are returned as is.
func fitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
