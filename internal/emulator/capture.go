package emulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"go.uber.org/zap"
)

const (
	minCanvasSide = 100
	minCropBytes  = 1000
)

// canvasRect is the game canvas position in CSS pixels.
type canvasRect struct {
	Success          bool    `json:"success"`
	Error            string  `json:"error"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

// cropBounds converts r to device pixels and clamps it to an image of
// imgW×imgH.
func cropBounds(r canvasRect, imgW, imgH int) image.Rectangle {
	dpr := r.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	x := int(r.X * dpr)
	y := int(r.Y * dpr)
	w := int(r.Width * dpr)
	h := int(r.Height * dpr)

	x = max(0, min(x, imgW-10))
	y = max(0, min(y, imgH-10))
	w = min(w, imgW-x)
	h = min(h, imgH-y)
	return image.Rect(x, y, x+w, y+h)
}

// CaptureFrame returns the game canvas as PNG. When the canvas cannot be
// located or the crop looks empty, the whole viewport is returned instead.
func (d *Driver) CaptureFrame(ctx context.Context) ([]byte, error) {
	full, err := d.page.Screenshot(ctx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: screenshot: %v", ErrUnavailable, err)
	}

	game, err := d.cropCanvas(ctx, full)
	if err != nil {
		d.logger.Warn("canvas crop failed, using full screenshot", zap.Error(err))
		return full, nil
	}
	return game, nil
}

func (d *Driver) cropCanvas(ctx context.Context, full []byte) ([]byte, error) {
	var r canvasRect
	if err := d.page.Eval(ctx, canvasRectJS, &r); err != nil {
		return nil, fmt.Errorf("locate canvas: %w", err)
	}
	if r.Error != "" {
		return nil, errors.New(r.Error)
	}
	if !r.Success {
		return nil, errors.New("unexpected canvas info")
	}
	if r.Width < minCanvasSide || r.Height < minCanvasSide {
		return nil, fmt.Errorf("canvas too small: %.0fx%.0f", r.Width, r.Height)
	}

	img, err := png.Decode(bytes.NewReader(full))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	b := img.Bounds()
	rect := cropBounds(r, b.Dx(), b.Dy()).Add(b.Min)

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, errors.New("screenshot image cannot be cropped")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, sub.SubImage(rect)); err != nil {
		return nil, err
	}
	if buf.Len() < minCropBytes {
		return nil, fmt.Errorf("cropped image too small: %d bytes", buf.Len())
	}
	d.logger.Debug("canvas cropped", zap.Stringer("rect", rect), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
