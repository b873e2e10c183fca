package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
)

type mockSource struct {
	frame Frame
}

// NewMockSource returns a source that serves a tiny generated PNG.
func NewMockSource() Source {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 4)
	}
	img.SetGray(0, 0, color.Gray{Y: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	frame, _ := DecodeFrame(buf.Bytes())
	return &mockSource{frame: frame}
}

func (m *mockSource) Frame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	return m.frame, nil
}

func (m *mockSource) Close() error { return nil }
