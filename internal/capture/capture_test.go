package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/signspeak/internal/config"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func TestDecodeFrame(t *testing.T) {
	if _, err := DecodeFrame(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
	if _, err := DecodeFrame([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
	path := filepath.Join(t.TempDir(), "f.png")
	writePNG(t, path, 4, 3)
	data, _ := os.ReadFile(path)
	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Width != 4 || frame.Height != 3 || frame.ContentType != "image/png" {
		t.Fatalf("unexpected frame metadata %+v", frame)
	}
}

func TestFileSourceCyclesDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 1, 1)
	writePNG(t, filepath.Join(dir, "b.png"), 2, 2)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	var widths []int
	for i := 0; i < 3; i++ {
		f, err := src.Frame(context.Background())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		widths = append(widths, f.Width)
	}
	if widths[0] != 1 || widths[1] != 2 || widths[2] != 1 {
		t.Fatalf("expected sorted cycle 1,2,1 got %v", widths)
	}
}

func TestFileSourceUnavailable(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "missing.jpg")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := OpenFile(t.TempDir()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty dir, got %v", err)
	}
}

func TestExecSource(t *testing.T) {
	if _, err := OpenExec(context.Background(), "definitely-not-a-camera-binary --frame", 0, time.Second); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "cam0.png")
	writePNG(t, path, 5, 5)
	command := "cat '" + filepath.Join(filepath.Dir(path), "cam{device}.png") + "'"
	src, err := OpenExec(context.Background(), command, 0, time.Second)
	if err != nil {
		t.Fatalf("open exec: %v", err)
	}
	frame, err := src.Frame(context.Background())
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if frame.Width != 5 {
		t.Fatalf("expected width 5, got %d", frame.Width)
	}
}

func TestNewOpener(t *testing.T) {
	open, err := NewOpener(config.CaptureConfig{Mode: "mock"})
	if err != nil {
		t.Fatalf("opener: %v", err)
	}
	src, err := open(context.Background())
	if err != nil {
		t.Fatalf("open mock: %v", err)
	}
	frame, err := src.Frame(context.Background())
	if err != nil || len(frame.Data) == 0 {
		t.Fatalf("expected mock frame, got %+v %v", frame, err)
	}
	if _, err := NewOpener(config.CaptureConfig{Mode: "webrtc"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
