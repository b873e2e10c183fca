package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// fileSource serves an uploaded image, or cycles through the images of a
// directory one per frame.
type fileSource struct {
	paths []string
	next  int
	mu    sync.Mutex
}

func OpenFile(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return &fileSource{paths: []string{path}}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(path, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrUnavailable, path)
	}
	sort.Strings(paths)
	return &fileSource{paths: paths}, nil
}

func (s *fileSource) Frame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	path := s.paths[s.next]
	s.next = (s.next + 1) % len(s.paths)
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	return DecodeFrame(data)
}

func (s *fileSource) Close() error { return nil }
