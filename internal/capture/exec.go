package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// execSource runs a command per frame and reads one encoded image from its
// stdout, e.g. `ffmpeg -f v4l2 -i /dev/video{device} -frames:v 1 -f image2pipe -`.
type execSource struct {
	cmd     []string
	timeout time.Duration
	mu      sync.Mutex
}

// OpenExec parses command, substitutes {device} and checks the binary exists.
func OpenExec(_ context.Context, command string, device int, timeout time.Duration) (Source, error) {
	command = strings.ReplaceAll(command, "{device}", strconv.Itoa(device))
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command empty: %w", ErrUnavailable)
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &execSource{cmd: args, timeout: timeout}, nil
}

func (s *execSource) Frame(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	command := exec.CommandContext(ctx, s.cmd[0], s.cmd[1:]...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return Frame{}, fmt.Errorf("capture command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return DecodeFrame(stdout.Bytes())
}

func (s *execSource) Close() error { return nil }
