package classifier

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/protocol"
	"github.com/mattn/go-shellwords"
)

// execClassifier writes the frame to a temp file and runs
// `<command> --image <path>`, expecting the JSON reply on stdout.
type execClassifier struct {
	cmd     []string
	timeout time.Duration
	labels  []string
	mu      sync.Mutex
}

func NewExecClassifier(command string, timeout time.Duration, labels []string) (Classifier, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse classifier command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("classifier command is empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &execClassifier{cmd: args, timeout: timeout, labels: labels}, nil
}

func (c *execClassifier) Classify(ctx context.Context, frame capture.Frame) (protocol.Observation, error) {
	if len(frame.Data) == 0 {
		return protocol.Observation{}, ErrEmptyFrame
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.CreateTemp("", "signspeak_frame_*"+extension(frame.ContentType))
	if err != nil {
		return protocol.Observation{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	if _, err := file.Write(frame.Data); err != nil {
		file.Close()
		return protocol.Observation{}, fmt.Errorf("write frame: %w", err)
	}
	if err := file.Close(); err != nil {
		return protocol.Observation{}, fmt.Errorf("close frame: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string{}, c.cmd[1:]...), "--image", file.Name())
	command := exec.CommandContext(ctx, c.cmd[0], args...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return protocol.Observation{}, fmt.Errorf("classifier command failed: %w: %s", err, stderr.String())
	}
	return decodeResponse(stdout.Bytes(), c.labels)
}
