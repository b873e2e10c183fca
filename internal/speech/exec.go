package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"
)

// execSynth runs a TTS command that reads a JSON request on stdin and writes
// a WAV file to stdout (e.g. a piper or espeak-ng wrapper).
type execSynth struct {
	cmd             []string
	chunkDurationMS int
	mu              sync.Mutex
}

type execRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

func NewExecSynth(command string, chunkDurationMS int) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speech command empty")
	}
	if chunkDurationMS <= 0 {
		chunkDurationMS = 400
	}
	return &execSynth{cmd: args, chunkDurationMS: chunkDurationMS}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		e.mu.Lock()
		defer e.mu.Unlock()

		input, err := json.Marshal(execRequest{Text: req.Text, Voice: req.Voice, Rate: req.Rate, Pitch: req.Pitch})
		if err != nil {
			errs <- err
			return
		}
		cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
		cmd.Stdin = bytes.NewReader(input)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		output, err := cmd.Output()
		if err != nil {
			errs <- fmt.Errorf("speech command failed: %w: %s", err, stderr.String())
			return
		}

		buf, err := decodeWAV(output)
		if err != nil {
			errs <- err
			return
		}
		for _, chunk := range splitPCM(req.RequestID, buf, e.chunkDurationMS) {
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return chunks, errs
}

func decodeWAV(data []byte) (*audio.IntBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("speech command did not produce a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(dec.BitDepth)
	}
	return buf, nil
}

// splitPCM converts samples to PCM16LE and cuts them into chunks of roughly
// chunkMS each. The last chunk is marked final.
func splitPCM(requestID string, buf *audio.IntBuffer, chunkMS int) []SynthChunk {
	sampleRate := buf.Format.SampleRate
	channels := buf.Format.NumChannels
	shift := 0
	if buf.SourceBitDepth > 16 {
		shift = buf.SourceBitDepth - 16
	}
	perChunk := sampleRate * channels * chunkMS / 1000
	if perChunk <= 0 {
		perChunk = len(buf.Data)
	}

	var out []SynthChunk
	for start := 0; start < len(buf.Data) || len(out) == 0; start += perChunk {
		end := start + perChunk
		if end > len(buf.Data) {
			end = len(buf.Data)
		}
		pcm := make([]byte, 2*(end-start))
		for i, s := range buf.Data[start:end] {
			v := s >> shift
			if buf.SourceBitDepth == 8 {
				v = (s - 128) << 8
			}
			binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v)))
		}
		out = append(out, SynthChunk{
			RequestID:  requestID,
			Sequence:   len(out),
			SampleRate: sampleRate,
			Channels:   channels,
			PCM:        pcm,
		})
		if end == len(buf.Data) {
			break
		}
	}
	out[len(out)-1].Final = true
	return out
}
