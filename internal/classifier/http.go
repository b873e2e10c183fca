package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/protocol"
)

type httpClassifier struct {
	endpoint string
	encoding string
	labels   []string
	http     *http.Client
}

// NewHTTPClassifier posts each frame to endpoint, either as a multipart
// "image" upload or as JSON {"image": "data:<type>;base64,..."}.
func NewHTTPClassifier(endpoint, encoding string, timeout time.Duration, labels []string) Classifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if encoding == "" {
		encoding = "multipart"
	}
	return &httpClassifier{
		endpoint: endpoint,
		encoding: encoding,
		labels:   labels,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *httpClassifier) Classify(ctx context.Context, frame capture.Frame) (protocol.Observation, error) {
	if len(frame.Data) == 0 {
		return protocol.Observation{}, ErrEmptyFrame
	}
	body, contentType, err := c.encode(frame)
	if err != nil {
		return protocol.Observation{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return protocol.Observation{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return protocol.Observation{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return protocol.Observation{}, fmt.Errorf("read classifier response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return protocol.Observation{}, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return decodeResponse(data, c.labels)
}

func (c *httpClassifier) encode(frame capture.Frame) (io.Reader, string, error) {
	contentType := frame.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if c.encoding == "json" {
		payload := map[string]string{
			"image": "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(frame.Data),
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="frame`+extension(contentType)+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func extension(contentType string) string {
	if contentType == "image/png" {
		return ".png"
	}
	return ".jpg"
}
