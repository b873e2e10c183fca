package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/eventstore"
	"github.com/loqalabs/signspeak/internal/protocol"
	"github.com/loqalabs/signspeak/internal/session"
	"github.com/loqalabs/signspeak/internal/stability"
)

const maxUploadBytes = 10 << 20

// EventLister reads the session timeline.
type EventLister interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]eventstore.Event, error)
}

type Handlers struct {
	Session *session.Session
	Events  EventLister
	Logger  *slog.Logger
}

func NewHandlers(sess *session.Session, events EventLister, logger *slog.Logger) Handlers {
	return Handlers{Session: sess, Events: events, Logger: logger.With(slog.String("component", "api"))}
}

func (h Handlers) Register(g *echo.Group) {
	g.GET("/state", h.state)
	g.PUT("/settings", h.updateSettings)
	g.POST("/polling/start", h.startPolling)
	g.POST("/polling/stop", h.stopPolling)
	g.POST("/sentence/add", h.add)
	g.POST("/sentence/space", h.space)
	g.POST("/sentence/backspace", h.backspace)
	g.POST("/sentence/clear", h.clear)
	g.POST("/sentence/speak", h.speak)
	g.POST("/reset", h.reset)
	g.POST("/classify", h.classify)
	g.GET("/events", h.events)
}

type settingsRequest struct {
	ConfidenceThreshold any   `json:"confidence_threshold"`
	SpeakOnDetect       *bool `json:"speak_on_detect"`
	AutoAddToSentence   *bool `json:"auto_add_to_sentence"`
	AutoSpeakSentence   *bool `json:"auto_speak_sentence"`
}

type sentenceResponse struct {
	Sentence string `json:"sentence"`
}

type pollingResponse struct {
	Running      bool   `json:"running"`
	Changed      bool   `json:"changed"`
	CaptureError string `json:"capture_error,omitempty"`
}

type classifyResponse struct {
	Observation protocol.Observation `json:"observation"`
	Decision    stability.Decision   `json:"decision"`
	Sentence    string               `json:"sentence"`
}

type eventResponse struct {
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h Handlers) state(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Session.State())
}

func (h Handlers) updateSettings(c echo.Context) error {
	var req settingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid settings payload")
	}
	update := session.SettingsUpdate{
		SpeakOnDetect:     req.SpeakOnDetect,
		AutoAddToSentence: req.AutoAddToSentence,
		AutoSpeakSentence: req.AutoSpeakSentence,
	}
	if req.ConfidenceThreshold != nil {
		raw := thresholdString(req.ConfidenceThreshold)
		update.ConfidenceThreshold = &raw
	}
	return c.JSON(http.StatusOK, h.Session.UpdateSettings(update))
}

func thresholdString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func (h Handlers) startPolling(c echo.Context) error {
	started, err := h.Session.StartPolling()
	resp := pollingResponse{Running: h.Session.Running(), Changed: started}
	if err != nil {
		resp.CaptureError = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h Handlers) stopPolling(c echo.Context) error {
	stopped := h.Session.StopPolling()
	return c.JSON(http.StatusOK, pollingResponse{Running: h.Session.Running(), Changed: stopped})
}

func (h Handlers) add(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid token payload")
	}
	ctx := c.Request().Context()
	if req.Token != "" {
		return c.JSON(http.StatusOK, sentenceResponse{Sentence: h.Session.AddToken(ctx, req.Token)})
	}
	out, err := h.Session.AddCurrent(ctx)
	if errors.Is(err, session.ErrNoPrediction) {
		return echo.NewHTTPError(http.StatusConflict, "no current prediction to add")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sentenceResponse{Sentence: out})
}

func (h Handlers) space(c echo.Context) error {
	return c.JSON(http.StatusOK, sentenceResponse{Sentence: h.Session.Space(c.Request().Context())})
}

func (h Handlers) backspace(c echo.Context) error {
	return c.JSON(http.StatusOK, sentenceResponse{Sentence: h.Session.Backspace(c.Request().Context())})
}

func (h Handlers) clear(c echo.Context) error {
	return c.JSON(http.StatusOK, sentenceResponse{Sentence: h.Session.Clear(c.Request().Context())})
}

func (h Handlers) speak(c echo.Context) error {
	spoken := h.Session.SpeakSentence(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]bool{"spoken": spoken})
}

func (h Handlers) reset(c echo.Context) error {
	if err := h.Session.Reset(c.Request().Context()); err != nil {
		h.Logger.Warn("reset completed with error", slog.String("error", err.Error()))
	}
	return c.JSON(http.StatusOK, h.Session.State())
}

func (h Handlers) classify(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing image upload")
	}
	if file.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image too large")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable image upload")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable image upload")
	}
	frame, err := capture.DecodeFrame(data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "upload is not a jpeg or png image")
	}

	obs, decision, err := h.Session.ClassifyFrame(c.Request().Context(), frame)
	if err != nil {
		h.Logger.Warn("upload classification failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusBadGateway, "classification failed")
	}
	return c.JSON(http.StatusOK, classifyResponse{
		Observation: obs,
		Decision:    decision,
		Sentence:    h.Session.Sentence(),
	})
}

func (h Handlers) events(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, 1000)
	}
	if h.Events == nil {
		return c.JSON(http.StatusOK, []eventResponse{})
	}
	events, err := h.Events.Recent(c.Request().Context(), h.Session.ID(), limit)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{ID: e.ID, Kind: e.Kind, Data: e.Payload, CreatedAt: e.CreatedAt})
	}
	return c.JSON(http.StatusOK, out)
}
