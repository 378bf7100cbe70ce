package rest

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vidacademy/livekit-tutor/pkg/agent"
	"github.com/vidacademy/livekit-tutor/pkg/credentials"
	"github.com/vidacademy/livekit-tutor/pkg/session"
)

type voiceController struct {
	session.Service
	provider credentials.Provider
}

func NewVoiceController(service session.Service, provider credentials.Provider) voiceController {
	return voiceController{service, provider}
}

var ErrEmptyFields = errors.New("one or more fields is empty")

type StartSessionRequest struct {
	Channel          string `json:"channel"`
	KnowledgeRef     string `json:"knowledge_ref"`
	KnowledgeContext string `json:"knowledge_context"`
	TTSVendor        string `json:"tts_vendor"`
	Voice            string `json:"voice"`
}

type StopSessionRequest struct {
	Channel string `json:"channel"`
}

type MicrophoneRequest struct {
	Channel string `json:"channel"`
	Enabled bool   `json:"enabled"`
}

type ExportResponse struct {
	Key string `json:"key"`
}

// Token issues channel credentials without starting a server-side session,
// for clients that join the channel themselves.
func (vc *voiceController) Token(c echo.Context) error {
	channel := c.QueryParam("channel")

	creds, err := vc.provider.Fetch(c.Request().Context(), channel)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, creds)
}

func (vc *voiceController) StartSession(c echo.Context) error {
	// Bind request data
	data := new(StartSessionRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	// Call service; an empty channel asks for a generated one
	snap, err := vc.Service.Start(c.Request().Context(), session.StartRequest{
		Channel:          data.Channel,
		KnowledgeRef:     data.KnowledgeRef,
		KnowledgeContext: data.KnowledgeContext,
		Voice: agent.VoiceConfig{
			Vendor: data.TTSVendor,
			Voice:  data.Voice,
		},
	})
	if err != nil {
		if errors.Is(err, session.ErrNotIdle) {
			return echo.NewHTTPError(http.StatusConflict, err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, snap)
}

func (vc *voiceController) StopSession(c echo.Context) error {
	// Bind request data
	data := new(StopSessionRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	// Sanitise request
	if data.Channel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	// Call service
	if err := vc.Service.Stop(c.Request().Context(), data.Channel); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	// Return success
	return c.NoContent(http.StatusOK)
}

func (vc *voiceController) GetSession(c echo.Context) error {
	channel := c.Param("channel")
	if channel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	snap, err := vc.Service.Snapshot(channel)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (vc *voiceController) SetMicrophone(c echo.Context) error {
	data := new(MicrophoneRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Channel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	if err := vc.Service.SetMicrophone(data.Channel, data.Enabled); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusOK)
}

func (vc *voiceController) RetryAudio(c echo.Context) error {
	data := new(StopSessionRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Channel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	if err := vc.Service.RetryAudioPlayback(data.Channel); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err)
	}
	return c.NoContent(http.StatusOK)
}

func (vc *voiceController) ExportTranscript(c echo.Context) error {
	data := new(StopSessionRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Channel == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	key, err := vc.Service.Export(c.Request().Context(), data.Channel)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, ExportResponse{Key: key})
}
