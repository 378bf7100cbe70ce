package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/vidacademy/livekit-tutor/pkg/credentials"
	"github.com/vidacademy/livekit-tutor/pkg/export"
	"github.com/vidacademy/livekit-tutor/pkg/session"
	"github.com/vidacademy/livekit-tutor/pkg/transcript"
)

type fakeService struct {
	started *session.StartRequest
	stopped string
}

func (f *fakeService) Start(ctx context.Context, req session.StartRequest) (session.Snapshot, error) {
	f.started = &req
	return session.Snapshot{
		Channel: "voice_chat_abc123",
		State:   session.StateAwaitingAgent,
		Turns:   []transcript.Turn{},
	}, nil
}

func (f *fakeService) Stop(ctx context.Context, channel string) error {
	if channel != "voice_chat_abc123" {
		return session.ErrSessionNotFound
	}
	f.stopped = channel
	return nil
}

func (f *fakeService) Snapshot(channel string) (session.Snapshot, error) {
	if channel != "voice_chat_abc123" {
		return session.Snapshot{}, session.ErrSessionNotFound
	}
	return session.Snapshot{Channel: channel, State: session.StateActive}, nil
}

func (f *fakeService) SetMicrophone(channel string, enabled bool) error { return nil }
func (f *fakeService) RetryAudioPlayback(channel string) error         { return nil }

func (f *fakeService) Export(ctx context.Context, channel string) (string, error) {
	return channel + "-x.json", nil
}

func (f *fakeService) SetExporter(exporter *export.Exporter) {}
func (f *fakeService) Shutdown()                             {}

type fakeTokenProvider struct{}

func (fakeTokenProvider) Fetch(ctx context.Context, channel string) (credentials.ChannelCredentials, error) {
	return credentials.ChannelCredentials{
		AppID:          "app",
		Channel:        channel,
		UID:            123456,
		JoinToken:      "join",
		MessagingToken: "join",
	}, nil
}

func perform(t *testing.T, handler echo.HandlerFunc, method string, target string, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestStartSession(t *testing.T) {
	svc := &fakeService{}
	vc := NewVoiceController(svc, fakeTokenProvider{})

	rec := perform(t, vc.StartSession, http.MethodPost, "/voice/sessions/start",
		`{"knowledge_ref":"video-42","tts_vendor":"elevenlabs"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.started)
	require.Equal(t, "video-42", svc.started.KnowledgeRef)
	require.Equal(t, "elevenlabs", svc.started.Voice.Vendor)
	require.Contains(t, rec.Body.String(), "awaiting_agent")
}

func TestStopSessionRequiresChannel(t *testing.T) {
	vc := NewVoiceController(&fakeService{}, fakeTokenProvider{})

	rec := perform(t, vc.StopSession, http.MethodPost, "/voice/sessions/stop", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopSessionNotFound(t *testing.T) {
	vc := NewVoiceController(&fakeService{}, fakeTokenProvider{})

	rec := perform(t, vc.StopSession, http.MethodPost, "/voice/sessions/stop",
		`{"channel":"voice_chat_other"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSession(t *testing.T) {
	vc := NewVoiceController(&fakeService{}, fakeTokenProvider{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/voice/sessions/voice_chat_abc123", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("channel")
	c.SetParamValues("voice_chat_abc123")

	require.NoError(t, vc.GetSession(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "active")
}

func TestToken(t *testing.T) {
	vc := NewVoiceController(&fakeService{}, fakeTokenProvider{})

	rec := perform(t, vc.Token, http.MethodGet, "/voice/token?channel=voice_chat_abc123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "voice_chat_abc123")
	require.Contains(t, rec.Body.String(), "123456")
}

func TestExportTranscript(t *testing.T) {
	vc := NewVoiceController(&fakeService{}, fakeTokenProvider{})

	rec := perform(t, vc.ExportTranscript, http.MethodPost, "/voice/sessions/export",
		`{"channel":"voice_chat_abc123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "voice_chat_abc123-x.json")
}
