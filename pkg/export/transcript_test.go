package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidacademy/livekit-tutor/pkg/transcript"
)

type bufferUploader struct {
	key  string
	body bytes.Buffer
}

func (u *bufferUploader) Upload(ctx context.Context, key string, body io.Reader) error {
	u.key = key
	_, err := u.body.ReadFrom(body)
	return err
}

func (u *bufferUploader) GetDirectory() string {
	return "transcripts"
}

func TestExporterWritesDocument(t *testing.T) {
	uploader := &bufferUploader{}
	exporter := NewExporter(uploader)
	exporter.now = func() time.Time {
		return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	}

	turns := []transcript.Turn{
		{ID: "200001:1:0", UID: "200001", Role: transcript.RoleUser, Text: "hello", Status: transcript.TurnEnd},
		{ID: "999:1:120", UID: "999", Role: transcript.RoleAssistant, Text: "hi there", Status: transcript.TurnEnd},
	}

	key, err := exporter.Export(context.Background(), "voice_chat_abc123", turns)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "voice_chat_abc123-"))
	require.True(t, strings.HasSuffix(key, ".json"))
	require.Equal(t, key, uploader.key)

	var doc Document
	require.NoError(t, json.Unmarshal(uploader.body.Bytes(), &doc))
	require.Equal(t, "voice_chat_abc123", doc.Channel)
	require.Equal(t, 2024, doc.ExportedAt.Year())
	require.Len(t, doc.Turns, 2)
	require.Equal(t, "hello", doc.Turns[0].Text)
	require.Equal(t, transcript.RoleAssistant, doc.Turns[1].Role)
}

type failingUploader struct{}

func (failingUploader) Upload(ctx context.Context, key string, body io.Reader) error {
	return io.ErrClosedPipe
}

func (failingUploader) GetDirectory() string { return "" }

func TestExporterUploadFailure(t *testing.T) {
	exporter := NewExporter(failingUploader{})
	_, err := exporter.Export(context.Background(), "voice_chat_abc123", nil)
	require.Error(t, err)
}
