package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/vidacademy/livekit-tutor/pkg/transcript"
)

// Document is the uploaded transcript file.
type Document struct {
	Channel    string            `json:"channel"`
	ExportedAt time.Time         `json:"exported_at"`
	Turns      []transcript.Turn `json:"turns"`
}

// Exporter serialises a conversation's turns and hands them to the uploader.
// The transcript is otherwise ephemeral; this is the only persistence path.
type Exporter struct {
	uploader Uploader
	now      func() time.Time
}

func NewExporter(uploader Uploader) *Exporter {
	return &Exporter{uploader: uploader, now: time.Now}
}

// Export uploads the turns as a JSON document and returns the storage key.
func (e *Exporter) Export(ctx context.Context, channel string, turns []transcript.Turn) (string, error) {
	doc := Document{
		Channel:    channel,
		ExportedAt: e.now().UTC(),
		Turns:      turns,
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s-%s.json", channel, shortuuid.New()[:8])
	if err = e.uploader.Upload(ctx, key, bytes.NewReader(body)); err != nil {
		return "", err
	}
	return key, nil
}
