package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidacademy/livekit-tutor/pkg/media"
)

func newTestService(provider *fakeProvider, agentClient *fakeAgentClient) Service {
	return NewService(
		ServiceConfig{URL: "wss://example.test"},
		provider,
		agentClient,
		nil,
		func() *media.Controller {
			return media.NewController(nullPlayer{}, nullSource{}, media.PCM16Decoder{}, media.PCM16Encoder{})
		},
	)
}

func TestServiceUnknownChannel(t *testing.T) {
	svc := newTestService(&fakeProvider{}, &fakeAgentClient{})

	require.ErrorIs(t, svc.Stop(context.Background(), "voice_chat_missing"), ErrSessionNotFound)
	require.ErrorIs(t, svc.SetMicrophone("voice_chat_missing", true), ErrSessionNotFound)
	require.ErrorIs(t, svc.RetryAudioPlayback("voice_chat_missing"), ErrSessionNotFound)

	_, err := svc.Snapshot("voice_chat_missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Export(context.Background(), "voice_chat_missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestServiceFailedStartNotRetained(t *testing.T) {
	provider := &fakeProvider{err: context.DeadlineExceeded}
	svc := newTestService(provider, &fakeAgentClient{})

	_, err := svc.Start(context.Background(), StartRequest{Channel: "voice_chat_abc123"})
	require.Error(t, err)

	// The failed session is dropped; a later stop finds nothing
	require.ErrorIs(t, svc.Stop(context.Background(), "voice_chat_abc123"), ErrSessionNotFound)
}
