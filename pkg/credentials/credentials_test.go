package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIssuerFetch(t *testing.T) {
	issuer := NewIssuer("api-key", "api-secret-needs-enough-length")
	creds, err := issuer.Fetch(context.Background(), "voice_chat_abc123")
	require.NoError(t, err)

	require.Equal(t, "api-key", creds.AppID)
	require.Equal(t, "voice_chat_abc123", creds.Channel)
	require.GreaterOrEqual(t, creds.UID, 100000)
	require.LessOrEqual(t, creds.UID, 999999)
	require.NotEmpty(t, creds.JoinToken)

	// One unified token serves both the join and the messaging login
	require.Equal(t, creds.JoinToken, creds.MessagingToken)
}

func TestIssuerGeneratesChannelName(t *testing.T) {
	issuer := NewIssuer("api-key", "api-secret-needs-enough-length")
	creds, err := issuer.Fetch(context.Background(), "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(creds.Channel, "voice_chat_"))
	require.Len(t, creds.Channel, len("voice_chat_")+8)
}

func TestIssuerAgentToken(t *testing.T) {
	issuer := NewIssuer("api-key", "api-secret-needs-enough-length")
	token, err := issuer.BuildAgentToken("voice_chat_abc123", "999")
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestHTTPProviderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/voice/token", r.URL.Path)
		require.Equal(t, "voice_chat_abc123", r.URL.Query().Get("channel"))
		require.Equal(t, "Bearer user-jwt", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(ChannelCredentials{
			AppID:          "app",
			Channel:        "voice_chat_abc123",
			UID:            123456,
			JoinToken:      "join",
			MessagingToken: "join",
		})
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, "user-jwt")
	creds, err := provider.Fetch(context.Background(), "voice_chat_abc123")
	require.NoError(t, err)
	require.Equal(t, 123456, creds.UID)
	require.Equal(t, "join", creds.JoinToken)
}

func TestHTTPProviderAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, "")
	_, err := provider.Fetch(context.Background(), "")
	require.ErrorIs(t, err, ErrCredential)
}

func TestHTTPProviderIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"channel":"voice_chat_abc123"}`))
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, "")
	_, err := provider.Fetch(context.Background(), "")
	require.ErrorIs(t, err, ErrCredential)
}
