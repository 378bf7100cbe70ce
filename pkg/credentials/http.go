package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPProvider fetches credentials from a remote token service, for
// deployments where this engine runs apart from the issuing backend.
type HTTPProvider struct {
	baseURL   string
	authToken string
	client    *http.Client
}

func NewHTTPProvider(baseURL string, authToken string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:   baseURL,
		authToken: authToken,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context, channel string) (ChannelCredentials, error) {
	endpoint := p.baseURL + "/voice/token"
	if channel != "" {
		endpoint += "?channel=" + url.QueryEscape(channel)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ChannelCredentials{}, fmt.Errorf("%w: %v", ErrCredential, err)
	}
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ChannelCredentials{}, fmt.Errorf("%w: %v", ErrCredential, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ChannelCredentials{}, fmt.Errorf("%w: status %d", ErrCredential, resp.StatusCode)
	}

	var creds ChannelCredentials
	if err = json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return ChannelCredentials{}, fmt.Errorf("%w: %v", ErrCredential, err)
	}
	if creds.JoinToken == "" || creds.Channel == "" {
		return ChannelCredentials{}, fmt.Errorf("%w: incomplete response", ErrCredential)
	}
	return creds, nil
}
