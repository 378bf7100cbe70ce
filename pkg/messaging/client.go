package messaging

import (
	"context"
	"errors"
)

// Handler receives one inbound payload at a time, in arrival order.
type Handler func(payload []byte)

var ErrLogin = errors.New("messaging login failed")

// Client is the side-channel feed used to deliver transcript text alongside
// the audio stream. The feed is ordered per sender; delivery may still
// duplicate, which the transcript aggregator tolerates.
type Client interface {
	// Login authenticates with the messaging token and starts dispatching
	// inbound payloads to the handler. Fails with ErrLogin.
	Login(ctx context.Context, token string) error

	// Logout unsubscribes and closes the connection. Safe to call twice and
	// safe to call without a successful Login.
	Logout() error
}
