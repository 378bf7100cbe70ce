package credentials

import (
	"context"
	"errors"
)

var ErrCredential = errors.New("cannot acquire channel credentials")

// ChannelCredentials is everything one participant needs to join a channel
// and its side-channel feed. Immutable once issued; the server expires them
// after a fixed window, which is not enforced client-side beyond
// reuse-until-leave.
type ChannelCredentials struct {
	AppID          string `json:"app_id"`
	Channel        string `json:"channel"`
	UID            int    `json:"uid"`
	JoinToken      string `json:"token"`
	MessagingToken string `json:"messaging_token"`
}

// Provider acquires credentials for a channel. An empty channel name asks
// the provider to generate one.
type Provider interface {
	Fetch(ctx context.Context, channel string) (ChannelCredentials, error)
}
