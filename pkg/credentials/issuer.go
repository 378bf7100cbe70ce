package credentials

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/livekit/protocol/auth"
)

const tokenValidity = time.Hour

// Issuer builds channel credentials locally from the deployment's API key
// pair. One token carries both the join and the messaging grant, so the
// same string is handed to both clients.
type Issuer struct {
	apiKey    string
	apiSecret string
}

func NewIssuer(apiKey string, apiSecret string) *Issuer {
	return &Issuer{apiKey: apiKey, apiSecret: apiSecret}
}

func (i *Issuer) Fetch(ctx context.Context, channel string) (ChannelCredentials, error) {
	if channel == "" {
		channel = GenerateChannelName()
	}

	// Short numeric uids keep the messaging side happy; it has stricter
	// identifier limits than the audio channel
	uid := 100000 + rand.Intn(900000)

	token, err := i.buildParticipantToken(channel, strconv.Itoa(uid))
	if err != nil {
		return ChannelCredentials{}, fmt.Errorf("%w: %v", ErrCredential, err)
	}

	return ChannelCredentials{
		AppID:          i.apiKey,
		Channel:        channel,
		UID:            uid,
		JoinToken:      token,
		MessagingToken: token,
	}, nil
}

func (i *Issuer) buildParticipantToken(channel string, identity string) (string, error) {
	t := true
	grant := &auth.VideoGrant{
		Room:           channel,
		RoomJoin:       true,
		CanPublish:     &t,
		CanPublishData: &t,
		CanSubscribe:   &t,
	}
	return auth.NewAccessToken(i.apiKey, i.apiSecret).
		AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(tokenValidity).
		ToJWT()
}

// BuildAgentToken issues the token the agent control service passes to the
// agent when it joins the same channel.
func (i *Issuer) BuildAgentToken(channel string, agentUID string) (string, error) {
	return i.buildParticipantToken(channel, agentUID)
}

// GenerateChannelName returns a fresh conversation channel name.
func GenerateChannelName() string {
	return fmt.Sprintf("voice_chat_%s", strings.ToLower(shortuuid.New()[:8]))
}
