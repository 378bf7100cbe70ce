package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/vidacademy/livekit-tutor/pkg/agent"
	"github.com/vidacademy/livekit-tutor/pkg/credentials"
	"github.com/vidacademy/livekit-tutor/pkg/media"
	"github.com/vidacademy/livekit-tutor/pkg/messaging"
	"github.com/vidacademy/livekit-tutor/pkg/transcript"
)

var (
	ErrNotIdle = errors.New("session already started")
	ErrJoin    = errors.New("cannot join channel")
)

// channelConn is the live audio channel handle. Valid only until the
// session stops.
type channelConn interface {
	Disconnect()
}

type joinFunc func(url string, token string, s *Session) (channelConn, error)

type messagingFactory func(channel string, handler messaging.Handler) messaging.Client

// RemoteParticipant mirrors what the channel has reported about one remote
// member. Entries are created on join/publish events and removed when the
// participant leaves.
type RemoteParticipant struct {
	UID      string `json:"uid"`
	HasAudio bool   `json:"has_audio"`
	HasVideo bool   `json:"has_video"`
}

// Options configures one conversation.
type Options struct {
	// URL of the realtime channel host.
	URL string

	// Channel name; empty lets the credential provider generate one.
	Channel string

	// KnowledgeRef identifies the video whose material grounds the agent.
	KnowledgeRef string

	// KnowledgeContext is pre-retrieved material forwarded on the invite.
	KnowledgeContext string

	Voice agent.VoiceConfig
}

// Deps are the session's collaborators. Join defaults to the LiveKit
// connector; tests substitute their own.
type Deps struct {
	Provider     credentials.Provider
	Agent        *agent.Lifecycle
	Media        *media.Controller
	NewMessaging messagingFactory

	// AgentToken builds the token the agent uses to join the channel.
	// Optional: when nil the agent control service issues its own.
	AgentToken func(channel string, agentUID string) (string, error)

	Join joinFunc
}

// Session owns one live conversation end to end: credentials, channel join,
// side-channel client, agent lifecycle and teardown. All other components
// hold references lent by the session for its duration only.
type Session struct {
	lock sync.Mutex

	opts Options
	deps Deps

	state        State
	creds        credentials.ChannelCredentials
	channel      channelConn
	msg          messaging.Client
	agg          *transcript.Aggregator
	participants map[string]*RemoteParticipant
	startedAt    time.Time
}

func New(opts Options, deps Deps) *Session {
	if deps.Join == nil {
		deps.Join = liveKitJoin
	}
	return &Session{
		opts:         opts,
		deps:         deps,
		state:        StateIdle,
		participants: make(map[string]*RemoteParticipant),
	}
}

// Start runs the full join sequence. Credential failures are never retried
// here; calling Start again after a failure is the caller's decision, on a
// fresh session.
func (s *Session) Start(ctx context.Context) error {
	s.lock.Lock()
	if s.state != StateIdle {
		s.lock.Unlock()
		return ErrNotIdle
	}
	s.state = StateAcquiringCredentials
	s.startedAt = time.Now()
	s.lock.Unlock()

	creds, err := s.deps.Provider.Fetch(ctx, s.opts.Channel)
	if err != nil {
		s.failWith(err)
		return err
	}

	s.lock.Lock()
	if s.state != StateAcquiringCredentials {
		// Stopped while the fetch was in flight; discard the result
		s.lock.Unlock()
		return nil
	}
	s.creds = creds
	s.agg = transcript.NewAggregator(strconv.Itoa(creds.UID))
	s.state = StateJoining
	s.lock.Unlock()
	log.Infof("acquired channel credentials | channel: %s, uid: %d", creds.Channel, creds.UID)

	ch, err := s.deps.Join(s.opts.URL, creds.JoinToken, s)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrJoin, err)
		s.failWith(err)
		return err
	}

	s.lock.Lock()
	if s.state != StateJoining {
		s.lock.Unlock()
		ch.Disconnect()
		return nil
	}
	s.channel = ch
	s.lock.Unlock()

	s.startMessaging(ctx, creds)

	s.lock.Lock()
	if s.state != StateJoining {
		s.lock.Unlock()
		return nil
	}
	s.state = StateAwaitingAgent
	s.lock.Unlock()

	if err = s.inviteAgent(ctx, creds); err != nil {
		s.failWith(err)
		return err
	}

	// Begin publishing the local microphone once the channel is up.
	// Best effort: a capture failure degrades the call, it does not end it.
	if err = s.deps.Media.PublishLocalMicrophone(true); err != nil {
		log.Warnf("cannot publish microphone | error: %v, channel: %s", err, creds.Channel)
	}

	return nil
}

// startMessaging logs the side-channel client in. Login failure degrades the
// session to voice-only rather than failing it: voice is the primary value,
// the transcript is secondary.
func (s *Session) startMessaging(ctx context.Context, creds credentials.ChannelCredentials) {
	if s.deps.NewMessaging == nil {
		log.Infof("no messaging feed configured, transcript disabled | channel: %s", creds.Channel)
		return
	}

	m := s.deps.NewMessaging(creds.Channel, s.onSideChannelMessage)
	if err := m.Login(ctx, creds.MessagingToken); err != nil {
		log.Warnf("messaging login failed, continuing without transcript | error: %v, channel: %s", err, creds.Channel)
		return
	}

	s.lock.Lock()
	if s.state.terminal() || s.state == StateStopping {
		s.lock.Unlock()
		m.Logout()
		return
	}
	s.msg = m
	s.lock.Unlock()
}

func (s *Session) inviteAgent(ctx context.Context, creds credentials.ChannelCredentials) error {
	var token string
	var err error
	if s.deps.AgentToken != nil {
		if token, err = s.deps.AgentToken(creds.Channel, agent.AgentUID); err != nil {
			return fmt.Errorf("%w: %v", agent.ErrInvite, err)
		}
	}

	id, err := s.deps.Agent.Invite(ctx, agent.InviteRequest{
		Channel:          creds.Channel,
		AgentToken:       token,
		KnowledgeRef:     s.opts.KnowledgeRef,
		KnowledgeContext: s.opts.KnowledgeContext,
		Voice:            s.opts.Voice,
	})
	if err != nil {
		return err
	}
	log.Infof("agent invited | agent: %s, channel: %s", id, creds.Channel)
	return nil
}

// Stop tears the session down: stop agent, leave channel, dispose the
// messaging client, always in that order, skipping steps never reached.
// Idempotent, and safe to call while Start is still awaiting a step.
func (s *Session) Stop() {
	s.teardown(StateStopped)
}

func (s *Session) failWith(cause error) {
	log.Errorf("session failed | error: %v, channel: %s", cause, s.opts.Channel)
	s.teardown(StateFailed)
}

func (s *Session) teardown(final State) {
	s.lock.Lock()
	if s.state == StateIdle || s.state == StateStopping || s.state == StateStopped {
		s.lock.Unlock()
		return
	}
	s.state = StateStopping
	ch := s.channel
	s.channel = nil
	m := s.msg
	s.msg = nil
	s.lock.Unlock()

	s.deps.Agent.StopAgent(context.Background())
	s.deps.Media.Close()
	if ch != nil {
		ch.Disconnect()
	}
	if m != nil {
		if err := m.Logout(); err != nil {
			log.Warnf("cannot dispose messaging client | error: %v, channel: %s", err, s.opts.Channel)
		}
	}

	s.lock.Lock()
	s.state = final
	s.lock.Unlock()
	log.Infof("session torn down | channel: %s, state: %s", s.opts.Channel, final)
}

func (s *Session) onSideChannelMessage(payload []byte) {
	rec, ok := transcript.Decode(payload)
	if !ok {
		return
	}
	s.lock.Lock()
	agg := s.agg
	s.lock.Unlock()
	if agg != nil {
		agg.Apply(rec)
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Channel returns the channel name once credentials are held.
func (s *Session) Channel() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.creds.Channel != "" {
		return s.creds.Channel
	}
	return s.opts.Channel
}

// Snapshot is the reactive view the UI renders from.
type Snapshot struct {
	Channel      string            `json:"channel"`
	State        State             `json:"state"`
	AudioBlocked bool              `json:"audio_blocked"`
	AgentID      string            `json:"agent_id,omitempty"`
	Turns        []transcript.Turn `json:"turns"`
}

func (s *Session) Snapshot() Snapshot {
	s.lock.Lock()
	agg := s.agg
	snap := Snapshot{
		Channel: s.creds.Channel,
		State:   s.state,
	}
	s.lock.Unlock()

	snap.AudioBlocked = s.deps.Media.AudioBlocked()
	snap.AgentID = s.deps.Agent.AgentID()
	if agg != nil {
		snap.Turns = agg.Render()
	} else {
		snap.Turns = []transcript.Turn{}
	}
	return snap
}

// SetMicrophone toggles the local capture feed.
func (s *Session) SetMicrophone(enabled bool) error {
	return s.deps.Media.PublishLocalMicrophone(enabled)
}

// RetryAudioPlayback re-attempts playback for every remote track, from the
// user's explicit "enable audio" gesture.
func (s *Session) RetryAudioPlayback() {
	s.deps.Media.RetryPlayback()
}
