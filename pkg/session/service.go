package session

import (
	"context"
	"errors"
	"sync"

	"github.com/labstack/gommon/log"

	"github.com/vidacademy/livekit-tutor/pkg/agent"
	"github.com/vidacademy/livekit-tutor/pkg/credentials"
	"github.com/vidacademy/livekit-tutor/pkg/export"
	"github.com/vidacademy/livekit-tutor/pkg/media"
	"github.com/vidacademy/livekit-tutor/pkg/messaging"
)

var (
	ErrSessionNotFound = errors.New("no session for channel")
	ErrNoExporter      = errors.New("no exporter configured")
)

type StartRequest struct {
	Channel          string
	KnowledgeRef     string
	KnowledgeContext string
	Voice            agent.VoiceConfig
}

type Service interface {
	Start(ctx context.Context, req StartRequest) (Snapshot, error)
	Stop(ctx context.Context, channel string) error
	Snapshot(channel string) (Snapshot, error)
	SetMicrophone(channel string, enabled bool) error
	RetryAudioPlayback(channel string) error
	Export(ctx context.Context, channel string) (string, error)
	SetExporter(exporter *export.Exporter)
	Shutdown()
}

// ServiceConfig carries the per-deployment endpoints shared by every session.
type ServiceConfig struct {
	// URL of the realtime channel host (wss scheme).
	URL string

	// MessagingURL of the side-channel feed; empty disables transcripts.
	MessagingURL string
}

type service struct {
	// Info
	cfg ServiceConfig

	// State
	lock     sync.Mutex
	sessions map[string]*Session

	// Services
	provider    credentials.Provider
	agentClient agent.Client
	agentTokens func(channel string, agentUID string) (string, error)
	newMedia    func() *media.Controller
	exporter    *export.Exporter
}

func NewService(cfg ServiceConfig, provider credentials.Provider, agentClient agent.Client, agentTokens func(channel string, agentUID string) (string, error), newMedia func() *media.Controller) Service {
	return &service{
		cfg:         cfg,
		lock:        sync.Mutex{},
		sessions:    make(map[string]*Session),
		provider:    provider,
		agentClient: agentClient,
		agentTokens: agentTokens,
		newMedia:    newMedia,
	}
}

func (s *service) SetExporter(exporter *export.Exporter) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.exporter = exporter
}

func (s *service) Start(ctx context.Context, req StartRequest) (Snapshot, error) {
	channel := req.Channel
	if channel == "" {
		// Name the channel up front so the service can key the session
		// before credentials come back
		channel = credentials.GenerateChannelName()
	}

	s.lock.Lock()
	if old, found := s.sessions[channel]; found {
		if !old.State().terminal() {
			s.lock.Unlock()
			return Snapshot{}, ErrNotIdle
		}
		// Sessions are single use; a terminal one makes way for a fresh start
		delete(s.sessions, channel)
	}

	sess := New(Options{
		URL:              s.cfg.URL,
		Channel:          channel,
		KnowledgeRef:     req.KnowledgeRef,
		KnowledgeContext: req.KnowledgeContext,
		Voice:            req.Voice,
	}, Deps{
		Provider:     s.provider,
		Agent:        agent.NewLifecycle(s.agentClient),
		Media:        s.newMedia(),
		NewMessaging: s.messagingFactory(),
		AgentToken:   s.agentTokens,
	})
	s.sessions[channel] = sess
	s.lock.Unlock()

	if err := sess.Start(ctx); err != nil {
		s.lock.Lock()
		delete(s.sessions, channel)
		s.lock.Unlock()
		return Snapshot{}, err
	}

	log.Infof("session started | channel: %s", channel)
	return sess.Snapshot(), nil
}

func (s *service) messagingFactory() messagingFactory {
	if s.cfg.MessagingURL == "" {
		return nil
	}
	url := s.cfg.MessagingURL
	return func(channel string, handler messaging.Handler) messaging.Client {
		return messaging.NewWebsocketClient(url, channel, handler)
	}
}

func (s *service) Stop(ctx context.Context, channel string) error {
	s.lock.Lock()
	sess, found := s.sessions[channel]
	if found {
		delete(s.sessions, channel)
	}
	s.lock.Unlock()

	if !found {
		return ErrSessionNotFound
	}
	sess.Stop()
	return nil
}

func (s *service) find(channel string) (*Session, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	sess, found := s.sessions[channel]
	if !found {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *service) Snapshot(channel string) (Snapshot, error) {
	sess, err := s.find(channel)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

func (s *service) SetMicrophone(channel string, enabled bool) error {
	sess, err := s.find(channel)
	if err != nil {
		return err
	}
	return sess.SetMicrophone(enabled)
}

func (s *service) RetryAudioPlayback(channel string) error {
	sess, err := s.find(channel)
	if err != nil {
		return err
	}
	sess.RetryAudioPlayback()
	return nil
}

// Export uploads the current transcript and returns the storage key.
func (s *service) Export(ctx context.Context, channel string) (string, error) {
	sess, err := s.find(channel)
	if err != nil {
		return "", err
	}

	s.lock.Lock()
	exporter := s.exporter
	s.lock.Unlock()
	if exporter == nil {
		return "", ErrNoExporter
	}

	snap := sess.Snapshot()
	return exporter.Export(ctx, snap.Channel, snap.Turns)
}

// Shutdown stops every live session, for process exit.
func (s *service) Shutdown() {
	s.lock.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*Session)
	s.lock.Unlock()

	for _, sess := range sessions {
		sess.Stop()
	}
}
