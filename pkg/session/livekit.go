package session

import (
	"github.com/labstack/gommon/log"
	lksdk "github.com/livekit/server-sdk-go"

	"github.com/vidacademy/livekit-tutor/pkg/agent"
)

// liveKitJoin connects to the realtime channel and binds the session's
// event handlers. Audio subscription is automatic: the bot side always
// wants to hear the agent.
func liveKitJoin(url string, token string, s *Session) (channelConn, error) {
	room, err := lksdk.ConnectToRoomWithToken(url, token, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return nil, err
	}

	room.Callback.OnParticipantConnected = s.onParticipantConnected
	room.Callback.OnParticipantDisconnected = s.onParticipantDisconnected
	room.Callback.OnTrackPublished = s.onTrackPublished
	room.Callback.OnTrackUnpublished = s.onTrackUnpublished
	room.Callback.OnTrackSubscribed = s.deps.Media.OnTrackSubscribed
	room.Callback.OnTrackUnsubscribed = s.deps.Media.OnTrackUnsubscribed
	room.Callback.OnDataReceived = s.onDataReceived
	room.Callback.OnDisconnected = s.onDisconnected
	s.deps.Media.AttachRoom(room)

	return room, nil
}

func (s *Session) onParticipantConnected(rp *lksdk.RemoteParticipant) {
	s.participantJoined(rp.Identity())
}

func (s *Session) participantJoined(uid string) {
	s.lock.Lock()
	if _, found := s.participants[uid]; !found {
		s.participants[uid] = &RemoteParticipant{UID: uid}
	}
	becameActive := uid == agent.AgentUID && s.state == StateAwaitingAgent
	if becameActive {
		s.state = StateActive
	}
	s.lock.Unlock()

	if becameActive {
		log.Infof("agent joined, session active | channel: %s", s.Channel())
	} else {
		log.Debugf("participant connected | participant: %s", uid)
	}
}

func (s *Session) onParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	s.participantLeft(rp.Identity())
}

func (s *Session) participantLeft(uid string) {
	s.lock.Lock()
	delete(s.participants, uid)
	s.lock.Unlock()

	s.deps.Media.DropParticipant(uid)
	log.Debugf("participant disconnected | participant: %s", uid)
}

func (s *Session) onTrackPublished(publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	s.setTrackFlag(rp.Identity(), publication.Kind(), true)
}

func (s *Session) onTrackUnpublished(publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	s.setTrackFlag(rp.Identity(), publication.Kind(), false)
}

func (s *Session) setTrackFlag(uid string, kind lksdk.TrackKind, published bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	p, found := s.participants[uid]
	if !found {
		p = &RemoteParticipant{UID: uid}
		s.participants[uid] = p
	}
	switch kind {
	case lksdk.TrackKindAudio:
		p.HasAudio = published
	case lksdk.TrackKindVideo:
		p.HasVideo = published
	}
}

// onDataReceived feeds in-channel data packets through the same transcript
// path as the side-channel feed. The agent mirrors its transcription stream
// onto the data channel, so either source alone yields a full transcript.
func (s *Session) onDataReceived(data []byte, rp *lksdk.RemoteParticipant) {
	s.onSideChannelMessage(data)
}

// onDisconnected is informational only. Transport-level connection changes
// never drive the lifecycle; only an explicit stop or a failure does.
func (s *Session) onDisconnected() {
	log.Warnf("channel connection closed | channel: %s, state: %s", s.Channel(), s.State())
}

// Participants lists the remote members currently known to the channel.
func (s *Session) Participants() []RemoteParticipant {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make([]RemoteParticipant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	return out
}
