package media

import (
	"errors"
	"sync"

	"github.com/labstack/gommon/log"
	"github.com/livekit/protocol/logger"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/rtp"
	"github.com/pion/transport/packetio"
	"github.com/pion/webrtc/v3"
	"go.uber.org/atomic"
)

var ErrNoChannel = errors.New("no channel attached")

type readRTPFunc func() (*rtp.Packet, error)

type remoteTrack struct {
	sid   string
	owner string
	read  readRTPFunc
}

type playback struct {
	buf    *packetio.Buffer
	stream PlaybackStream
	done   chan struct{}
	closed chan struct{}
}

// Controller owns the local microphone and every remote audio output for
// the session's lifetime. All mutation happens under one lock; handlers are
// idempotent because publish and reconciliation events may both observe the
// same track.
type Controller struct {
	lock    sync.Mutex
	player  Player
	source  Source
	decoder Decoder
	encoder Encoder

	room    *lksdk.Room
	mic     *microphone
	blocked *atomic.Bool

	// Key: track SID
	remote  map[string]*remoteTrack
	playing map[string]*playback
}

func NewController(player Player, source Source, decoder Decoder, encoder Encoder) *Controller {
	return &Controller{
		player:  player,
		source:  source,
		decoder: decoder,
		encoder: encoder,
		blocked: atomic.NewBool(false),
		remote:  make(map[string]*remoteTrack),
		playing: make(map[string]*playback),
	}
}

// AttachRoom lends the channel handle to the controller for the session's
// duration. The handle is invalid once the session stops.
func (c *Controller) AttachRoom(room *lksdk.Room) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.room = room
}

// AudioBlocked reports whether the platform refused playback and an explicit
// user-gesture retry is required.
func (c *Controller) AudioBlocked() bool {
	return c.blocked.Load()
}

func (c *Controller) OnTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	read := func() (*rtp.Packet, error) {
		packet, _, err := track.ReadRTP()
		return packet, err
	}
	c.AddRemoteAudio(publication.SID(), rp.Identity(), read)
}

func (c *Controller) OnTrackUnsubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	c.RemoveRemoteAudio(publication.SID())
}

// AddRemoteAudio registers a newly published remote audio track and
// immediately attempts playback. Re-adding a known SID is a no-op.
func (c *Controller) AddRemoteAudio(sid string, owner string, read readRTPFunc) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, found := c.remote[sid]; found {
		return
	}
	rt := &remoteTrack{sid: sid, owner: owner, read: read}
	c.remote[sid] = rt
	c.startPlayback(rt)
}

// RemoveRemoteAudio stops playback and forgets the track. Safe to call even
// if the track never played.
func (c *Controller) RemoveRemoteAudio(sid string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.stopPlayback(sid)
	delete(c.remote, sid)
}

// DropParticipant releases every track owned by the given identity.
func (c *Controller) DropParticipant(identity string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for sid, rt := range c.remote {
		if rt.owner == identity {
			c.stopPlayback(sid)
			delete(c.remote, sid)
		}
	}
}

// RetryPlayback re-attempts playback for every known remote audio track.
// Called from the user-gesture "enable audio" action.
func (c *Controller) RetryPlayback() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, rt := range c.remote {
		c.startPlayback(rt)
	}
}

// startPlayback opens an output stream for the track and starts the pump.
// The playing map guarantees play is never attempted twice concurrently for
// one track identity. Caller must hold the lock.
func (c *Controller) startPlayback(rt *remoteTrack) {
	if _, found := c.playing[rt.sid]; found {
		return
	}

	stream, err := c.player.Open(rt.sid)
	if errors.Is(err, ErrPlaybackBlocked) {
		c.blocked.Store(true)
		log.Warnf("playback blocked, awaiting user gesture | track: %s, participant: %s", rt.sid, rt.owner)
		return
	}
	if err != nil {
		log.Errorf("cannot open playback stream | error: %v, track: %s", err, rt.sid)
		return
	}
	c.blocked.Store(false)

	pb := &playback{
		buf:    packetio.NewBuffer(),
		stream: stream,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	c.playing[rt.sid] = pb

	go c.readTrack(rt, pb)
	go c.feedStream(rt, pb)
}

// stopPlayback tears one playback down. Idempotent. Caller must hold the lock.
func (c *Controller) stopPlayback(sid string) {
	pb, found := c.playing[sid]
	if !found {
		return
	}
	close(pb.done)
	if err := pb.buf.Close(); err != nil {
		log.Debugf("cannot close playback buffer | error: %v, track: %s", err, sid)
	}
	delete(c.playing, sid)
}

// readTrack pulls RTP payloads off the track into the jitter buffer.
func (c *Controller) readTrack(rt *remoteTrack, pb *playback) {
	defer pb.buf.Close()
	for {
		select {
		case <-pb.done:
			return
		default:
			packet, err := rt.read()
			if err != nil {
				return
			}
			if _, err = pb.buf.Write(packet.Payload); err != nil {
				return
			}
		}
	}
}

// feedStream drains the jitter buffer into the output device.
func (c *Controller) feedStream(rt *remoteTrack, pb *playback) {
	defer close(pb.closed)
	defer func() {
		if err := pb.stream.Close(); err != nil {
			logger.Warnw("cannot close playback stream", err, "track", rt.sid)
		}
	}()

	scratch := make([]byte, 1500)
	for {
		n, err := pb.buf.Read(scratch)
		if err != nil {
			return
		}
		pcm, err := c.decoder.Decode(scratch[:n])
		if err != nil {
			logger.Warnw("cannot decode audio payload", err, "track", rt.sid)
			continue
		}
		if err = pb.stream.Write(pcm); err != nil {
			return
		}
	}
}

// Close releases the microphone and every playback. The controller is not
// reusable afterwards.
func (c *Controller) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.stopMicrophone()
	for sid := range c.playing {
		c.stopPlayback(sid)
	}
	c.remote = make(map[string]*remoteTrack)
	c.room = nil
}
