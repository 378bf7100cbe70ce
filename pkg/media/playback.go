package media

import (
	"errors"

	"go.uber.org/atomic"
)

// ErrPlaybackBlocked means the platform refused to start audio output
// without a preceding user gesture. It is recoverable: the UI surfaces an
// explicit "enable audio" action that calls RetryPlayback.
var ErrPlaybackBlocked = errors.New("audio playback blocked")

// PlaybackStream is one open audio output for one remote track.
type PlaybackStream interface {
	Write(pcm []int16) error
	Close() error
}

// Player opens playback streams. Open fails with ErrPlaybackBlocked while
// the platform's playback gate is closed.
type Player interface {
	Open(trackID string) (PlaybackStream, error)
}

// Gate models the platform autoplay policy as a two-state capability:
// blocked until a user gesture grants it. Platforms without the restriction
// construct it granted and never revoke.
type Gate struct {
	granted *atomic.Bool
}

func NewGate(granted bool) *Gate {
	return &Gate{granted: atomic.NewBool(granted)}
}

func (g *Gate) Grant()   { g.granted.Store(true) }
func (g *Gate) Revoke()  { g.granted.Store(false) }
func (g *Gate) Granted() bool {
	return g.granted.Load()
}

type gatedPlayer struct {
	inner Player
	gate  *Gate
}

// NewGatedPlayer wraps a Player behind a Gate.
func NewGatedPlayer(inner Player, gate *Gate) Player {
	return &gatedPlayer{inner: inner, gate: gate}
}

func (p *gatedPlayer) Open(trackID string) (PlaybackStream, error) {
	if !p.gate.Granted() {
		return nil, ErrPlaybackBlocked
	}
	return p.inner.Open(trackID)
}
