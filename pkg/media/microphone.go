package media

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
	pionmedia "github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/atomic"
)

const (
	captureSampleRate = 48000
	captureChannels   = 1
	frameDuration     = 20 * time.Millisecond
)

// Source produces S16 PCM frames from the local capture device.
type Source interface {
	Start(ctx context.Context) (<-chan []int16, error)
	Stop()
}

type microphone struct {
	track   *webrtc.TrackLocalStaticSample
	enabled *atomic.Bool
	stop    chan struct{}
}

// PublishLocalMicrophone creates and publishes the local capture track on
// first enable. Disabling mutes the feed without destroying the track, so
// re-enabling is cheap.
func (c *Controller) PublishLocalMicrophone(enabled bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.mic != nil {
		c.mic.enabled.Store(enabled)
		return nil
	}
	if !enabled {
		return nil
	}
	if c.room == nil {
		return ErrNoChannel
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: captureSampleRate,
		Channels:  captureChannels,
	}, "audio", "microphone")
	if err != nil {
		return err
	}
	if _, err = c.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{Name: "microphone"}); err != nil {
		return err
	}

	frames, err := c.source.Start(context.Background())
	if err != nil {
		return err
	}

	mic := &microphone{
		track:   track,
		enabled: atomic.NewBool(true),
		stop:    make(chan struct{}),
	}
	c.mic = mic
	go c.captureLoop(mic, frames)
	return nil
}

func (c *Controller) captureLoop(mic *microphone, frames <-chan []int16) {
	for {
		select {
		case <-mic.stop:
			return
		case pcm, ok := <-frames:
			if !ok {
				return
			}
			if !mic.enabled.Load() {
				continue
			}
			data, err := c.encoder.Encode(pcm)
			if err != nil {
				log.Debugf("cannot encode capture frame | error: %v", err)
				continue
			}
			if err = mic.track.WriteSample(pionmedia.Sample{Data: data, Duration: frameDuration}); err != nil {
				log.Debugf("cannot write capture sample | error: %v", err)
			}
		}
	}
}

// stopMicrophone releases the capture device. Caller must hold the lock.
func (c *Controller) stopMicrophone() {
	if c.mic == nil {
		return
	}
	close(c.mic.stop)
	c.source.Stop()
	c.mic = nil
}
