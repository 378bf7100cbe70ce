package media

import (
	"context"
	"sync"

	malgo "github.com/gen2brain/malgo"
	"github.com/labstack/gommon/log"
)

// malgoContext is shared by every device the process opens.
var (
	malgoOnce sync.Once
	malgoCtx  *malgo.AllocatedContext
	malgoErr  error
)

func deviceContext() (*malgo.AllocatedContext, error) {
	malgoOnce.Do(func() {
		malgoCtx, malgoErr = malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
			log.Debugf("malgo: %s", message)
		})
	})
	return malgoCtx, malgoErr
}

// DevicePlayer opens one playback device per remote track and feeds it from
// a pull callback with a pending-sample buffer. Native hosts have no
// autoplay restriction, so the gate is effectively always granted here.
type DevicePlayer struct{}

func NewDevicePlayer() *DevicePlayer {
	return &DevicePlayer{}
}

type deviceStream struct {
	dev *malgo.Device

	lock    sync.Mutex
	pending []int16
	closed  bool
}

func (p *DevicePlayer) Open(trackID string) (PlaybackStream, error) {
	ctx, err := deviceContext()
	if err != nil {
		return nil, err
	}

	s := &deviceStream{}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = captureChannels
	config.SampleRate = captureSampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			s.fill(pOutput)
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		return nil, err
	}
	if err = dev.Start(); err != nil {
		dev.Uninit()
		return nil, err
	}
	s.dev = dev
	log.Debugf("opened playback device | track: %s", trackID)
	return s, nil
}

// fill copies pending samples into the device buffer, padding with silence.
func (s *deviceStream) fill(out []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()

	n := len(out) / 2
	for i := 0; i < n; i++ {
		var sample int16
		if len(s.pending) > 0 {
			sample = s.pending[0]
			s.pending = s.pending[1:]
		}
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
}

func (s *deviceStream) Write(pcm []int16) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.pending = append(s.pending, pcm...)
	return nil
}

func (s *deviceStream) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	dev := s.dev
	s.lock.Unlock()

	if dev != nil {
		dev.Uninit()
	}
	return nil
}

// DeviceSource captures S16 PCM frames from the default microphone.
type DeviceSource struct {
	lock sync.Mutex
	dev  *malgo.Device
	out  chan []int16
}

func NewDeviceSource() *DeviceSource {
	return &DeviceSource{}
}

func (d *DeviceSource) Start(ctx context.Context) (<-chan []int16, error) {
	mctx, err := deviceContext()
	if err != nil {
		return nil, err
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.dev != nil {
		return d.out, nil
	}

	out := make(chan []int16, 16)

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = captureChannels
	config.SampleRate = captureSampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			if len(pInput) == 0 {
				return
			}
			select {
			case out <- bytesToPCM16(pInput):
			default:
				// Drop the frame rather than stall the device callback
			}
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, config, callbacks)
	if err != nil {
		close(out)
		return nil, err
	}
	if err = dev.Start(); err != nil {
		dev.Uninit()
		close(out)
		return nil, err
	}

	d.dev = dev
	d.out = out
	return out, nil
}

func (d *DeviceSource) Stop() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.dev == nil {
		return
	}
	d.dev.Uninit()
	d.dev = nil
	close(d.out)
	d.out = nil
}
