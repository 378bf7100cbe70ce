package media

// Audio on the wire is codec-opaque to this engine: decode and encode are
// injected so the playback and capture paths never depend on a specific
// codec library.

type Decoder interface {
	// Decode turns one track payload into S16 PCM samples.
	Decode(payload []byte) ([]int16, error)
}

type Encoder interface {
	// Encode turns S16 PCM samples into one publishable payload.
	Encode(pcm []int16) ([]byte, error)
}

// PCM16Decoder and PCM16Encoder pass raw little-endian S16 audio through
// unchanged, for deployments where the track already carries PCM.
type PCM16Decoder struct{}

func (PCM16Decoder) Decode(payload []byte) ([]int16, error) {
	return bytesToPCM16(payload), nil
}

type PCM16Encoder struct{}

func (PCM16Encoder) Encode(pcm []int16) ([]byte, error) {
	return pcm16ToBytes(pcm), nil
}

func bytesToPCM16(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return samples
}

func pcm16ToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[2*i] = byte(s)
		b[2*i+1] = byte(s >> 8)
	}
	return b
}
