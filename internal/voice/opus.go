package voice

import "gopkg.in/hraban/opus.v2"

// plcFrameSize is the number of samples a single PLC call recovers, matching
// a 10ms Opus frame at 48kHz (the rate Steam voice chat's Opus sub-stream
// runs at in practice). decodePLC always fills a buffer of exactly this
// size; grounded in the teacher's own FrameSize=480 constant.
const plcFrameSize = 480

// opusCodec is the narrow slice of an Opus decoder the driver actually
// needs: decode real frames, synthesize one PLC frame at a time, and reset
// internal state on a sequence backslide or the reset sentinel. It exists so
// the driver's sequence/PLC bookkeeping (decoder.go) can be exercised
// against a fake in tests without linking the real codec.
type opusCodec interface {
	decode(data []byte, pcm []int16) (int, error)
	// decodePLC recovers one lost frame into pcm, which must be exactly
	// plcFrameSize long. Unlike decode, the underlying library reports no
	// sample count: a PLC call always fills pcm in full.
	decodePLC(pcm []int16) error
	resetState() error
}

// newOpusCodec constructs a mono opusCodec backed by gopkg.in/hraban/opus.v2
// at the given sample rate. It is the Decoder's default codec factory.
func newOpusCodec(sampleRateHz int) (opusCodec, error) {
	dec, err := opus.NewDecoder(sampleRateHz, channels)
	if err != nil {
		return nil, err
	}
	return &hrabanCodec{dec: dec, sampleRateHz: sampleRateHz}, nil
}

// channels is fixed at mono: Steam voice chat, like the rest of this
// format, never carries stereo data.
const channels = 1

type hrabanCodec struct {
	dec          *opus.Decoder
	sampleRateHz int
}

func (c *hrabanCodec) decode(data []byte, pcm []int16) (int, error) {
	return c.dec.Decode(data, pcm)
}

func (c *hrabanCodec) decodePLC(pcm []int16) error {
	return c.dec.DecodePLC(pcm)
}

// resetState clears the decoder's internal history. gopkg.in/hraban/opus.v2
// exposes no reset method, so this discards the decoder and builds a fresh
// one at the same sample rate; a new *opus.Decoder starts with no PLC
// history to leak across the gap or backslide that triggered the reset.
func (c *hrabanCodec) resetState() error {
	dec, err := opus.NewDecoder(c.sampleRateHz, channels)
	if err != nil {
		return err
	}
	c.dec = dec
	return nil
}
