// Package decoder wraps gopkg.in/hraban/opus.v2 for the legacy direct-Opus
// voice format CS2 used before switching to the steam codec (see
// internal/voice for that format's decoder).
package decoder

import "gopkg.in/hraban/opus.v2"

// NewDecoder returns a new opus.Decoder for the given sample rate and channel count.
func NewDecoder(sampleRate, channels int) (*opus.Decoder, error) {
	return opus.NewDecoder(sampleRate, channels)
}

// Decode decodes Opus-encoded data using the provided opus.Decoder and returns PCM float32 samples.
func Decode(decoder *opus.Decoder, data []byte) ([]float32, error) {
	pcm := make([]float32, 1024)

	n, err := decoder.DecodeFloat32(data, pcm)
	if err != nil {
		return nil, err
	}

	return pcm[:n], nil
}
