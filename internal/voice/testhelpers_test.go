package voice

import (
	"encoding/binary"
	"hash/crc32"
)

// buildPayload assembles a complete wire payload: sender id, the raw
// sub-packet bytes verbatim, and a correct trailing CRC-32 over the two.
func buildPayload(senderID uint64, subPackets []byte) []byte {
	body := make([]byte, 8, 8+len(subPackets))
	binary.LittleEndian.PutUint64(body, senderID)
	body = append(body, subPackets...)

	crc := crc32.ChecksumIEEE(body)
	out := make([]byte, len(body)+4)
	copy(out, body)
	binary.LittleEndian.PutUint32(out[len(body):], crc)
	return out
}

func silencePacket(count uint16) []byte {
	b := make([]byte, 3)
	b[0] = byte(packetTypeSilence)
	binary.LittleEndian.PutUint16(b[1:], count)
	return b
}

func sampleRatePacket(hz uint16) []byte {
	b := make([]byte, 3)
	b[0] = byte(packetTypeSampleRate)
	binary.LittleEndian.PutUint16(b[1:], hz)
	return b
}

func opusPLCPacket(inner []byte) []byte {
	b := make([]byte, 3, 3+len(inner))
	b[0] = byte(packetTypeOpusPLC)
	binary.LittleEndian.PutUint16(b[1:], uint16(len(inner)))
	return append(b, inner...)
}

// opusFrame builds one framed entry inside an OpusPLC sub-packet's byte
// stream: a 2-byte length, a 2-byte sequence number, then the frame bytes.
func opusFrame(seq uint16, data []byte) []byte {
	b := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint16(b[0:], uint16(len(data)))
	binary.LittleEndian.PutUint16(b[2:], seq)
	return append(b, data...)
}

// opusResetSentinel is the 0xFFFF-length header that resets the decoder and
// the expected sequence number, with no trailing seq field or data.
func opusResetSentinel() []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, 0xFFFF)
	return b
}

// fakeCodec is a deterministic stand-in for the real Opus decoder, used so
// driver tests can assert exact sample counts and call sequencing without
// linking a real codec.
type fakeCodec struct {
	sampleRateHz int

	decodeCalls    int
	plcCalls       int
	resetCalls     int
	samplesPerCall int

	decodeErr error
	plcErr    error
	resetErr  error
}

func newFakeCodecFactory(samplesPerCall int) (opusFactory, *[]*fakeCodec) {
	var built []*fakeCodec
	factory := func(sampleRateHz int) (opusCodec, error) {
		c := &fakeCodec{sampleRateHz: sampleRateHz, samplesPerCall: samplesPerCall}
		built = append(built, c)
		return c, nil
	}
	return factory, &built
}

func (c *fakeCodec) decode(data []byte, pcm []int16) (int, error) {
	c.decodeCalls++
	if c.decodeErr != nil {
		return 0, c.decodeErr
	}
	return fillFake(pcm, c.samplesPerCall), nil
}

// decodePLC mirrors the real library's contract: it fills pcm in full and
// reports no count of its own.
func (c *fakeCodec) decodePLC(pcm []int16) error {
	c.plcCalls++
	if c.plcErr != nil {
		return c.plcErr
	}
	fillFake(pcm, len(pcm))
	return nil
}

func (c *fakeCodec) resetState() error {
	c.resetCalls++
	return c.resetErr
}

func fillFake(pcm []int16, n int) int {
	if n > len(pcm) {
		n = len(pcm)
	}
	for i := 0; i < n; i++ {
		pcm[i] = int16(i + 1)
	}
	return n
}
