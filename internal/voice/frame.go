package voice

import (
	"encoding/binary"
	"hash/crc32"
	"iter"
)

// minPayloadLength is the smallest legal payload: an 8-byte sender id plus a
// 4-byte trailing CRC, with an empty sub-packet stream in between.
const minPayloadLength = 12

// Payload is a parsed Steam voice payload: a validated sender id plus the
// still-undecoded bytes of its sub-packet stream. It borrows from the
// caller's buffer for its entire lifetime and allocates nothing.
type Payload struct {
	senderID   uint64
	packetData []byte
}

// Parse validates data's trailing CRC-32 and splits out the sender id,
// returning a Payload whose Packets method lazily decodes the sub-packet
// stream in between. data must outlive the returned Payload and anything
// produced by iterating it, since OpusPLC sub-packets slice directly into
// it.
func Parse(data []byte) (*Payload, error) {
	if len(data) < minPayloadLength {
		return nil, ErrInsufficientData
	}

	body := data[:len(data)-4]
	expected := binary.LittleEndian.Uint32(data[len(data)-4:])
	actual := crc32.ChecksumIEEE(body)
	if expected != actual {
		return nil, &CrcMismatchError{Expected: expected, Actual: actual}
	}

	return &Payload{
		senderID:   binary.LittleEndian.Uint64(body[:8]),
		packetData: body[8:],
	}, nil
}

// SenderID returns the opaque 64-bit sender identifier. The core does not
// interpret its value.
func (p *Payload) SenderID() uint64 {
	return p.senderID
}

// Packets returns a lazy, finite, non-restartable sequence over the
// payload's sub-packets. Each element either decodes one sub-packet and
// advances the cursor by its exact length, or yields an error; once an
// error is yielded the sequence is exhausted and must not be iterated
// further.
func (p *Payload) Packets() iter.Seq2[SubPacket, error] {
	data := p.packetData
	return func(yield func(SubPacket, error) bool) {
		for len(data) > 0 {
			pkt, rest, err := readPacket(data)
			if err != nil {
				yield(nil, err)
				return
			}
			data = rest
			if !yield(pkt, nil) {
				return
			}
		}
	}
}
