// Package voice decodes Steam's proprietary voice-chat payload format into
// linear PCM audio samples: a frame parser validates a payload's CRC and
// yields its typed sub-packets, and a decoder driver interprets those
// sub-packets against a persistent Opus decoder, synthesizing PLC frames
// across sequence-number gaps.
package voice

import "encoding/binary"

// packetType tags the three sub-packet kinds that can appear in a Steam
// voice payload. See SubPacket for the exhaustive, sealed variant these tags
// decode into.
type packetType byte

const (
	packetTypeSilence    packetType = 0
	packetTypeOpusPLC    packetType = 6
	packetTypeSampleRate packetType = 11
)

// SubPacket is a sealed variant: Silence, OpusPLC, or SampleRate are the only
// implementations. Callers should exhaustively type-switch on it rather than
// treat it as open for extension.
type SubPacket interface {
	isSubPacket()
}

// Silence is a run of count samples of silence. The decoder driver advances
// its output cursor by Count without writing anything into the caller's
// buffer.
type Silence struct {
	Count uint16
}

// OpusPLC carries a sub-stream of sequence-numbered Opus frames. Data is a
// slice into the original payload buffer; it is valid only as long as that
// buffer is kept alive by the caller.
type OpusPLC struct {
	Data []byte
}

// SampleRate announces the sample rate, in Hz, for subsequent OpusPLC
// sub-packets. The decoder driver only rebuilds its Opus decoder when the
// rate actually changes.
type SampleRate struct {
	Hz uint16
}

func (Silence) isSubPacket()    {}
func (OpusPLC) isSubPacket()    {}
func (SampleRate) isSubPacket() {}

// readPacket reads exactly one sub-packet from the front of data, returning
// the decoded packet and the remaining bytes.
func readPacket(data []byte) (SubPacket, []byte, error) {
	if len(data) < 1 {
		return nil, nil, ErrInsufficientData
	}
	tag := packetType(data[0])
	data = data[1:]

	switch tag {
	case packetTypeSilence, packetTypeSampleRate, packetTypeOpusPLC:
		// fall through to the shared length-field parsing below
	default:
		return nil, nil, &UnknownPacketTypeError{Type: byte(tag)}
	}

	if len(data) < 2 {
		return nil, nil, ErrInsufficientData
	}
	next := binary.LittleEndian.Uint16(data[:2])
	data = data[2:]

	switch tag {
	case packetTypeSilence:
		return Silence{Count: next}, data, nil
	case packetTypeSampleRate:
		return SampleRate{Hz: next}, data, nil
	default: // packetTypeOpusPLC
		if len(data) < int(next) {
			return nil, nil, ErrInsufficientData
		}
		return OpusPLC{Data: data[:next]}, data[next:], nil
	}
}
