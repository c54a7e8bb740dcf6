package voice

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned for a truncated payload or a
	// truncated sub-packet/frame inside one.
	ErrInsufficientData = errors.New("steamvoice: insufficient data")

	// ErrInsufficientOutputBuffer is returned once the decode cursor
	// reaches or exceeds the caller's output buffer length. The caller
	// must retry with a larger buffer or split the input.
	ErrInsufficientOutputBuffer = errors.New("steamvoice: insufficient output buffer")

	// ErrNoSampleRate is returned when an OpusPLC sub-packet is
	// encountered before any SampleRate sub-packet has configured the
	// driver's Opus decoder.
	ErrNoSampleRate = errors.New("steamvoice: opus data received before sample rate")
)

// CrcMismatchError reports a payload whose trailing CRC-32 does not match
// the one computed over its preceding bytes. The payload is rejected
// wholesale; no partial output is produced.
type CrcMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *CrcMismatchError) Error() string {
	return fmt.Sprintf("steamvoice: crc mismatch: expected %#08x, got %#08x", e.Expected, e.Actual)
}

// UnknownPacketTypeError reports a sub-packet tag the parser does not
// recognize.
type UnknownPacketTypeError struct {
	Type byte
}

func (e *UnknownPacketTypeError) Error() string {
	return fmt.Sprintf("steamvoice: unknown packet type %#02x", e.Type)
}

// wrapOpusErr gives every error surfaced by the underlying Opus decoder a
// consistent, transparently-unwrappable prefix.
func wrapOpusErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("steamvoice: opus: %w", err)
}

// errorKind reduces an error to a short, stable label suitable as a metrics
// label value, so dashboards don't explode with one series per dynamic
// error message.
func errorKind(err error) string {
	var crc *CrcMismatchError
	var unknown *UnknownPacketTypeError
	switch {
	case errors.As(err, &crc):
		return "crc_mismatch"
	case errors.As(err, &unknown):
		return "unknown_packet_type"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrInsufficientOutputBuffer):
		return "insufficient_output_buffer"
	case errors.Is(err, ErrNoSampleRate):
		return "no_sample_rate"
	default:
		return "opus"
	}
}
