package voice

import "encoding/binary"

// MetricsRecorder receives optional instrumentation callbacks from a
// Decoder. Implementations never see a nil Decoder.Metrics call themselves;
// Decoder checks for nil before invoking any method, so leaving Metrics
// unset disables instrumentation entirely.
type MetricsRecorder interface {
	// SamplesDecoded is called after every successful real or PLC-synthesized
	// Opus decode with the number of samples it produced.
	SamplesDecoded(n int)
	// PLCFrame is called once per PLC-synthesized frame (a sequence-number
	// gap), before SamplesDecoded for that frame.
	PLCFrame()
	// DecoderReset is called whenever the Opus decoder's internal state is
	// reset, either by the 0xFFFF sentinel or a backwards sequence jump.
	DecoderReset()
	// DecodeError is called once per failed Decode call with a short,
	// stable error-kind label suitable as a metrics label value.
	DecodeError(kind string)
}

// opusFactory builds a fresh opusCodec for a given sample rate. It exists so
// tests can substitute a fake decoder for the real gopkg.in/hraban/opus.v2
// one.
type opusFactory func(sampleRateHz int) (opusCodec, error)

// Decoder is the stateful Opus-PLC decoder driver described in §4.2: it
// lazily creates (and recreates, on sample-rate change) an Opus decoder,
// tracks the next-expected sequence number across calls, and synthesizes
// PLC frames for sequence-number gaps. It is not safe for concurrent use;
// callers must serialize access or use one Decoder per stream.
type Decoder struct {
	newCodec opusFactory
	codec    opusCodec

	sampleRate uint16
	seq        uint16

	// Metrics, if non-nil, receives instrumentation callbacks. It has no
	// effect on decode semantics.
	Metrics MetricsRecorder
}

// NewDecoder returns a Decoder with no configured sample rate and no Opus
// decoder; both are created lazily on the first SampleRate sub-packet.
func NewDecoder() *Decoder {
	return &Decoder{newCodec: newOpusCodec}
}

// SampleRate returns the rate, in Hz, most recently announced by a
// SampleRate sub-packet, or 0 if none has been seen yet.
func (d *Decoder) SampleRate() uint16 {
	return d.sampleRate
}

// Decode consumes one parsed payload and appends decoded samples to out,
// starting at index 0. It returns the number of samples produced, which is
// always strictly less than len(out) on success. Decode never writes past
// len(out); reaching or exceeding it is the terminal error
// ErrInsufficientOutputBuffer, even when out is filled exactly.
func (d *Decoder) Decode(p *Payload, out []int16) (int, error) {
	total := 0
	for pkt, err := range p.Packets() {
		if err != nil {
			d.recordError(err)
			return 0, err
		}

		switch v := pkt.(type) {
		case SampleRate:
			if v.Hz != d.sampleRate {
				codec, err := d.newCodec(int(v.Hz))
				if err != nil {
					err = wrapOpusErr(err)
					d.recordError(err)
					return 0, err
				}
				d.codec = codec
				d.sampleRate = v.Hz
			}

		case Silence:
			total += int(v.Count)
			if total >= len(out) {
				d.recordError(ErrInsufficientOutputBuffer)
				return 0, ErrInsufficientOutputBuffer
			}

		case OpusPLC:
			n, err := d.decodeOpusStream(v.Data, out[total:])
			total += n
			if err != nil {
				d.recordError(err)
				return 0, err
			}
		}
	}
	return total, nil
}

// decodeOpusStream runs the frame loop of §4.2.1 over one OpusPLC
// sub-packet's bytes, appending decoded samples into out starting at index
// 0. It returns the number of samples written, which may be less than the
// eventual total if it stops early on ErrInsufficientOutputBuffer.
func (d *Decoder) decodeOpusStream(data []byte, out []int16) (int, error) {
	if d.codec == nil {
		return 0, ErrNoSampleRate
	}

	total := 0
	for len(data) >= 3 {
		length := binary.LittleEndian.Uint16(data[:2])
		data = data[2:]

		if length == 0xFFFF {
			if err := d.codec.resetState(); err != nil {
				return total, wrapOpusErr(err)
			}
			d.seq = 0
			d.recordReset()
			continue
		}

		if len(data) < 2 {
			return total, ErrInsufficientData
		}
		seq := binary.LittleEndian.Uint16(data[:2])
		data = data[2:]

		if seq < d.seq {
			if err := d.codec.resetState(); err != nil {
				return total, wrapOpusErr(err)
			}
			d.recordReset()
		} else {
			lost := seq - d.seq
			for i := uint16(0); i < lost; i++ {
				if total+plcFrameSize > len(out) {
					return total, ErrInsufficientOutputBuffer
				}
				if err := d.codec.decodePLC(out[total : total+plcFrameSize]); err != nil {
					return total, wrapOpusErr(err)
				}
				d.recordPLCFrame(plcFrameSize)
				total += plcFrameSize
			}
		}
		d.seq = seq + 1

		frameLen := int(length)
		if len(data) < frameLen {
			return total, ErrInsufficientData
		}

		if total >= len(out) {
			return total, ErrInsufficientOutputBuffer
		}
		n, err := d.codec.decode(data[:frameLen], out[total:])
		data = data[frameLen:]
		if err != nil {
			return total, wrapOpusErr(err)
		}
		d.recordSamples(n)
		total += n
		if total >= len(out) {
			return total, ErrInsufficientOutputBuffer
		}
	}

	return total, nil
}

func (d *Decoder) recordSamples(n int) {
	if d.Metrics != nil {
		d.Metrics.SamplesDecoded(n)
	}
}

func (d *Decoder) recordPLCFrame(n int) {
	if d.Metrics != nil {
		d.Metrics.PLCFrame()
		d.Metrics.SamplesDecoded(n)
	}
}

func (d *Decoder) recordReset() {
	if d.Metrics != nil {
		d.Metrics.DecoderReset()
	}
}

func (d *Decoder) recordError(err error) {
	if d.Metrics == nil || err == nil {
		return
	}
	d.Metrics.DecodeError(errorKind(err))
}
