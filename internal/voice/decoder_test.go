package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDecoder(samplesPerCall int) (*Decoder, *[]*fakeCodec) {
	factory, built := newFakeCodecFactory(samplesPerCall)
	return &Decoder{newCodec: factory}, built
}

// TestDecodeSilenceOnly covers §8 scenario 3: a silence-only payload advances
// the cursor without touching the codec or the output buffer's contents.
func TestDecodeSilenceOnly(t *testing.T) {
	d, built := newTestDecoder(5)
	payload, err := Parse(buildPayload(1, silencePacket(100)))
	require.NoError(t, err)

	out := make([]int16, 200)
	n, err := d.Decode(payload, out)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Empty(t, *built, "silence must never construct an Opus codec")
	assert.Equal(t, make([]int16, len(out)), out, "silence must not write into the output buffer")
}

func TestDecodeEmptyPayload(t *testing.T) {
	d, _ := newTestDecoder(5)
	payload, err := Parse(buildPayload(1, nil))
	require.NoError(t, err)

	out := make([]int16, 10)
	n, err := d.Decode(payload, out)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// TestDecodeSampleRateThenOpus covers §8 scenario 4: a SampleRate sub-packet
// lazily builds the codec at the announced rate, and the first frame starts
// the sequence counter at 0.
func TestDecodeSampleRateThenOpus(t *testing.T) {
	d, built := newTestDecoder(3)
	sub := append(sampleRatePacket(48000), opusPLCPacket(opusFrame(0, []byte{1, 2, 3, 4}))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 100)
	n, err := d.Decode(payload, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, *built, 1)
	assert.Equal(t, 48000, (*built)[0].sampleRateHz)
	assert.Equal(t, 1, (*built)[0].decodeCalls)
	assert.Zero(t, (*built)[0].plcCalls)
	assert.Equal(t, uint16(1), d.seq)
}

// TestDecodeDoesNotRebuildCodecOnSameRate checks the driver only reconstructs
// the codec when the announced sample rate actually changes.
func TestDecodeDoesNotRebuildCodecOnSameRate(t *testing.T) {
	d, built := newTestDecoder(2)
	sub := append(sampleRatePacket(48000), opusPLCPacket(opusFrame(0, []byte{1}))...)
	sub = append(sub, sampleRatePacket(48000)...)
	sub = append(sub, opusPLCPacket(opusFrame(1, []byte{2}))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 100)
	_, err = d.Decode(payload, out)
	require.NoError(t, err)
	assert.Len(t, *built, 1, "same sample rate announced twice must not rebuild the codec")
}

func TestDecodeRebuildsCodecOnRateChange(t *testing.T) {
	d, built := newTestDecoder(2)
	sub := append(sampleRatePacket(24000), opusPLCPacket(opusFrame(0, []byte{1}))...)
	sub = append(sub, sampleRatePacket(48000)...)
	sub = append(sub, opusPLCPacket(opusFrame(1, []byte{2}))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 100)
	_, err = d.Decode(payload, out)
	require.NoError(t, err)
	require.Len(t, *built, 2)
	assert.Equal(t, 24000, (*built)[0].sampleRateHz)
	assert.Equal(t, 48000, (*built)[1].sampleRateHz)
}

// TestDecodePLCOnSequenceGap covers §8 scenario 5: a jump from seq 0 to seq 3
// synthesizes 3 PLC frames before decoding the real one. Each PLC frame is
// exactly plcFrameSize samples, regardless of the real decoder's per-call
// sample count.
func TestDecodePLCOnSequenceGap(t *testing.T) {
	d, built := newTestDecoder(4)
	sub := append(sampleRatePacket(48000), opusPLCPacket(opusFrame(3, []byte{9, 9}))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 3*plcFrameSize+5) // one spare slot: an exact fit is ErrInsufficientOutputBuffer
	n, err := d.Decode(payload, out)
	require.NoError(t, err)
	assert.Equal(t, 3, (*built)[0].plcCalls)
	assert.Equal(t, 1, (*built)[0].decodeCalls)
	assert.Equal(t, 3*plcFrameSize+4, n) // 3 PLC frames of plcFrameSize + 1 real frame of 4 samples
	assert.Equal(t, uint16(4), d.seq)
}

// TestDecodeResetSentinel covers §8 scenario 6: the 0xFFFF length sentinel
// resets both the codec and the expected sequence number, producing no
// output and no PLC frames.
func TestDecodeResetSentinel(t *testing.T) {
	d, built := newTestDecoder(4)
	d.seq = 50

	// The frame loop only runs while at least 3 bytes remain, so a lone 2-byte
	// sentinel would be discarded as trailing slack; one padding byte after it
	// keeps it inside the loop.
	sub := append(sampleRatePacket(48000), opusPLCPacket(append(opusResetSentinel(), 0))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 100)
	n, err := d.Decode(payload, out)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint16(0), d.seq)
	assert.Equal(t, 1, (*built)[0].resetCalls)
	assert.Zero(t, (*built)[0].plcCalls)
}

// TestDecodeResetOnBackslide covers the out-of-order branch: a sequence
// number lower than the one already seen resets the codec without
// synthesizing PLC frames for the "gap".
func TestDecodeResetOnBackslide(t *testing.T) {
	d, built := newTestDecoder(4)
	sub := append(sampleRatePacket(48000), opusPLCPacket(opusFrame(0, []byte{1}))...)
	sub = append(sub, opusPLCPacket(opusFrame(0, []byte{2}))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 100)
	_, err = d.Decode(payload, out)
	require.NoError(t, err)
	assert.Equal(t, 1, (*built)[0].resetCalls)
	assert.Zero(t, (*built)[0].plcCalls)
	assert.Equal(t, uint16(1), d.seq)
}

// TestDecodeInsufficientOutputBuffer covers §8 scenario 7: reaching or
// exceeding the output buffer's length, including landing exactly on it, is
// the terminal ErrInsufficientOutputBuffer.
func TestDecodeInsufficientOutputBuffer(t *testing.T) {
	d, _ := newTestDecoder(4)
	sub := append(sampleRatePacket(48000), opusPLCPacket(opusFrame(0, []byte{1}))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 4) // exact fit: samplesPerCall == len(out)
	n, err := d.Decode(payload, out)
	assert.ErrorIs(t, err, ErrInsufficientOutputBuffer)
	assert.Zero(t, n)
}

// TestDecodeInsufficientOutputBufferOnPLC checks the bound is enforced
// before a PLC call, not just a real decode: a buffer too small to hold one
// plcFrameSize frame must fail without invoking the codec.
func TestDecodeInsufficientOutputBufferOnPLC(t *testing.T) {
	d, built := newTestDecoder(4)
	sub := append(sampleRatePacket(48000), opusPLCPacket(opusFrame(1, []byte{1}))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, plcFrameSize-1)
	n, err := d.Decode(payload, out)
	assert.ErrorIs(t, err, ErrInsufficientOutputBuffer)
	assert.Zero(t, n)
	assert.Zero(t, (*built)[0].plcCalls)
}

func TestDecodeInsufficientOutputBufferOnSilence(t *testing.T) {
	d, _ := newTestDecoder(4)
	payload, err := Parse(buildPayload(1, silencePacket(10)))
	require.NoError(t, err)

	out := make([]int16, 10)
	_, err = d.Decode(payload, out)
	assert.ErrorIs(t, err, ErrInsufficientOutputBuffer)
}

func TestDecodeOpusPLCWithoutSampleRate(t *testing.T) {
	d, _ := newTestDecoder(4)
	sub := opusPLCPacket(opusFrame(0, []byte{1}))
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 100)
	_, err = d.Decode(payload, out)
	assert.ErrorIs(t, err, ErrNoSampleRate)
}

func TestDecodeTruncatedOpusFrame(t *testing.T) {
	d, _ := newTestDecoder(4)
	bad := opusFrame(0, []byte{1, 2, 3})
	bad = bad[:len(bad)-1] // claim 3 bytes of frame data but supply 2
	sub := append(sampleRatePacket(48000), opusPLCPacket(bad)...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, 100)
	_, err = d.Decode(payload, out)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// TestDecodeRecordsMetrics exercises the MetricsRecorder hooks end to end.
func TestDecodeRecordsMetrics(t *testing.T) {
	d, _ := newTestDecoder(2)
	rec := &fakeMetrics{}
	d.Metrics = rec

	sub := append(sampleRatePacket(48000), opusPLCPacket(opusFrame(1, []byte{1}))...)
	payload, err := Parse(buildPayload(1, sub))
	require.NoError(t, err)

	out := make([]int16, plcFrameSize+3) // one spare slot: an exact fit is ErrInsufficientOutputBuffer
	_, err = d.Decode(payload, out)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.plcFrames)
	assert.Equal(t, 2, rec.samplesCalls) // one PLC frame, one real frame
	assert.Zero(t, rec.resets)
}

type fakeMetrics struct {
	plcFrames    int
	samplesCalls int
	resets       int
	errKinds     []string
}

func (f *fakeMetrics) SamplesDecoded(int)   { f.samplesCalls++ }
func (f *fakeMetrics) PLCFrame()            { f.plcFrames++ }
func (f *fakeMetrics) DecoderReset()        { f.resets++ }
func (f *fakeMetrics) DecodeError(k string) { f.errKinds = append(f.errKinds, k) }
