package framer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverclock/com-diag-diminuto-sub002/pkg/crc"
)

// encodeReference builds the exact on-wire byte sequence for payload
// independently of Writer, for assertion purposes.
func encodeReference(t *testing.T, payload []byte) []byte {
	t.Helper()
	var fletcher crc.Fletcher
	fletcher.Block(payload)
	var sum crc.CRC16
	sum.Block(payload)

	var out []byte
	out = append(out, FLAG)

	l := uint32(len(payload))
	lengthHeader := []byte{byte(l >> 24), byte(l >> 16), byte(l >> 8), byte(l)}
	out = appendStuffed(out, lengthHeader)
	out = appendStuffed(out, payload)
	fl := fletcher.Sum()
	out = appendStuffed(out, fl[:])

	s := uint32(sum)
	crcTrailer := []byte{byte(s >> 24), byte(s >> 16), byte(s >> 8), byte(s)}
	out = appendStuffed(out, crcTrailer)
	return out
}

func appendStuffed(dst []byte, src []byte) []byte {
	for _, b := range src {
		if isReserved(b) {
			dst = append(dst, ESCAPE, b^escapeMask)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

func TestWriterMatchesReferenceEncoding(t *testing.T) {
	payload := []byte("Hi")
	want := encodeReference(t, payload)

	var out bytes.Buffer
	w := NewWriter()
	n, err := w.Write(&out, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, want, out.Bytes())
}

func TestWriterFirstOctetIsFlag(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter()
	_, err := w.Write(&out, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, FLAG, out.Bytes()[0])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("a"),
		[]byte("Hi"),
		bytes.Repeat([]byte{0x01, 0x02, 0x03}, 100),
		{FLAG, ESCAPE, XON, XOFF, 0x00, 0xFF},
	}
	for _, payload := range cases {
		wire := encodeReference(t, payload)

		f := NewFramer(make([]byte, 4096))
		n, err := f.Fill(bytes.NewReader(wire))
		require.NoError(t, err)
		assert.Equal(t, len(payload), n)
		assert.Equal(t, payload, f.Payload())
	}
}

// TestCorruptFrameRecovery mirrors the worked scenario: a frame with a
// deliberately wrong trailer is followed by a correctly trailed frame; the
// first is discarded silently and the second decodes successfully.
func TestCorruptFrameRecovery(t *testing.T) {
	good := encodeReference(t, []byte{0x42})

	// A hand-built frame whose payload is 0x41 0x41 but whose Fletcher-16
	// and CRC-CCITT trailers are all zero octets — guaranteed to mismatch
	// the true checksums of a non-empty payload, and none of 0x00's
	// constituent octets require byte-stuffing.
	corrupt := []byte{FLAG, 0x00, 0x00, 0x00, 0x02, 0x41, 0x41, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

	wire := append(append([]byte{}, corrupt...), good...)

	f := NewFramer(make([]byte, 64))

	n, err := f.Fill(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{0x42}, f.Payload())
}

func TestOverflowWhenDeclaredLengthExceedsBuffer(t *testing.T) {
	wire := encodeReference(t, make([]byte, 32))
	f := NewFramer(make([]byte, 8))

	_, err := f.Fill(bytes.NewReader(wire))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestStepByteStuffingRoundTrip(t *testing.T) {
	payload := []byte{FLAG, ESCAPE, XON, XOFF}
	wire := encodeReference(t, payload)

	f := NewFramer(make([]byte, 16))
	var state State
	for _, b := range wire {
		state = f.Step(b)
	}
	assert.Equal(t, Complete, state)
	assert.Equal(t, payload, f.Payload())
}

func TestResetReturnsToIdle(t *testing.T) {
	f := NewFramer(make([]byte, 16))
	f.Step(FLAG)
	assert.NotEqual(t, Idle, f.State())
	f.Reset()
	assert.Equal(t, Idle, f.State())
}
