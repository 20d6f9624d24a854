// Package framer implements the byte-stuffed, length-prefixed,
// Fletcher-16-and-CRC-CCITT-protected wire format used between a serial
// link and the proxy's UDP peer. Grounded on the wire-format description
// in the original diminuto_ipc_serial framing layer and on the teacher's
// own hand-rolled internal/crc package for checksum shape; byte-stuffed
// reader/writer structuring is grounded on the Reader/Writer split shown
// in the retrieved other_examples framer reference.
package framer

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/coverclock/com-diag-diminuto-sub002/pkg/crc"
)

// Reserved octets. A FLAG never appears inside a frame; any raw
// occurrence of these four values is byte-stuffed on the wire.
const (
	FLAG   byte = 0x7E
	ESCAPE byte = 0x7D
	XON    byte = 0x11
	XOFF   byte = 0x13
)

// escapeMask is XORed into an escaped octet's most significant bit, per
// the wire format's byte-stuffing rule.
const escapeMask byte = 0x80

const (
	lengthOctets   = 4
	crcOctets      = 4
	fletcherOctets = 2
)

// ErrOverflow is returned by Fill when a frame's declared length exceeds
// the Framer's buffer capacity.
var ErrOverflow = errors.New("framer: declared length exceeds buffer capacity")

// ErrInvalid is returned by Fill when a frame's Fletcher-16 or CRC-CCITT
// trailer fails to verify.
var ErrInvalid = errors.New("framer: checksum or crc mismatch")

// Framer decodes one frame at a time from a byte-at-a-time input stream
// into a caller-provided buffer. It is not safe for concurrent use; per
// spec, one Framer instance belongs to at most one goroutine.
type Framer struct {
	buffer []byte
	state  State

	escaped bool

	length      uint32
	lengthCount int

	writeIndex int

	fletcher     crc.Fletcher
	wantFletcher [fletcherOctets]byte
	fletcherIdx  int

	sum      crc.CRC16
	wantCRC  [crcOctets]byte
	crcIndex int
}

// NewFramer returns a Framer that decodes into buffer. buffer's capacity
// is the largest payload this Framer can ever accept.
func NewFramer(buffer []byte) *Framer {
	f := &Framer{buffer: buffer}
	f.Reset()
	return f
}

// Reset returns the Framer to Idle, discarding any partially decoded
// frame.
func (f *Framer) Reset() {
	f.state = Idle
	f.escaped = false
	f.length = 0
	f.lengthCount = 0
	f.writeIndex = 0
	f.fletcher = crc.Fletcher{}
	f.fletcherIdx = 0
	f.sum = crc.CRC16(0)
	f.crcIndex = 0
}

// State returns the Framer's current state.
func (f *Framer) State() State {
	return f.state
}

// Length returns the number of payload octets written into the buffer so
// far in the current frame (meaningful once State has reached Payload or
// beyond).
func (f *Framer) Length() int {
	return f.writeIndex
}

// Payload returns the decoded payload of a Complete frame.
func (f *Framer) Payload() []byte {
	return f.buffer[:f.writeIndex]
}

// Step consumes one raw (still byte-stuffed) octet from the wire and
// returns the Framer's resulting state.
func (f *Framer) Step(b byte) State {
	if f.escaped {
		f.escaped = false
		return f.consume(b ^ escapeMask)
	}
	switch b {
	case ESCAPE:
		f.escaped = true
		return f.state
	case FLAG:
		aborting := f.state != Idle && !f.state.Terminal()
		f.Reset()
		f.state = Flag
		if aborting {
			return Abort
		}
		return f.state
	case XON, XOFF:
		// Flow-control octets arriving unescaped are not frame data; a
		// literal occurrence inside a frame is always stuffed on the wire.
		return f.state
	default:
		return f.consume(b)
	}
}

func (f *Framer) consume(b byte) State {
	switch f.state {
	case Idle:
		return f.state
	case Flag:
		f.state = Length
		fallthrough
	case Length:
		f.length = (f.length << 8) | uint32(b)
		f.lengthCount++
		if f.lengthCount < lengthOctets {
			return f.state
		}
		if int(f.length) > cap(f.buffer) {
			f.state = Overflow
			return f.state
		}
		if f.length == 0 {
			f.state = FletcherA
		} else {
			f.state = Payload
		}
		return f.state
	case Payload:
		f.buffer[f.writeIndex] = b
		f.writeIndex++
		f.fletcher.Single(b)
		f.sum.Single(b)
		if f.writeIndex == int(f.length) {
			f.state = FletcherA
		}
		return f.state
	case FletcherA:
		f.wantFletcher[0] = b
		f.state = FletcherB
		return f.state
	case FletcherB:
		f.wantFletcher[1] = b
		f.state = CRC1
		return f.state
	case CRC1:
		f.wantCRC[0] = b
		f.state = CRC2
		return f.state
	case CRC2:
		f.wantCRC[1] = b
		f.state = CRC3
		return f.state
	case CRC3:
		f.wantCRC[2] = b
		f.state = CRC4
		return f.state
	case CRC4:
		f.wantCRC[3] = b
		f.state = f.verify()
		return f.state
	default:
		// Already terminal: park in Final until Reset.
		f.state = Final
		return f.state
	}
}

// verify checks the accumulated Fletcher-16 and CRC-CCITT against the
// trailer octets just consumed, returning Complete or Invalid.
func (f *Framer) verify() State {
	got := f.fletcher.Sum()
	if got[0] != f.wantFletcher[0] || got[1] != f.wantFletcher[1] {
		return Invalid
	}
	want := binary.BigEndian.Uint32(f.wantCRC[:])
	if want != uint32(f.sum) {
		return Invalid
	}
	return Complete
}

// Fill reads from r one octet at a time, driving the Framer's state
// machine, until a frame reaches Complete or r's stream is exhausted. A
// frame that lands on Invalid or Overflow is discarded and scanning
// resumes within the same call — the wire format expects a corrupt frame
// to be followed immediately by a resynchronizing FLAG and a good frame,
// and the caller should not have to re-invoke Fill just to recover from
// one bad frame. The most recent recoverable failure is remembered and
// surfaced only if the stream ends before a frame completes, so a caller
// reading from a finite source (or from a live link that stalls right
// after a bad frame) still observes ErrInvalid/ErrOverflow via errors.Is
// rather than a bare io.EOF.
func (f *Framer) Fill(r io.Reader) (int, error) {
	var one [1]byte
	var pending error
	for {
		n, err := r.Read(one[:])
		if n == 0 {
			if err != nil {
				if pending != nil {
					return 0, pending
				}
				return 0, err
			}
			continue
		}
		switch f.Step(one[0]) {
		case Complete:
			return f.writeIndex, nil
		case Invalid:
			f.Reset()
			pending = ErrInvalid
			continue
		case Overflow:
			f.Reset()
			pending = ErrOverflow
			continue
		case Abort:
			// An interrupting FLAG both discards the aborted frame and
			// starts a new one (Step already left the Framer in Flag
			// state); loop for the next attempt rather than surfacing an
			// error for a condition the wire format expects to recover
			// from.
			continue
		}
	}
}

// Writer emits frames: FLAG, stuffed length, stuffed payload, stuffed
// Fletcher-16, stuffed CRC-CCITT.
type Writer struct {
	scratch []byte
}

// NewWriter returns a Writer with an internal scratch buffer reused
// across calls to avoid per-frame allocation.
func NewWriter() *Writer {
	return &Writer{}
}

// Write frames payload and writes it to w in one call, returning the
// number of payload bytes accepted (equal to len(payload) on success).
func (fw *Writer) Write(w io.Writer, payload []byte) (int, error) {
	var fletcher crc.Fletcher
	fletcher.Block(payload)
	var sum crc.CRC16
	sum.Block(payload)

	needed := 1 + lengthOctets*2 + len(payload)*2 + fletcherOctets*2 + crcOctets*2
	if cap(fw.scratch) < needed {
		fw.scratch = make([]byte, 0, needed)
	}
	buf := fw.scratch[:0]

	buf = append(buf, FLAG)
	var lengthHeader [lengthOctets]byte
	binary.BigEndian.PutUint32(lengthHeader[:], uint32(len(payload)))
	buf = stuffInto(buf, lengthHeader[:])
	buf = stuffInto(buf, payload)
	buf = stuffInto(buf, fletcher.Sum()[:])
	var crcTrailer [crcOctets]byte
	binary.BigEndian.PutUint32(crcTrailer[:], uint32(sum))
	buf = stuffInto(buf, crcTrailer[:])

	fw.scratch = buf
	if _, err := w.Write(buf); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// stuffInto appends src to dst, byte-stuffing any reserved octet
// encountered.
func stuffInto(dst []byte, src []byte) []byte {
	for _, b := range src {
		if isReserved(b) {
			dst = append(dst, ESCAPE, b^escapeMask)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

func isReserved(b byte) bool {
	return b == FLAG || b == ESCAPE || b == XON || b == XOFF
}
