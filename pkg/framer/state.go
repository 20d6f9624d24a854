package framer

// State is one position in the Framer's byte-at-a-time reader state
// machine.
type State int

const (
	// Idle is the initial state: scanning the raw stream for FLAG.
	Idle State = iota
	// Flag was just consumed; the next octet begins the length header.
	Flag
	// Length is accumulating the four big-endian length octets.
	Length
	// Payload is accumulating payload octets up to the declared length.
	Payload
	// FletcherA is waiting for the Fletcher-16 A accumulator octet.
	FletcherA
	// FletcherB is waiting for the Fletcher-16 B accumulator octet.
	FletcherB
	// CRC1 is waiting for the first of four CRC-CCITT octets.
	CRC1
	// CRC2 is waiting for the second CRC-CCITT octet.
	CRC2
	// CRC3 is waiting for the third CRC-CCITT octet.
	CRC3
	// CRC4 is waiting for the fourth and final CRC-CCITT octet.
	CRC4
	// Complete is terminal success: a full, verified frame sits in the
	// caller-provided buffer.
	Complete
	// Invalid is terminal failure: Fletcher-16 or CRC-CCITT mismatch.
	Invalid
	// Overflow is terminal failure: the declared length exceeds the
	// caller-provided buffer's capacity.
	Overflow
	// Abort is terminal failure: a FLAG arrived before the current frame
	// reached Complete.
	Abort
	// Final is the state a Step on an already-terminal Framer leaves it
	// in until Reset is called.
	Final
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Flag:
		return "Flag"
	case Length:
		return "Length"
	case Payload:
		return "Payload"
	case FletcherA:
		return "Fletcher-A"
	case FletcherB:
		return "Fletcher-B"
	case CRC1:
		return "CRC-1"
	case CRC2:
		return "CRC-2"
	case CRC3:
		return "CRC-3"
	case CRC4:
		return "CRC-4"
	case Complete:
		return "Complete"
	case Invalid:
		return "Invalid"
	case Overflow:
		return "Overflow"
	case Abort:
		return "Abort"
	case Final:
		return "Final"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s is one of the states that ends a frame
// attempt (successfully or not) without consuming further input until the
// caller acts.
func (s State) Terminal() bool {
	switch s {
	case Complete, Invalid, Overflow, Abort, Final:
		return true
	default:
		return false
	}
}
