// Package mux implements a readiness-based descriptor multiplexor on top
// of select(2), grounded on the teacher's direct golang.org/x/sys/unix
// usage in pkg/can/socketcanv2 for raw descriptor and syscall handling.
package mux

import (
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

// Multiplexor indexes descriptors registered for read, write, or
// exception readiness. It does not own the descriptors it indexes; it is
// a passive index, exactly as specified.
type Multiplexor struct {
	read, write, exception map[int]bool

	readyRead, readyWrite, readyException []int
	cursorRead, cursorWrite, cursorExc    int
}

// New returns an initialized, empty Multiplexor.
func New() *Multiplexor {
	return &Multiplexor{
		read:      make(map[int]bool),
		write:     make(map[int]bool),
		exception: make(map[int]bool),
	}
}

// RegisterRead adds fd to the read-readiness set. Idempotent.
func (m *Multiplexor) RegisterRead(fd int) { m.read[fd] = true }

// RegisterWrite adds fd to the write-readiness set. Idempotent.
func (m *Multiplexor) RegisterWrite(fd int) { m.write[fd] = true }

// RegisterException adds fd to the exception-readiness set. Idempotent.
func (m *Multiplexor) RegisterException(fd int) { m.exception[fd] = true }

// UnregisterRead removes fd from the read-readiness set. A no-op if fd was
// not registered.
func (m *Multiplexor) UnregisterRead(fd int) { delete(m.read, fd) }

// UnregisterWrite removes fd from the write-readiness set. A no-op if fd
// was not registered.
func (m *Multiplexor) UnregisterWrite(fd int) { delete(m.write, fd) }

// UnregisterException removes fd from the exception-readiness set. A
// no-op if fd was not registered.
func (m *Multiplexor) UnregisterException(fd int) { delete(m.exception, fd) }

// Wait blocks until a descriptor in one of the three registered sets
// becomes ready, or timeout elapses. A zero timeout polls without
// blocking; a negative timeout blocks indefinitely. It returns the number
// of ready descriptors (summed across all three sets, a descriptor ready
// in more than one sense counts once per sense) or an error — including
// unix.EINTR, which the caller is expected to treat as "yield and
// restart" per the proxy's event loop contract.
func (m *Multiplexor) Wait(timeout time.Duration) (int, error) {
	var readSet, writeSet, excSet unix.FdSet
	maxFd := -1

	load := func(set map[int]bool, fdset *unix.FdSet) {
		for fd := range set {
			fdSet(fdset, fd)
			if fd > maxFd {
				maxFd = fd
			}
		}
	}
	load(m.read, &readSet)
	load(m.write, &writeSet)
	load(m.exception, &excSet)

	var tv *unix.Timeval
	if timeout >= 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}

	n, err := unix.Select(maxFd+1, &readSet, &writeSet, &excSet, tv)
	if err != nil {
		return n, err
	}

	m.readyRead = collectReady(m.read, &readSet)
	m.readyWrite = collectReady(m.write, &writeSet)
	m.readyException = collectReady(m.exception, &excSet)
	m.cursorRead, m.cursorWrite, m.cursorExc = 0, 0, 0

	return n, nil
}

// ReadyRead returns the next read-ready descriptor from the most recent
// Wait and true, or (0, false) once exhausted.
func (m *Multiplexor) ReadyRead() (int, bool) {
	return nextReady(&m.cursorRead, m.readyRead)
}

// ReadyWrite returns the next write-ready descriptor from the most recent
// Wait and true, or (0, false) once exhausted.
func (m *Multiplexor) ReadyWrite() (int, bool) {
	return nextReady(&m.cursorWrite, m.readyWrite)
}

// ReadyException returns the next exception-ready descriptor from the
// most recent Wait and true, or (0, false) once exhausted.
func (m *Multiplexor) ReadyException() (int, bool) {
	return nextReady(&m.cursorExc, m.readyException)
}

func nextReady(cursor *int, ready []int) (int, bool) {
	if *cursor >= len(ready) {
		return 0, false
	}
	fd := ready[*cursor]
	*cursor++
	return fd, true
}

func collectReady(registered map[int]bool, set *unix.FdSet) []int {
	out := make([]int, 0, len(registered))
	for fd := range registered {
		if fdIsSet(set, fd) {
			out = append(out, fd)
		}
	}
	sort.Ints(out)
	return out
}

// fdSet and fdIsSet manipulate a unix.FdSet's bitmap directly; the x/sys
// package exposes the raw Bits array but no bit-twiddling helpers.
func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
