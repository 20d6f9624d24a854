package record

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// payloads builds the [][]byte vector for one I/O pass directly from r's
// Segments, capped at MaxVectorSegments (UIO_MAXIOV) entries.
func payloads(r *Record) ([][]byte, error) {
	buf := make([]Iovec, MaxVectorSegments)
	vec, err := Vectorize(r, buf)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vec))
	for i, v := range vec {
		out[i] = v.Payload
	}
	return out, nil
}

// toUnixIovec converts a [][]byte vector into the unix.Iovec form Writev
// and Readv require.
func toUnixIovec(bufs [][]byte) []unix.Iovec {
	out := make([]unix.Iovec, 0, len(bufs))
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		var v unix.Iovec
		v.Base = &b[0]
		v.SetLen(len(b))
		out = append(out, v)
	}
	return out
}

// Write sends r on fd in one vectored writev(2) call, returning the total
// number of bytes written.
func Write(fd int, r *Record) (int, error) {
	bufs, err := payloads(r)
	if err != nil {
		return 0, err
	}
	iov := toUnixIovec(bufs)
	if len(iov) == 0 {
		return 0, nil
	}
	return unix.Writev(fd, iov)
}

// Read fills r's Segments from fd in one vectored readv(2) call, returning
// the total number of bytes read.
func Read(fd int, r *Record) (int, error) {
	bufs, err := payloads(r)
	if err != nil {
		return 0, err
	}
	iov := toUnixIovec(bufs)
	if len(iov) == 0 {
		return 0, nil
	}
	return unix.Readv(fd, iov)
}

// StreamSend is an alias for Write kept distinct so call sites name the
// stream-oriented intent (a connected descriptor, e.g. the serial device
// or a TCP socket) explicitly.
func StreamSend(fd int, r *Record) (int, error) {
	return Write(fd, r)
}

// StreamReceive is an alias for Read kept distinct so call sites name the
// stream-oriented intent explicitly.
func StreamReceive(fd int, r *Record) (int, error) {
	return Read(fd, r)
}

// DatagramSend sends r to addr on fd in one vectored sendmsg(2) call.
func DatagramSend(fd int, r *Record, addr *net.UDPAddr) (int, error) {
	bufs, err := payloads(r)
	if err != nil {
		return 0, err
	}
	sa, err := toSockaddr(addr)
	if err != nil {
		return 0, err
	}
	n, err := unix.SendmsgBuffers(fd, bufs, nil, sa, 0)
	return n, err
}

// DatagramReceive fills r's Segments from one vectored recvmsg(2) call,
// returning the sender's address and the number of bytes received.
func DatagramReceive(fd int, r *Record) (*net.UDPAddr, int, error) {
	bufs, err := payloads(r)
	if err != nil {
		return nil, 0, err
	}
	n, _, _, sa, err := unix.RecvmsgBuffers(fd, bufs, nil, 0)
	if err != nil {
		return nil, 0, err
	}
	addr, aerr := fromSockaddr(sa)
	if aerr != nil {
		return nil, n, aerr
	}
	return addr, n, nil
}

// toSockaddr converts a *net.UDPAddr into the unix.Sockaddr form sendmsg
// requires, supporting both IPv4 and IPv6 peers.
func toSockaddr(addr *net.UDPAddr) (unix.Sockaddr, error) {
	if addr == nil {
		return nil, errors.New("record: nil destination address")
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		return nil, errors.New("record: invalid destination address")
	}
	var sa unix.SockaddrInet6
	sa.Port = addr.Port
	copy(sa.Addr[:], ip6)
	return &sa, nil
}

// fromSockaddr converts a unix.Sockaddr recovered from recvmsg back into a
// *net.UDPAddr.
func fromSockaddr(sa unix.Sockaddr) (*net.UDPAddr, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, v.Addr[:])
		return &net.UDPAddr{IP: ip, Port: v.Port}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, v.Addr[:])
		return &net.UDPAddr{IP: ip, Port: v.Port}, nil
	default:
		return nil, errors.New("record: unsupported sockaddr type from recvmsg")
	}
}
