package record

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/coverclock/com-diag-diminuto-sub002/internal/pool"
)

func TestStreamWriteReadRoundTrip(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p := pool.New(0)
	out := AllocateRecord(p)
	a := AllocateSegment(p, 4)
	copy(a.Payload(), []byte("abcd"))
	b := AllocateSegment(p, 3)
	copy(b.Payload(), []byte("xyz"))
	Append(out, a)
	Append(out, b)

	n, err := Write(fds[0], out)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	in := AllocateRecord(p)
	Append(in, AllocateSegment(p, 4))
	Append(in, AllocateSegment(p, 3))

	n, err = Read(fds[1], in)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	first := Head(in)
	second := NextSegment(first)
	require.Equal(t, []byte("abcd"), first.Payload())
	require.Equal(t, []byte("xyz"), second.Payload())

	FreeRecord(p, out)
	FreeRecord(p, in)
}

func TestDatagramSendReceiveRoundTrip(t *testing.T) {
	serverConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer clientConn.Close()

	serverFile, err := serverConn.File()
	require.NoError(t, err)
	defer serverFile.Close()

	clientFile, err := clientConn.File()
	require.NoError(t, err)
	defer clientFile.Close()

	p := pool.New(0)
	out := AllocateRecord(p)
	seg := AllocateSegment(p, 5)
	copy(seg.Payload(), []byte("hello"))
	Append(out, seg)

	serverAddr := serverConn.LocalAddr().(*net.UDPAddr)
	n, err := DatagramSend(int(clientFile.Fd()), out, serverAddr)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	in := AllocateRecord(p)
	Append(in, AllocateSegment(p, 5))

	from, n, err := DatagramReceive(int(serverFile.Fd()), in)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NotNil(t, from)
	require.Equal(t, []byte("hello"), Head(in).Payload())

	FreeRecord(p, out)
	FreeRecord(p, in)
}
