package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/coverclock/com-diag-diminuto-sub002/internal/serial"
	"github.com/coverclock/com-diag-diminuto-sub002/pkg/framer"
	"github.com/coverclock/com-diag-diminuto-sub002/pkg/log"
	"github.com/coverclock/com-diag-diminuto-sub002/pkg/metrics"
	"github.com/coverclock/com-diag-diminuto-sub002/pkg/mux"
)

// Proxy is one running instance of the serial-to-UDP frame proxy: one
// serial endpoint, one UDP endpoint, one multiplexor waiting on both.
type Proxy struct {
	cfg Config

	serialFile *os.File // read side; device path or stdin
	serialOut  *os.File // write side; same file except for "-" (stdout)
	serialFD   int

	conn   *net.UDPConn
	connFD int

	peer atomic.Value // holds *net.UDPAddr; client: fixed; server: last sender

	m *mux.Multiplexor

	frame    *framer.Framer
	writer   *framer.Writer
	datagram []byte

	metrics *metrics.Metrics

	hangup     chan os.Signal
	terminator chan os.Signal
}

// exit codes, mirroring the original's documented contract.
const (
	exitSuccess = iota
	exitHelp
	exitArgumentError
	exitSignalFailure
	exitDeviceFailure
	exitEndpointInvalid
	exitSocketFailure
	exitMuxFailure
	exitAllocationFailure
	exitFramerFailure
)

// NewProxy builds a Proxy from cfg, acquiring and configuring the serial
// device and UDP socket but not yet entering the event loop. The
// returned exit code is exitSuccess only when err is nil.
func NewProxy(cfg Config) (*Proxy, int, error) {
	p := &Proxy{cfg: cfg}

	if cfg.Endpoint == nil {
		return nil, exitEndpointInvalid, fmt.Errorf("-E: endpoint is required")
	}
	if cfg.BufferSize < minBufferSize {
		return nil, exitAllocationFailure, fmt.Errorf("buffer size %d below minimum %d", cfg.BufferSize, minBufferSize)
	}

	if err := p.openDevice(); err != nil {
		return nil, exitDeviceFailure, err
	}

	if err := p.openSocket(); err != nil {
		if p.cfg.Device != "-" {
			p.serialFile.Close()
		}
		return nil, exitSocketFailure, err
	}

	p.m = mux.New()
	p.m.RegisterRead(p.serialFD)
	p.m.RegisterRead(p.connFD)

	p.datagram = make([]byte, cfg.BufferSize)
	frameBuffer := make([]byte, cfg.BufferSize)

	p.frame = framer.NewFramer(frameBuffer)
	if p.frame == nil {
		p.conn.Close()
		if p.cfg.Device != "-" {
			p.serialFile.Close()
		}
		return nil, exitFramerFailure, fmt.Errorf("framer initialization failed")
	}
	p.writer = framer.NewWriter()

	if cfg.Role == RoleClient {
		p.peer.Store(cfg.Endpoint)
	}

	if cfg.MetricsAddr != "" {
		p.metrics = metrics.New(log.Default().Lost)
	}

	return p, exitSuccess, nil
}

func (p *Proxy) openDevice() error {
	if p.cfg.Device == "-" {
		p.serialFile = os.Stdin
		p.serialOut = os.Stdout
		p.serialFD = int(os.Stdin.Fd())
		return nil
	}

	fd, err := serial.Open(p.cfg.Device)
	if err != nil {
		return fmt.Errorf("%s: %w", p.cfg.Device, err)
	}

	serialCfg := serial.Config{
		BaudRate:     p.cfg.BaudRate,
		DataBits:     p.cfg.DataBits,
		Parity:       p.cfg.Parity,
		StopBits:     p.cfg.StopBits,
		ModemControl: p.cfg.ModemControl,
		RTSCTS:       p.cfg.RTSCTS,
		XONXOFF:      p.cfg.XONXOFF,
	}
	if err := serial.Configure(fd, serialCfg); err != nil {
		syscall.Close(fd)
		return fmt.Errorf("%s: %w", p.cfg.Device, err)
	}

	p.serialFile = os.NewFile(uintptr(fd), p.cfg.Device)
	p.serialOut = p.serialFile
	p.serialFD = fd
	return nil
}

func (p *Proxy) openSocket() error {
	var laddr *net.UDPAddr
	if p.cfg.Role == RoleServer {
		laddr = p.cfg.Endpoint
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	p.conn = conn

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return err
	}
	// The socket's own descriptor is what we register with the
	// multiplexor, while conn itself keeps handling the datagram
	// read/write calls; it stays open until conn is closed.
	if err := raw.Control(func(fd uintptr) { p.connFD = int(fd) }); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// Run installs signal handlers and drives the event loop until SIGTERM
// (or SIGINT) or an unrecoverable I/O error. It returns the exit code the caller
// should use.
func (p *Proxy) Run() int {
	p.hangup = make(chan os.Signal, 1)
	p.terminator = make(chan os.Signal, 1)
	signal.Notify(p.hangup, syscall.SIGHUP)
	signal.Notify(p.terminator, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(p.hangup)
	defer signal.Stop(p.terminator)

	timeout := time.Duration(p.cfg.SelectTimeoutMS) * time.Millisecond

	for {
		select {
		case <-p.hangup:
			log.Default().Log(log.Notice, "%s: SIGHUP", p.cfg.Program)
			if p.cfg.MaskFile != "" {
				log.Default().ImportMaskFromFile(p.cfg.MaskFile)
			}
			continue
		case <-p.terminator:
			log.Default().Log(log.Notice, "%s: SIGTERM", p.cfg.Program)
			return exitSuccess
		default:
		}

		ready, err := p.m.Wait(timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.Default().Perror(p.cfg.Program, err)
			return exitMuxFailure
		}
		if ready == 0 {
			continue
		}

		for i := 0; i < ready; i++ {
			fd, ok := p.m.ReadyRead()
			if !ok {
				break
			}
			switch fd {
			case p.connFD:
				if !p.handleDatagram() {
					return exitSuccess
				}
			case p.serialFD:
				if !p.handleFrame() {
					return exitSuccess
				}
			}
		}
	}
}

// handleDatagram reads one UDP datagram and writes it to the serial
// device as a framed packet.
func (p *Proxy) handleDatagram() bool {
	n, addr, err := p.conn.ReadFromUDP(p.datagram)
	if err != nil {
		return false
	}
	if p.cfg.Role == RoleServer {
		p.peer.Store(addr)
	}
	if p.metrics != nil {
		p.metrics.DatagramsForwarded.Inc()
	}
	if _, err := p.writer.Write(p.serialOut, p.datagram[:n]); err != nil {
		log.Default().Perror(p.cfg.Device, err)
		return false
	}
	return true
}

// handleFrame reads bytes arriving on the serial device until one frame
// decodes or the read ends, then forwards a complete frame's payload to
// whichever UDP peer is currently on file. Frames discarded for a bad
// trailer or an oversize length are skipped inside Fill; they surface
// here only when the read ends right after one.
func (p *Proxy) handleFrame() bool {
	_, err := p.frame.Fill(p.serialFile)
	if err != nil {
		if errors.Is(err, framer.ErrInvalid) || errors.Is(err, framer.ErrOverflow) {
			if p.metrics != nil {
				p.metrics.DecodeErrors.Inc()
			}
			log.Default().Log(log.Debug, "%s: frame decode error: %v", p.cfg.Program, err)
			return true
		}
		log.Default().Perror(p.cfg.Device, err)
		return false
	}

	payload := append([]byte(nil), p.frame.Payload()...)
	p.frame.Reset()

	dest, _ := p.peer.Load().(*net.UDPAddr)
	if dest == nil {
		return true
	}

	if _, err := p.conn.WriteToUDP(payload, dest); err != nil {
		log.Default().Perror("udp", err)
		return false
	}
	if p.metrics != nil {
		p.metrics.FramesForwarded.Inc()
	}
	return true
}

// Close releases the proxy's descriptors in the original's finalization
// order: unregister both from the multiplexor, then close the socket
// and serial device.
func (p *Proxy) Close() {
	if p.m != nil {
		p.m.UnregisterRead(p.connFD)
		p.m.UnregisterRead(p.serialFD)
	}
	if p.conn != nil {
		p.conn.Close()
	}
	if p.serialFile != nil && p.cfg.Device != "-" {
		p.serialFile.Close()
	}
}
