// Command conestoga is the Framer-over-serial-to-UDP proxy: it forwards
// byte-stuffed framed packets arriving on a serial device as UDP
// datagrams to a configured peer, and UDP datagrams arriving on its
// socket as framed packets written back to the serial device. Grounded
// on the original bin/conestoga.c's option grammar, initialization order,
// and event loop, reworked into a Go command built on this repository's
// pkg/framer, pkg/mux, pkg/log, and internal/serial.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/pflag"

	"github.com/coverclock/com-diag-diminuto-sub002/internal/serial"
)

// Role determines reply-address policy.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "s"
	}
	return "c"
}

// IPPreference selects which address family endpoint resolution prefers
// when a hostname resolves to both.
type IPPreference int

const (
	PreferenceNone IPPreference = iota
	PreferenceIPv4
	PreferenceIPv6
)

// maxDatagram is the largest UDP payload the framer is ever asked to
// transport: 65535 minus the 8-octet UDP header.
const maxDatagram = 65527

// minBufferSize is this repository's enforced floor: any buffer shorter
// than the framer's fixed overhead (FLAG + 4 length + 2 Fletcher + 4 CRC =
// 11 raw octets, more once stuffed) cannot hold even an empty payload.
const minBufferSize = 16

// defaultMaskPath is the directory the original mounts a per-PID mask
// file under; this port keeps the same convention so dynamic mask reload
// via SIGHUP behaves identically for operators already familiar with it.
const defaultMaskPath = "/var/run"

// Config is the proxy's fully parsed, validated configuration.
type Config struct {
	Program string

	Role         Role
	Device       string
	BaudRate     int
	DataBits     int
	Parity       serial.Parity
	StopBits     int
	ModemControl bool
	RTSCTS       bool
	XONXOFF      bool

	Preference IPPreference
	Endpoint   *net.UDPAddr // client: far end; server: near end (IP unset)

	BufferSize     int
	SelectTimeoutMS int
	Daemonize      bool
	MaskFile       string

	MetricsAddr string // empty disables the metrics server
}

// DefaultConfig mirrors the original's documented defaults.
func DefaultConfig() Config {
	return Config{
		Role:            RoleClient,
		Device:          "-",
		BaudRate:        57600,
		DataBits:        8,
		Parity:          serial.ParityNone,
		StopBits:        1,
		BufferSize:      maxDatagram,
		SelectTimeoutMS: 1000,
	}
}

// ParseError is returned by ParseArgs to signal the proxy should exit
// with exitArgumentError (after printing a diagnostic) rather than enter
// the event loop.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// HelpRequested is returned by ParseArgs when -? was given; the caller
// exits with exitHelp after the flag set has already printed usage.
type HelpRequested struct{}

func (HelpRequested) Error() string { return "help requested" }

// ParseArgs parses argv (excluding argv[0]) into a Config, following the
// original's getopt grammar "124678B:D:E:b:cdehmnorst:x?" rendered into
// short options via pflag. Of that grammar, -h and -n are not accepted;
// -M is added.
func ParseArgs(program string, argv []string) (Config, error) {
	cfg := DefaultConfig()
	cfg.Program = program

	flags := pflag.NewFlagSet(program, pflag.ContinueOnError)
	flags.SortFlags = false

	oneStop := flags.BoolP("one-stop-bit", "1", false, "sets DEVICE to one stop bit")
	twoStop := flags.BoolP("two-stop-bits", "2", false, "sets DEVICE to two stop bits")
	ipv4 := flags.BoolP("ipv4", "4", false, "prefer IPv4 (must precede -E)")
	ipv6 := flags.BoolP("ipv6", "6", false, "prefer IPv6 (must precede -E)")
	sevenBits := flags.BoolP("seven-data-bits", "7", false, "sets DEVICE to seven data bits")
	eightBits := flags.BoolP("eight-data-bits", "8", false, "sets DEVICE to eight data bits")
	baud := flags.IntP("baud", "B", cfg.BaudRate, "sets the DEVICE to BAUDRATE bits per second")
	device := flags.StringP("device", "D", cfg.Device, "is the serial device name")
	endpoint := flags.StringP("endpoint", "E", "", "sets the far (client) or near (server) end point")
	bufferSize := flags.IntP("buffer-size", "b", cfg.BufferSize, "sets the buffer sizes to BYTES bytes")
	client := flags.BoolP("client", "c", false, "sets proxy client mode (must precede -E)")
	daemon := flags.BoolP("daemonize", "d", false, "immediately daemonizes the process")
	even := flags.BoolP("even-parity", "e", false, "sets DEVICE to even parity")
	modem := flags.BoolP("modem-control", "m", false, "enables modem control")
	odd := flags.BoolP("odd-parity", "o", false, "sets DEVICE to odd parity")
	rtscts := flags.BoolP("rtscts", "r", false, "enables RTS/CTS")
	server := flags.BoolP("server", "s", false, "sets proxy server mode (must precede -E)")
	timeoutMS := flags.IntP("timeout", "t", cfg.SelectTimeoutMS, "sets the multiplexor timeout to MILLISECONDS")
	xonxoff := flags.BoolP("xonxoff", "x", false, "enables XON/XOFF")
	metricsAddr := flags.StringP("metrics", "M", "", "expose prometheus metrics on ADDR (debug)")
	help := flags.BoolP("help", "?", false, "prints this help menu and exits")

	if err := flags.Parse(argv); err != nil {
		return cfg, &ParseError{Err: err}
	}
	if *help {
		fmt.Fprintln(os.Stderr, flags.FlagUsages())
		return cfg, HelpRequested{}
	}

	if *oneStop {
		cfg.StopBits = 1
	}
	if *twoStop {
		cfg.StopBits = 2
	}
	if *ipv4 {
		cfg.Preference = PreferenceIPv4
	}
	if *ipv6 {
		cfg.Preference = PreferenceIPv6
	}
	if *sevenBits {
		cfg.DataBits = 7
	}
	if *eightBits {
		cfg.DataBits = 8
	}
	if *baud <= 0 {
		return cfg, &ParseError{Err: fmt.Errorf("-B: invalid baud rate %d", *baud)}
	}
	cfg.BaudRate = *baud

	if *device != "-" {
		if _, err := os.Stat(*device); err != nil {
			return cfg, &ParseError{Err: fmt.Errorf("-D: %s: %w", *device, err)}
		}
	}
	cfg.Device = *device

	if *client {
		cfg.Role = RoleClient
	}
	if *server {
		cfg.Role = RoleServer
	}

	if *bufferSize <= 0 {
		return cfg, &ParseError{Err: fmt.Errorf("-b: invalid buffer size %d", *bufferSize)}
	}
	if *bufferSize > maxDatagram {
		*bufferSize = maxDatagram
	}
	if *bufferSize < minBufferSize {
		*bufferSize = minBufferSize
	}
	cfg.BufferSize = *bufferSize

	cfg.Daemonize = *daemon
	if *even {
		cfg.Parity = serial.ParityEven
	}
	if *odd {
		cfg.Parity = serial.ParityOdd
	}
	cfg.ModemControl = *modem
	cfg.RTSCTS = *rtscts
	cfg.XONXOFF = *xonxoff
	cfg.MetricsAddr = *metricsAddr

	if *timeoutMS < 0 {
		return cfg, &ParseError{Err: fmt.Errorf("-t: invalid timeout %d", *timeoutMS)}
	}
	cfg.SelectTimeoutMS = *timeoutMS

	if *endpoint != "" {
		addr, err := resolveEndpoint(*endpoint, cfg.Preference, cfg.Role)
		if err != nil {
			return cfg, &ParseError{Err: err}
		}
		cfg.Endpoint = addr
	}

	cfg.MaskFile = fmt.Sprintf("%s/%s-%d.msk", defaultMaskPath, program, os.Getpid())

	return cfg, nil
}

// resolveEndpoint parses "host:port" (client) or ":port" (server) into a
// *net.UDPAddr, validating role-appropriate shape: a client endpoint must
// name both host and a nonzero port; a server endpoint must name only a
// port (no host).
func resolveEndpoint(s string, preference IPPreference, role Role) (*net.UDPAddr, error) {
	network := "udp"
	switch preference {
	case PreferenceIPv4:
		network = "udp4"
	case PreferenceIPv6:
		network = "udp6"
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return nil, fmt.Errorf("-E: %s: %w", s, err)
	}

	if role == RoleClient && host == "" {
		return nil, fmt.Errorf("-E: %s: client endpoint requires a host", s)
	}
	if role == RoleServer && host != "" {
		return nil, fmt.Errorf("-E: %s: server endpoint must not name a host", s)
	}

	resolved := net.JoinHostPort(host, port)
	if host == "" {
		resolved = ":" + port
	}
	addr, err := net.ResolveUDPAddr(network, resolved)
	if err != nil {
		return nil, fmt.Errorf("-E: %s: %w", s, err)
	}
	if addr.Port == 0 {
		return nil, fmt.Errorf("-E: %s: port must be nonzero", s)
	}
	return addr, nil
}
