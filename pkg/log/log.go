package log

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Strategy selects how emitted messages are routed to a destination.
type Strategy int

const (
	// Automatic computes the destination from process state each
	// emission, caching once a daemon is detected (see routeAutomaticLocked).
	Automatic Strategy = iota
	// StandardError always routes to the configured descriptor (os.Stderr
	// by default).
	StandardError
	// SystemLog always routes to the system log.
	SystemLog
	// Suppress discards every message (used by tests that want silence
	// without touching the mask).
	Suppress
)

// bufferMaximum is the largest single formatted message Log will emit;
// longer messages are truncated, never split, with the newline preserved.
const bufferMaximum = 1024

// hostnameMaximum bounds the cached hostname buffer.
const hostnameMaximum = 256

// MaskEnvironmentVariable is the environment variable SetMaskFromEnvironment
// consults.
const MaskEnvironmentVariable = "COM_DIAG_DIMINUTO_LOG_MASK"

// maskAllToken is the grammar's special "enable everything" value.
const maskAllToken = "~0"

// defaultMaskFileSuffix is appended to the home directory when
// ImportMaskFromFile is called with an empty path.
const defaultMaskFileSuffix = "/.com-diag-diminuto-sub002.mask"

// Logger is the process-wide logging singleton: mask, strategy,
// destination, and diagnostic counters, all guarded by one mutex exactly
// as diminuto_log_mask/diminuto_log_mutex are process-wide in the
// original.
type Logger struct {
	mutex sync.Mutex

	mask     Mask
	strategy Strategy

	destination io.Writer // used by StandardError and as Automatic's fallback
	syslogW     *syslog.Writer
	identity    string
	facility    syslog.Priority

	daemonCached bool
	hostname     string

	lost uint64
}

var singleton = &Logger{
	mask:        DefaultMask,
	strategy:    Automatic,
	destination: os.Stderr,
	identity:    os.Args[0],
	facility:    syslog.LOG_USER,
}

// Default returns the process-wide Logger singleton.
func Default() *Logger {
	return singleton
}

// SetStrategy installs the routing strategy.
func (l *Logger) SetStrategy(s Strategy) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.strategy = s
}

// SetDestination installs the io.Writer StandardError (and Automatic's
// non-daemon branch) writes to. Tests use this to capture output without
// touching os.Stderr.
func (l *Logger) SetDestination(w io.Writer) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.destination = w
}

// Mask returns the current process-wide mask.
func (l *Logger) Mask() Mask {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.mask
}

// SetMask assigns the process-wide mask directly, returning the previous
// value.
func (l *Logger) SetMask(m Mask) Mask {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	before := l.mask
	l.mask = m
	return before
}

// Lost returns the number of messages lost to irrecoverable emission
// failure since process start.
func (l *Logger) Lost() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.lost
}

// SetMaskFromEnvironment consults MaskEnvironmentVariable. Its value is
// either "~0" (all bits set) or an integer parsed with strconv's base-0
// rules (decimal, "0x..." hex, "0..." octal). Absence leaves the mask
// unchanged (not an error); a malformed value emits a self-contained error
// notice to standard error and leaves the mask unchanged.
func (l *Logger) SetMaskFromEnvironment() Mask {
	value, ok := os.LookupEnv(MaskEnvironmentVariable)
	if !ok {
		return l.Mask()
	}
	return l.applyMaskGrammar(value, os.Stderr)
}

// ImportMaskFromFile reads the value grammar from the first line of path
// (or, if path is empty, a file under the home directory named by
// defaultMaskFileSuffix, resolved via go-homedir). A missing file is not
// an error.
func (l *Logger) ImportMaskFromFile(path string) Mask {
	if path == "" {
		home, err := homeDir()
		if err != nil {
			home = "."
		}
		path = home + defaultMaskFileSuffix
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l.Mask()
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return l.Mask()
	}

	line := data
	if i := indexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return l.applyMaskGrammar(string(line), os.Stderr)
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// applyMaskGrammar parses one mask value per the "~0 or strtol-base-0"
// grammar, reporting malformed values to errOut.
func (l *Logger) applyMaskGrammar(raw string, errOut io.Writer) Mask {
	trimmed := strings.TrimRight(raw, " \t\r\n")
	// Trailing comment, matching the original's acceptance of trailing
	// '#', ' ', '\t' after the numeric token.
	if idx := strings.IndexByte(trimmed, '#'); idx >= 0 {
		trimmed = strings.TrimRight(trimmed[:idx], " \t")
	}

	if trimmed == maskAllToken {
		return l.SetMask(MaskAll)
	}

	value, err := strconv.ParseInt(strings.TrimSpace(trimmed), 0, 64)
	if err != nil || value < 0 {
		fmt.Fprintf(errOut, "%s: %s\n", raw, "invalid log mask value")
		return l.Mask()
	}
	return l.SetMask(Mask(value))
}

// OpenSystemLog attaches the process to the host system log with the
// given identity and facility; it takes no option flags. At-most-once:
// the first call, explicit or implicit, wins; later calls with a
// different identity are ignored, matching the original's "first call
// wins" contract.
func (l *Logger) OpenSystemLog(identity string, facility syslog.Priority) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.syslogW != nil {
		return nil
	}
	if identity != "" {
		l.identity = identity
	}
	l.facility = facility

	w, err := syslog.New(facility, l.identity)
	if err != nil {
		return err
	}
	l.syslogW = w
	return nil
}

// Log emits at priority if the process mask gates it in, else has no
// side effect.
func (l *Logger) Log(priority Priority, format string, args ...any) {
	l.mutex.Lock()
	gated := l.mask&priority.ToMask() != 0
	l.mutex.Unlock()
	if !gated {
		return
	}
	l.emitLocked(priority, fmt.Sprintf(format, args...))
}

// Emit logs at DefaultPriority unconditionally, bypassing the mask.
func (l *Logger) Emit(format string, args ...any) {
	l.emitLocked(DefaultPriority, fmt.Sprintf(format, args...))
}

// Perror emits message plus the current errno-equivalent text at
// PerrorPriority, routed through Log (and therefore gated by the mask)
// exactly as diminuto_log's "perror" entry point is distinguished from
// "serror" by its routing, not its content.
func (l *Logger) Perror(message string, err error) {
	l.Log(PerrorPriority, "%s: %s", message, errorText(err))
}

// Serror is identical to Perror except it always routes to the system
// log rather than through the mask-gated Log path, matching the
// original's distinction that lets a caller force syslog routing during
// unit testing.
func (l *Logger) Serror(message string, err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	text := fmt.Sprintf("%s: %s", message, errorText(err))
	l.writeSyslogLocked(PerrorPriority, text)
}

func errorText(err error) string {
	if err == nil {
		return "success"
	}
	return err.Error()
}

func (l *Logger) emitLocked(priority Priority, message string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	line := l.formatLocked(priority, message)

	switch l.resolveStrategyLocked() {
	case Suppress:
		return
	case SystemLog:
		l.writeSyslogLocked(priority, message)
	default:
		l.writeDestinationLocked(line)
	}
}

// resolveStrategyLocked implements the Automatic routing algorithm: once
// the process is known to be a daemon the result is cached forever;
// otherwise it is computed from session/parent state on every call.
func (l *Logger) resolveStrategyLocked() Strategy {
	switch l.strategy {
	case StandardError, SystemLog, Suppress:
		return l.strategy
	default:
		return l.routeAutomaticLocked()
	}
}

func (l *Logger) routeAutomaticLocked() Strategy {
	if isRegularFile(l.destination) {
		return StandardError
	}
	if l.daemonCached {
		return SystemLog
	}
	if isDaemon() {
		l.daemonCached = true
		return SystemLog
	}
	return StandardError
}

// isRegularFile reports whether w is backed by a regular file, matching
// the original's diminuto_fd_type(descriptor) == DIMINUTO_FS_TYPE_FILE
// check: a caller who has redirected the log descriptor to a file
// probably wants it to stay there even if the process otherwise looks
// like a daemon. Not cached, since the descriptor can be redirected at
// runtime.
func isRegularFile(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func (l *Logger) writeDestinationLocked(line string) {
	w := l.destination
	if w == nil {
		w = os.Stderr
	}
	if _, err := io.WriteString(w, line); err != nil {
		l.lost++
	}
}

func (l *Logger) writeSyslogLocked(priority Priority, message string) {
	if l.syslogW == nil {
		w, err := syslog.New(l.facility, l.identity)
		if err != nil {
			l.lost++
			return
		}
		l.syslogW = w
	}
	if err := writeSyslogPriority(l.syslogW, priority, message); err != nil {
		l.lost++
	}
}

func writeSyslogPriority(w *syslog.Writer, priority Priority, message string) error {
	switch priority {
	case Emergency:
		return w.Emerg(message)
	case Alert:
		return w.Alert(message)
	case Critical:
		return w.Crit(message)
	case Error:
		return w.Err(message)
	case Warning:
		return w.Warning(message)
	case Notice:
		return w.Notice(message)
	case Information:
		return w.Info(message)
	default:
		return w.Debug(message)
	}
}

// formatLocked renders the full message line: timestamp, hostname,
// priority tag, pid, tid, caller text — truncated to bufferMaximum,
// never split, with the trailing newline always present.
func (l *Logger) formatLocked(priority Priority, message string) string {
	hostname := l.hostnameLocked()

	prefix := fmt.Sprintf("%s \"%s\" <%s> [%d] {%d} ",
		timestamp(), hostname, priority.Tag(), os.Getpid(), threadID())

	line := prefix + message
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if len(line) > bufferMaximum {
		line = line[:bufferMaximum-1] + "\n"
	}
	return line
}

func (l *Logger) hostnameLocked() string {
	if l.hostname != "" {
		return l.hostname
	}
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "localhost"
	}
	if len(name) > hostnameMaximum {
		name = name[:hostnameMaximum]
	}
	l.hostname = name
	return name
}

func timestamp() string {
	now := time.Now().UTC()
	return now.Format("2006-01-02T15:04:05.000000000") + "Z"
}
