package log

import "golang.org/x/sys/unix"

// isDaemon reports whether the calling process looks like a daemon: it is
// its own session leader, or its parent is process 1 (init/systemd having
// adopted an orphan). Mirrors diminuto_log's getpid()==getsid(0) ||
// getppid()==1 test exactly.
func isDaemon() bool {
	pid := unix.Getpid()
	sid, err := unix.Getsid(0)
	if err == nil && pid == sid {
		return true
	}
	return unix.Getppid() == 1
}

// threadID returns the kernel thread id of the calling OS thread, the
// nearest Linux analogue to the original's pthread_self() used in the
// {tid} field.
func threadID() int {
	return unix.Gettid()
}
