package serial

import "golang.org/x/sys/unix"

const (
	ioctlGets = unix.TCGETS
	ioctlSets = unix.TCSETS
)

// setSpeed assigns speed into both the CBAUD-masked Cflag field and the
// dedicated Ispeed/Ospeed fields, covering kernels that honor either
// convention.
func setSpeed(t *unix.Termios, speed uint32) {
	t.Cflag &^= unix.CBAUD
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed
}
