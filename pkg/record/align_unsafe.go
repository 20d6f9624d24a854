package record

import "unsafe"

// addressOf returns the numeric address of b, used only to compute an
// 8-byte alignment offset inside a freshly allocated slice.
func addressOf(b *byte) uintptr {
	return uintptr(unsafe.Pointer(b))
}
