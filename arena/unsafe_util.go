package arena

import "unsafe"

// sliceAddr returns the address of a byte slice's backing array, used as a
// map key to recover the mmap.MMap handle a region came from without
// threading an extra field through every Table that holds a []byte view.
func sliceAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
