package nimpeller

import (
	"runtime"
	"unsafe"
)

// Mapping is a block of bytes handed to the engine, such as encoded image or
// font data. The engine may keep reading Data after the call returns, so
// Data must stay reachable until OnRelease fires.
type Mapping struct {
	Data []byte

	// OnRelease is a native callback the engine invokes once it no longer
	// needs Data. Zero means none.
	OnRelease uintptr
}

// nativeMapping mirrors the C layout of ImpellerMapping.
type nativeMapping struct {
	data      *byte
	length    uint64
	onRelease uintptr
}

// MarshalMapping returns a pointer to the native layout of m and a function
// unpinning it. The pointer is valid until free is called.
func MarshalMapping(m *Mapping) (ptr unsafe.Pointer, free func()) {
	if m == nil {
		return nil, func() {}
	}

	var pinner runtime.Pinner
	nm := &nativeMapping{
		length:    uint64(len(m.Data)),
		onRelease: m.OnRelease,
	}
	if len(m.Data) > 0 {
		nm.data = &m.Data[0]
		pinner.Pin(nm.data)
	}
	pinner.Pin(nm)

	return unsafe.Pointer(nm), pinner.Unpin
}
