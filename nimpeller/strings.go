package nimpeller

import "unsafe"

// CString returns a NUL terminated copy of s in Go memory. The result must
// stay reachable for the duration of the native call.
func CString(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

// OptionalCString is CString for optional arguments; nil maps to NULL.
func OptionalCString(s *string) *byte {
	if s == nil {
		return nil
	}
	return CString(*s)
}

// GoString copies a NUL terminated native string.
func GoString(p *byte) string {
	if p == nil {
		return ""
	}

	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// OptionalGoString is GoString for nullable results; NULL maps to nil.
func OptionalGoString(p *byte) *string {
	if p == nil {
		return nil
	}
	s := GoString(p)
	return &s
}
