package nimpeller

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Callbacks made by purego are never freed, so there is one per kind for the
// whole process. Each dispatches to the function installed by the caller
// holding procMu.
var (
	procMu sync.Mutex

	glOnce     sync.Once
	glCallback uintptr
	glProc     func(name string) uintptr

	vkOnce     sync.Once
	vkCallback uintptr
	vkProc     func(instance unsafe.Pointer, name string) uintptr

	newCallback = purego.NewCallback
)

// ProcAddressCallback returns a C function pointer matching
// ImpellerProcAddressCallback that resolves names with fn. The pointer
// calls fn until done is called. Other callers block until then.
func ProcAddressCallback(fn func(name string) uintptr) (cb uintptr, done func()) {
	glOnce.Do(func() {
		glCallback = newCallback(glProcAddress)
	})

	procMu.Lock()
	glProc = fn

	return glCallback, sync.OnceFunc(func() {
		glProc = nil
		procMu.Unlock()
	})
}

// VulkanProcAddressCallback is ProcAddressCallback for
// ImpellerVulkanProcAddressCallback, which also passes the Vulkan instance.
func VulkanProcAddressCallback(fn func(instance unsafe.Pointer, name string) uintptr) (cb uintptr, done func()) {
	vkOnce.Do(func() {
		vkCallback = newCallback(vkProcAddress)
	})

	procMu.Lock()
	vkProc = fn

	return vkCallback, sync.OnceFunc(func() {
		vkProc = nil
		procMu.Unlock()
	})
}

func glProcAddress(name *byte, _ unsafe.Pointer) uintptr {
	if glProc == nil || name == nil {
		return 0
	}
	return glProc(GoString(name))
}

func vkProcAddress(instance unsafe.Pointer, name *byte, _ unsafe.Pointer) uintptr {
	if vkProc == nil || name == nil {
		return 0
	}
	return vkProc(instance, GoString(name))
}
