package nimpeller

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
)

var ErrVersionMismatch = errors.New("impeller library version mismatch")

// Binder binds the symbols of a generated package against an open library.
type Binder func(lib uintptr) error

var (
	mu      sync.Mutex
	binders []Binder
	lib     uintptr

	openLib  = openLibrary
	closeLib = closeLibrary
)

// RegisterBinder adds a binder run by Load. Generated packages call it from
// init.
func RegisterBinder(b Binder) {
	mu.Lock()
	defer mu.Unlock()

	binders = append(binders, b)
}

// LibraryName returns the file name of the Impeller library for the
// current platform.
func LibraryName() string {
	switch runtime.GOOS {
	case "darwin", "ios":
		return "libimpeller.dylib"
	case "windows":
		return "impeller.dll"
	default:
		return "libimpeller.so"
	}
}

// Load opens the Impeller library found in dir and binds every registered
// package. An empty dir leaves the lookup to the system loader.
func Load(dir string) error {
	path := LibraryName()
	if dir != "" {
		path = filepath.Join(dir, path)
	}
	return LoadFile(path)
}

// LoadFile opens the library at path and binds every registered package.
func LoadFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if lib != 0 {
		return nil
	}

	h, err := openLib(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	// A failed binder leaves the library unloaded so Load can be retried.
	if err := bindAll(h); err != nil {
		if cerr := closeLib(h); cerr != nil {
			return errors.Join(err, fmt.Errorf("close %s: %w", path, cerr))
		}
		return err
	}
	lib = h
	return nil
}

func bindAll(h uintptr) error {
	for _, b := range binders {
		if err := b(h); err != nil {
			return err
		}
	}
	return nil
}

// Bind looks up name in lib and stores a Go function calling it in fptr,
// which must be a pointer to a func variable.
func Bind(fptr any, lib uintptr, name string) (err error) {
	sym, err := openSymbol(lib, name)
	if err != nil {
		return fmt.Errorf("symbol %s: %w", name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bind %s: %v", name, r)
		}
	}()
	registerFunc(fptr, sym)

	return nil
}

// CheckVersion compares the version reported by the library with the one
// the bindings were generated for.
func CheckVersion(got, want uint32) error {
	if got != want {
		return fmt.Errorf("%w: library %s, bindings %s", ErrVersionMismatch, FormatVersion(got), FormatVersion(want))
	}
	return nil
}

// FormatVersion renders a packed variant.major.minor.patch version.
func FormatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", v>>29, (v>>22)&0x7F, (v>>12)&0x3FF, v&0xFFF)
}
