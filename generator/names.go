package generator

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"github.com/golang-cz/textcase"
)

// locals are identifiers the generated wrappers declare or refer to.
var locals = map[string]bool{
	"ret":       true,
	"native":    true,
	"nimpeller": true,
	"runtime":   true,
	"unsafe":    true,
}

// predeclared identifiers a parameter must not shadow inside a wrapper.
var predeclared = map[string]bool{
	"string": true, "byte": true, "bool": true, "error": true, "any": true,
	"int": true, "uint": true, "uintptr": true, "len": true, "cap": true,
	"new": true, "make": true, "nil": true, "true": true, "false": true,
	"copy": true, "append": true, "panic": true, "min": true, "max": true,
}

// fieldName returns the exported Go name of a struct member.
func fieldName(name string) string {
	return textcase.PascalCase(name)
}

// paramName returns the Go name of a parameter, moved out of the way of
// keywords, predeclared identifiers and the receiver.
func paramName(name, receiver string) string {
	n := textcase.CamelCase(name)
	if n == "" {
		n = "arg"
	}
	if token.IsKeyword(n) || predeclared[n] || locals[n] || n == receiver {
		n += "Arg"
	}
	return n
}

// enumConstName drops the k prefix of an enumerator: kImpellerFillTypeOdd
// becomes ImpellerFillTypeOdd.
func enumConstName(name string) string {
	if len(name) > 1 && name[0] == 'k' && unicode.IsUpper(rune(name[1])) {
		return name[1:]
	}
	return name
}

// lifecycleName is the unexported type implementing nimpeller.Lifecycle for
// a handle.
func lifecycleName(handle string) string {
	return lowerFirst(handle) + "Lifecycle"
}

// receiverName builds a short receiver from the initials of the handle name
// without its prefix: ImpellerDisplayListBuilder becomes dlb.
func receiverName(handle, prefix string) string {
	short := strings.TrimPrefix(handle, prefix)
	if short == "" {
		short = handle
	}

	var b strings.Builder
	for i, r := range short {
		if i == 0 || unicode.IsUpper(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}

	n := b.String()
	if token.IsKeyword(n) || predeclared[n] || locals[n] {
		n += "h"
	}
	return n
}

// methodName strips the owning handle from a method name. Functions that
// do not start with the handle only lose the library prefix.
func methodName(fn, handle, prefix string) string {
	if rest, ok := strings.CutPrefix(fn, handle); ok && rest != "" {
		return rest
	}
	if rest, ok := strings.CutPrefix(fn, prefix); ok && rest != "" {
		return rest
	}
	return fn
}

// factoryName turns ImpellerPaintNew into NewImpellerPaint and
// ImpellerContextCreateOpenGLESNew into NewImpellerContextOpenGLES.
func factoryName(fn, handle, prefix string) string {
	rest, ok := strings.CutPrefix(fn, handle)
	if !ok {
		rest = strings.TrimPrefix(fn, prefix)
	}
	rest = strings.TrimSuffix(rest, "New")
	rest = strings.TrimPrefix(rest, "Create")
	return "New" + handle + rest
}

// uniqueName returns name, or name with the first free number appended, and
// marks the result as used.
func uniqueName(name string, used map[string]bool) string {
	n := name
	for i := 2; used[n]; i++ {
		n = name + strconv.Itoa(i)
	}
	used[n] = true
	return n
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
