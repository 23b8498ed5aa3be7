package parser

import (
	"fmt"
	"regexp"
)

// Names of the synthetic enum appended to every header. Its only member
// carries the value of the version macro out of the preprocessor.
const (
	VersionEnum   = "NImpellerParser"
	VersionMember = "ImpellerVersion"
)

// Annotation arguments the nullability macros are rewritten to.
const (
	AnnotateNullable = "nullable"
	AnnotateNotNull  = "notnull"
)

// systemTypes stands in for the standard headers the input includes.
const systemTypes = `
typedef unsigned char       uint8_t;
typedef signed char         int8_t;
typedef unsigned short      uint16_t;
typedef signed short        int16_t;
typedef unsigned int        uint32_t;
typedef signed int          int32_t;
typedef unsigned long long  uint64_t;
typedef signed long long    int64_t;
typedef unsigned long long  size_t;
typedef unsigned long long  uintptr_t;
typedef int                 bool;
`

var includeRe = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include\b.*$`)

// Options controls the text level rewrites applied before parsing.
type Options struct {
	NullableMacro string
	NonNullMacro  string
	VersionMacro  string
}

// Option configures Parse.
type Option func(*Options)

// WithNullabilityMacros sets the macro names marking nullable and not-null
// declarations.
func WithNullabilityMacros(nullable, nonNull string) Option {
	return func(o *Options) {
		if nullable != "" {
			o.NullableMacro = nullable
		}
		if nonNull != "" {
			o.NonNullMacro = nonNull
		}
	}
}

// WithVersionMacro sets the macro holding the ABI version.
func WithVersionMacro(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.VersionMacro = name
		}
	}
}

func defaultOptions() Options {
	return Options{
		NullableMacro: "IMPELLER_NULLABLE",
		NonNullMacro:  "IMPELLER_NONNULL",
		VersionMacro:  "IMPELLER_VERSION",
	}
}

// Preprocess applies the text level rewrites: it strips includes, turns the
// nullability macros into annotate attributes the parser keeps, and appends
// the enum exposing the version macro.
func Preprocess(content string, opts Options) string {
	content = includeRe.ReplaceAllString(content, "")
	content = rewriteDefine(content, opts.NullableMacro, AnnotateNullable)
	content = rewriteDefine(content, opts.NonNullMacro, AnnotateNotNull)

	content += fmt.Sprintf("\ntypedef enum %s {\n  %s = %s\n} %s;\n",
		VersionEnum, VersionMember, opts.VersionMacro, VersionEnum)

	return content
}

func rewriteDefine(content, name, annotation string) string {
	re := regexp.MustCompile(`(?m)^[ \t]*#[ \t]*define[ \t]+` + regexp.QuoteMeta(name) + `\b.*$`)
	return re.ReplaceAllString(content, fmt.Sprintf(`#define %s __attribute__((annotate("%s")))`, name, annotation))
}
