package parser

import (
	"fmt"
	"strings"
)

// Diagnostic is a single message produced while reading a header.
type Diagnostic struct {
	Line int
	Col  int
	Msg  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Col, d.Msg)
}

// ParseError reports that the header could not be parsed. It carries every
// diagnostic collected before giving up.
type ParseError struct {
	Diagnostics []Diagnostic
}

func (e *ParseError) Error() string {
	switch len(e.Diagnostics) {
	case 0:
		return "parse failed"
	case 1:
		return "parse failed: " + e.Diagnostics[0].String()
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "parse failed with %d errors: %s", len(e.Diagnostics), e.Diagnostics[0])
		return b.String()
	}
}
