package generator

import (
	"fmt"
	"strings"
)

// UnknownProgramTypeError is returned when a model type has no Go
// spelling in the position it is used.
type UnknownProgramTypeError struct {
	Decl string
	Type string
}

func (e *UnknownProgramTypeError) Error() string {
	return fmt.Sprintf("%s: no Go mapping for %s", e.Decl, e.Type)
}

// MissingRetainReleasePairError is returned for a handle that lacks its
// Retain or Release function. Generate reports every such handle at once.
type MissingRetainReleasePairError struct {
	Handle  string
	Missing []string
}

func (e *MissingRetainReleasePairError) Error() string {
	return fmt.Sprintf("handle %s: missing %s", e.Handle, strings.Join(e.Missing, " and "))
}
