package model

import "fmt"

// UnknownTypeError reports a C type construct that has no mapping rule.
type UnknownTypeError struct {
	Decl   string
	Type   string
	Reason string
}

func (e *UnknownTypeError) Error() string {
	msg := fmt.Sprintf("unknown type %s", e.Type)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Decl != "" {
		msg = e.Decl + ": " + msg
	}
	return msg
}
