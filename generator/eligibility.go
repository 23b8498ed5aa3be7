package generator

import "fmt"

// Reason explains why a function gets no safe wrapper.
type Reason int

const (
	ReasonManual Reason = iota + 1
	ReasonGenericData
	ReasonFunctionPointer
	ReasonIndirection
	ReasonHandleIndirection
	ReasonPointerResult
	ReasonReservedName
)

func (r Reason) String() string {
	switch r {
	case ReasonManual:
		return "listed for manual interop"
	case ReasonGenericData:
		return "generic data pointer"
	case ReasonFunctionPointer:
		return "function pointer"
	case ReasonIndirection:
		return "multi-level pointer"
	case ReasonHandleIndirection:
		return "handle behind a pointer"
	case ReasonPointerResult:
		return "pointer result"
	case ReasonReservedName:
		return "name collides with a generated name"
	default:
		return "eligible"
	}
}

// Eligibility is the outcome of checking a function for automatic wrapping.
// The zero value is eligible. Detail names the parameter or Go name
// concerned.
type Eligibility struct {
	Reason Reason
	Detail string
}

func (e Eligibility) Eligible() bool {
	return e.Reason == 0
}

func (e Eligibility) String() string {
	if e.Detail == "" {
		return e.Reason.String()
	}
	return fmt.Sprintf("%s (%s)", e.Reason, e.Detail)
}

func ineligible(r Reason, detail string) Eligibility {
	return Eligibility{Reason: r, Detail: detail}
}

// Ineligible is a warning for a function left to manual interop. Its raw
// binding is still generated.
type Ineligible struct {
	Function string
	Handle   string
	Eligibility
}

func (i Ineligible) Error() string {
	return fmt.Sprintf("%s: no safe wrapper: %s", i.Function, i.Eligibility)
}
