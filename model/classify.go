package model

import "strings"

// Classify returns the bucket of f. A handle as first parameter makes a
// method; otherwise a handle result and a name ending in New make a
// factory; everything else is global.
func Classify(f *Function) (Class, *Handle) {
	if len(f.Params) > 0 {
		if h, ok := Unwrap(f.Params[0].Type).(*Handle); ok {
			return ClassMethod, h
		}
	}
	if h, ok := Unwrap(f.Return).(*Handle); ok && strings.HasSuffix(f.Name, "New") {
		return ClassFactory, h
	}
	return ClassGlobal, nil
}

func classify(m *Model) {
	for _, f := range m.Functions {
		f.Class, f.Owner = Classify(f)

		switch f.Class {
		case ClassMethod:
			f.Owner.Methods = append(f.Owner.Methods, f)
		case ClassFactory:
			f.Owner.Factories = append(f.Owner.Factories, f)
		default:
			m.Globals = append(m.Globals, f)
		}
	}
}

// bindLifecycle finds <Handle>Retain and <Handle>Release among the methods
// of each handle. Both take exactly the handle.
func bindLifecycle(m *Model) {
	for _, h := range m.Handles {
		for _, f := range h.Methods {
			if len(f.Params) != 1 {
				continue
			}
			switch f.Name {
			case h.Name + "Retain":
				h.Retain = f
			case h.Name + "Release":
				h.Release = f
			}
		}
	}
}
