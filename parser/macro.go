package parser

import (
	"fmt"
	"strconv"
	"strings"
)

type macro struct {
	name     string
	function bool
	params   []string
	variadic bool
	body     []token
}

type condState struct {
	active       bool // this branch is being emitted
	taken        bool // some branch of this group was already emitted
	parentActive bool
}

// preprocessor is the small subset of the C preprocessor a machine-written
// header needs: object and function-like defines, #undef and conditional
// groups. Includes are stripped before this runs.
type preprocessor struct {
	macros map[string]*macro
	conds  []condState
	out    []token
	diags  []Diagnostic
}

func newPreprocessor() *preprocessor {
	return &preprocessor{
		macros: map[string]*macro{
			"__STDC__": {name: "__STDC__", body: []token{{kind: tokNumber, text: "1"}}},
		},
	}
}

func (pp *preprocessor) errorf(t token, format string, args ...any) {
	pp.diags = append(pp.diags, Diagnostic{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)})
}

func (pp *preprocessor) active() bool {
	if len(pp.conds) == 0 {
		return true
	}
	return pp.conds[len(pp.conds)-1].active
}

// run preprocesses one chunk of source and appends the expanded tokens to
// pp.out. Text between directives is expanded with the macros defined at
// that point.
func (pp *preprocessor) run(src string) {
	toks, diags := tokenize(src)
	pp.diags = append(pp.diags, diags...)

	var pending []token
	flush := func() {
		if len(pending) == 0 {
			return
		}
		pp.out = append(pp.out, pp.expand(pending, nil)...)
		pending = pending[:0]
	}

	for i := 0; i < len(toks); {
		t := toks[i]
		if t.bol && t.isPunct("#") {
			j := i + 1
			for j < len(toks) && !toks[j].bol {
				j++
			}
			flush()
			pp.directive(t, toks[i+1:j])
			i = j
			continue
		}

		if pp.active() {
			pending = append(pending, t)
		}
		i++
	}
	flush()
}

func (pp *preprocessor) directive(hash token, line []token) {
	if len(line) == 0 {
		return
	}

	name := line[0].text
	args := line[1:]

	switch name {
	case "ifdef", "ifndef":
		defined := false
		if len(args) > 0 {
			_, defined = pp.macros[args[0].text]
		} else if pp.active() {
			pp.errorf(hash, "#%s without a macro name", name)
		}
		cond := defined
		if name == "ifndef" {
			cond = !defined
		}
		pp.pushCond(cond)

	case "if":
		pp.pushCond(pp.active() && pp.evalCondition(hash, args))

	case "elif":
		if len(pp.conds) == 0 {
			pp.errorf(hash, "#elif without #if")
			return
		}
		c := &pp.conds[len(pp.conds)-1]
		if c.taken || !c.parentActive {
			c.active = false
			return
		}
		c.active = pp.evalCondition(hash, args)
		c.taken = c.active

	case "else":
		if len(pp.conds) == 0 {
			pp.errorf(hash, "#else without #if")
			return
		}
		c := &pp.conds[len(pp.conds)-1]
		c.active = c.parentActive && !c.taken
		c.taken = true

	case "endif":
		if len(pp.conds) == 0 {
			pp.errorf(hash, "#endif without #if")
			return
		}
		pp.conds = pp.conds[:len(pp.conds)-1]

	default:
		if !pp.active() {
			return
		}
		switch name {
		case "define":
			pp.define(hash, args)
		case "undef":
			if len(args) > 0 {
				delete(pp.macros, args[0].text)
			}
		case "error":
			pp.errorf(hash, "#error %s", joinTokens(args))
		case "include", "pragma", "warning", "line", "ident":
			// Ignored.
		default:
			pp.errorf(hash, "unsupported directive #%s", name)
		}
	}
}

func (pp *preprocessor) pushCond(cond bool) {
	parent := pp.active()
	pp.conds = append(pp.conds, condState{
		active:       parent && cond,
		taken:        parent && cond,
		parentActive: parent,
	})
}

func (pp *preprocessor) define(hash token, args []token) {
	if len(args) == 0 || args[0].kind != tokIdent {
		pp.errorf(hash, "#define without a macro name")
		return
	}

	m := &macro{name: args[0].text}
	rest := args[1:]

	// A function-like macro has its "(" immediately after the name.
	if len(rest) > 0 && rest[0].isPunct("(") && rest[0].line == args[0].line && rest[0].col == args[0].col+len(args[0].text) {
		m.function = true
		i := 1
		for ; i < len(rest) && !rest[i].isPunct(")"); i++ {
			switch {
			case rest[i].isPunct(","):
			case rest[i].isPunct("..."):
				m.variadic = true
				m.params = append(m.params, "__VA_ARGS__")
			case rest[i].kind == tokIdent:
				m.params = append(m.params, rest[i].text)
			default:
				pp.errorf(rest[i], "unexpected %q in macro parameter list", rest[i].text)
				return
			}
		}
		if i >= len(rest) {
			pp.errorf(hash, "unterminated parameter list for macro %s", m.name)
			return
		}
		rest = rest[i+1:]
	}

	m.body = make([]token, len(rest))
	for i, t := range rest {
		t.bol = false
		m.body[i] = t
	}
	pp.macros[m.name] = m
}

func (pp *preprocessor) evalCondition(hash token, args []token) bool {
	// Resolve defined(X) before expansion so X itself is not expanded.
	var resolved []token
	for i := 0; i < len(args); i++ {
		t := args[i]
		if t.kind != tokIdent || t.text != "defined" {
			resolved = append(resolved, t)
			continue
		}

		var name string
		switch {
		case i+3 < len(args) && args[i+1].isPunct("(") && args[i+3].isPunct(")"):
			name = args[i+2].text
			i += 3
		case i+1 < len(args) && args[i+1].kind == tokIdent:
			name = args[i+1].text
			i++
		default:
			pp.errorf(t, "malformed defined() in #if")
			return false
		}

		_, ok := pp.macros[name]
		resolved = append(resolved, token{kind: tokNumber, text: strconv.FormatInt(boolInt(ok), 10), line: t.line, col: t.col})
	}

	expanded := pp.expand(resolved, nil)
	v, err := evalConst(expanded, func(string) (int64, bool) {
		// Identifiers left after expansion evaluate to zero.
		return 0, true
	}, nil)
	if err != nil {
		pp.errorf(hash, "invalid #if condition: %v", err)
		return false
	}

	return v != 0
}

// expand performs macro replacement on toks. Names in disabled are being
// expanded further up and are painted so they are never expanded again.
func (pp *preprocessor) expand(toks []token, disabled map[string]bool) []token {
	var out []token

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tokIdent || t.noExpand {
			out = append(out, t)
			continue
		}

		m, ok := pp.macros[t.text]
		if !ok {
			out = append(out, t)
			continue
		}
		if disabled[t.text] {
			t.noExpand = true
			out = append(out, t)
			continue
		}

		var body []token
		if m.function {
			if i+1 >= len(toks) || !toks[i+1].isPunct("(") {
				out = append(out, t)
				continue
			}
			args, end, ok := collectArgs(toks, i+1)
			if !ok {
				pp.errorf(t, "unterminated invocation of macro %s", m.name)
				out = append(out, t)
				continue
			}
			body = pp.substitute(t, m, args, disabled)
			i = end
		} else {
			body = pp.substitute(t, m, nil, disabled)
		}

		inner := make(map[string]bool, len(disabled)+1)
		for k := range disabled {
			inner[k] = true
		}
		inner[m.name] = true

		for _, bt := range pp.expand(body, inner) {
			bt.line, bt.col = t.line, t.col
			out = append(out, bt)
		}
	}

	return out
}

// collectArgs gathers the comma separated arguments of a macro invocation
// whose "(" is at toks[open]. It returns the index of the closing ")".
func collectArgs(toks []token, open int) ([][]token, int, bool) {
	var args [][]token
	var cur []token
	depth := 0

	for i := open + 1; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			if depth == 0 {
				if len(args) > 0 || len(cur) > 0 {
					args = append(args, cur)
				}
				return args, i, true
			}
			depth--
		case t.isPunct(",") && depth == 0:
			args = append(args, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}

	return nil, 0, false
}

func (pp *preprocessor) substitute(at token, m *macro, args [][]token, disabled map[string]bool) []token {
	if m.function {
		if len(args) == 0 && len(m.params) == 1 {
			args = [][]token{nil}
		}
		if m.variadic && len(args) == len(m.params)-1 {
			args = append(args, nil)
		}
		if m.variadic && len(args) > len(m.params) {
			fixed := len(m.params) - 1
			var va []token
			for i, a := range args[fixed:] {
				if i > 0 {
					va = append(va, token{kind: tokPunct, text: ","})
				}
				va = append(va, a...)
			}
			args = append(args[:fixed:fixed], va)
		}
		if len(args) != len(m.params) && !(len(m.params) == 0 && len(args) == 0) {
			pp.errorf(at, "macro %s expects %d arguments, got %d", m.name, len(m.params), len(args))
			return nil
		}
	}

	param := func(t token) int {
		if !m.function || t.kind != tokIdent {
			return -1
		}
		for i, p := range m.params {
			if p == t.text {
				return i
			}
		}
		return -1
	}

	var out []token
	for i := 0; i < len(m.body); i++ {
		t := m.body[i]

		// Stringizing.
		if m.function && t.isPunct("#") && i+1 < len(m.body) {
			if p := param(m.body[i+1]); p >= 0 {
				out = append(out, token{kind: tokString, text: strconv.Quote(joinTokens(args[p]))})
				i++
				continue
			}
		}

		// Token pasting.
		if t.isPunct("##") && len(out) > 0 && i+1 < len(m.body) {
			next := m.body[i+1]
			var rhs []token
			if p := param(next); p >= 0 {
				rhs = args[p]
			} else {
				rhs = []token{next}
			}
			i++

			if len(rhs) == 0 {
				continue
			}
			lhs := out[len(out)-1]
			pasted, diags := tokenize(lhs.text + rhs[0].text)
			if len(diags) > 0 || len(pasted) != 1 {
				pp.errorf(at, "pasting %q and %q does not give a valid token", lhs.text, rhs[0].text)
				continue
			}
			pasted[0].bol = false
			out[len(out)-1] = pasted[0]
			out = append(out, rhs[1:]...)
			continue
		}

		if p := param(t); p >= 0 {
			// Operands of ## are substituted unexpanded.
			if i+1 < len(m.body) && m.body[i+1].isPunct("##") {
				out = append(out, args[p]...)
				continue
			}
			out = append(out, pp.expand(args[p], disabled)...)
			continue
		}

		out = append(out, t)
	}

	return out
}

func joinTokens(toks []token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}
