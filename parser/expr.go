package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// intType describes the integer type named by a cast.
type intType struct {
	bits   int
	signed bool
}

func (it intType) truncate(v int64) int64 {
	switch it.bits {
	case 8:
		if it.signed {
			return int64(int8(v))
		}
		return int64(uint8(v))
	case 16:
		if it.signed {
			return int64(int16(v))
		}
		return int64(uint16(v))
	case 32:
		if it.signed {
			return int64(int32(v))
		}
		return int64(uint32(v))
	default:
		return v
	}
}

// evaluator computes integer constant expressions as they appear in enum
// initialisers and #if conditions.
type evaluator struct {
	toks []token
	pos  int

	// lookup resolves identifiers; unresolved identifiers are errors.
	lookup func(name string) (int64, bool)

	// castType resolves the type names of a cast. A nil castType disables
	// casts, which is the case for #if conditions.
	castType func(names []string) (intType, bool)
}

func evalConst(toks []token, lookup func(string) (int64, bool), castType func([]string) (intType, bool)) (int64, error) {
	if len(toks) == 0 {
		return 0, fmt.Errorf("empty constant expression")
	}

	ev := &evaluator{toks: toks, lookup: lookup, castType: castType}
	v, err := ev.conditional()
	if err != nil {
		return 0, err
	}
	if ev.pos < len(ev.toks) {
		return 0, fmt.Errorf("unexpected %q in constant expression", ev.toks[ev.pos].text)
	}

	return v, nil
}

func (ev *evaluator) peek() token {
	if ev.pos < len(ev.toks) {
		return ev.toks[ev.pos]
	}
	return token{kind: tokEOF}
}

func (ev *evaluator) accept(punct string) bool {
	if ev.peek().isPunct(punct) {
		ev.pos++
		return true
	}
	return false
}

func (ev *evaluator) conditional() (int64, error) {
	cond, err := ev.binary(1)
	if err != nil {
		return 0, err
	}
	if !ev.accept("?") {
		return cond, nil
	}

	a, err := ev.conditional()
	if err != nil {
		return 0, err
	}
	if !ev.accept(":") {
		return 0, fmt.Errorf("expected ':' in conditional expression")
	}
	b, err := ev.conditional()
	if err != nil {
		return 0, err
	}

	if cond != 0 {
		return a, nil
	}
	return b, nil
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (ev *evaluator) binary(minPrec int) (int64, error) {
	lhs, err := ev.unary()
	if err != nil {
		return 0, err
	}

	for {
		t := ev.peek()
		prec, ok := binaryPrec[t.text]
		if t.kind != tokPunct || !ok || prec < minPrec {
			return lhs, nil
		}
		ev.pos++

		rhs, err := ev.binary(prec + 1)
		if err != nil {
			return 0, err
		}

		lhs, err = applyBinary(t.text, lhs, rhs)
		if err != nil {
			return 0, err
		}
	}
}

func applyBinary(op string, a, b int64) (int64, error) {
	switch op {
	case "||":
		return boolInt(a != 0 || b != 0), nil
	case "&&":
		return boolInt(a != 0 && b != 0), nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "&":
		return a & b, nil
	case "==":
		return boolInt(a == b), nil
	case "!=":
		return boolInt(a != b), nil
	case "<":
		return boolInt(a < b), nil
	case "<=":
		return boolInt(a <= b), nil
	case ">":
		return boolInt(a > b), nil
	case ">=":
		return boolInt(a >= b), nil
	case "<<":
		if b < 0 || b > 63 {
			return 0, fmt.Errorf("shift count %d out of range", b)
		}
		return a << uint(b), nil
	case ">>":
		if b < 0 || b > 63 {
			return 0, fmt.Errorf("shift count %d out of range", b)
		}
		return a >> uint(b), nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/", "%":
		if b == 0 {
			return 0, fmt.Errorf("division by zero in constant expression")
		}
		if op == "/" {
			return a / b, nil
		}
		return a % b, nil
	}

	return 0, fmt.Errorf("unsupported operator %q", op)
}

func (ev *evaluator) unary() (int64, error) {
	t := ev.peek()
	if t.kind == tokPunct {
		switch t.text {
		case "-", "+", "~", "!":
			ev.pos++
			v, err := ev.unary()
			if err != nil {
				return 0, err
			}
			switch t.text {
			case "-":
				return -v, nil
			case "~":
				return ^v, nil
			case "!":
				return boolInt(v == 0), nil
			}
			return v, nil

		case "(":
			if it, n, ok := ev.cast(); ok {
				ev.pos += n
				v, err := ev.unary()
				if err != nil {
					return 0, err
				}
				return it.truncate(v), nil
			}

			ev.pos++
			v, err := ev.conditional()
			if err != nil {
				return 0, err
			}
			if !ev.accept(")") {
				return 0, fmt.Errorf("expected ')' in constant expression")
			}
			return v, nil
		}
	}

	return ev.primary()
}

// cast reports whether a parenthesised type name starts at the current
// position, returning the resolved type and the number of tokens it spans.
func (ev *evaluator) cast() (intType, int, bool) {
	if ev.castType == nil {
		return intType{}, 0, false
	}

	var names []string
	i := ev.pos + 1
	for ; i < len(ev.toks) && ev.toks[i].kind == tokIdent; i++ {
		names = append(names, ev.toks[i].text)
	}
	if len(names) == 0 || i >= len(ev.toks) || !ev.toks[i].isPunct(")") {
		return intType{}, 0, false
	}

	it, ok := ev.castType(names)
	if !ok {
		return intType{}, 0, false
	}

	return it, i - ev.pos + 1, true
}

func (ev *evaluator) primary() (int64, error) {
	t := ev.peek()
	ev.pos++

	switch t.kind {
	case tokNumber:
		return parseIntLiteral(t.text)
	case tokChar:
		return parseCharLiteral(t.text)
	case tokIdent:
		if v, ok := ev.lookup(t.text); ok {
			return v, nil
		}
		return 0, fmt.Errorf("undefined identifier %q in constant expression", t.text)
	case tokEOF:
		return 0, fmt.Errorf("unexpected end of constant expression")
	}

	return 0, fmt.Errorf("unexpected %q in constant expression", t.text)
}

func parseIntLiteral(text string) (int64, error) {
	s := strings.TrimRight(text, "uUlL")
	if s == "" {
		return 0, fmt.Errorf("invalid integer literal %q", text)
	}

	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		base, s = 2, s[2:]
	case len(s) > 1 && s[0] == '0':
		base, s = 8, s[1:]
	}

	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q", text)
	}

	return int64(v), nil
}

func parseCharLiteral(text string) (int64, error) {
	s, err := strconv.Unquote(text)
	if err != nil || len(s) == 0 {
		return 0, fmt.Errorf("invalid character literal %s", text)
	}
	return int64(s[0]), nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
