package did

import (
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/candid/did/internal/token"
	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
	"github.com/wippyai/candid/principal"
)

// ParseValues parses a Candid text argument list such as
// `("alice", record { id = 7 })` against the expected types. A single
// value may omit the parentheses. The result uses the same Go
// representation the decoder produces.
func ParseValues(src string, types []idl.Type) ([]any, error) {
	tokens, err := token.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &valueParser{parser: parser{tokens: tokens}}

	if len(tokens) == 0 {
		if len(types) != 0 {
			return nil, errors.InvalidInput(errors.PhaseParse, "expected "+strconv.Itoa(len(types))+" argument(s), got none")
		}
		return []any{}, nil
	}

	out := make([]any, 0, len(types))
	if tokens[0].Is("(") {
		p.pos++
		for i := 0; !p.accept(")"); i++ {
			if i >= len(types) {
				return nil, p.errorf("too many arguments, expected %d", len(types))
			}
			v, err := p.value(types[i], 0)
			if err != nil {
				return nil, errors.WithPrefix(err, "arg["+strconv.Itoa(i)+"]")
			}
			out = append(out, v)
			if !p.accept(",") {
				if err := p.expect(")"); err != nil {
					return nil, err
				}
				break
			}
		}
	} else {
		if len(types) != 1 {
			return nil, p.errorf("expected %d argument(s) in parentheses", len(types))
		}
		v, err := p.value(types[0], 0)
		if err != nil {
			return nil, errors.WithPrefix(err, "arg[0]")
		}
		out = append(out, v)
	}

	if len(out) != len(types) {
		return nil, p.errorf("expected %d argument(s), got %d", len(types), len(out))
	}
	if t := p.peek(); t != nil {
		return nil, errors.ParseFailed(t.Line, "unexpected %q after arguments", t.Value)
	}
	return out, nil
}

type valueParser struct {
	parser
}

func (p *valueParser) value(t idl.Type, depth int) (any, error) {
	if depth > idl.MaxDepth {
		return nil, p.errorf("value nested deeper than %d", idl.MaxDepth)
	}
	rt := idl.Resolve(t)
	if rt == nil {
		return nil, p.errorf("unresolved type %s", t)
	}

	switch et := rt.(type) {
	case idl.PrimType:
		return p.prim(et)

	case *idl.OptType:
		if p.accept("null") {
			return idl.None(), nil
		}
		p.accept("opt")
		v, err := p.value(et.Elem, depth+1)
		if err != nil {
			return nil, err
		}
		return idl.Some(v), nil

	case *idl.VecType:
		if idl.IsBlob(et) && p.accept("blob") {
			s, err := p.str()
			if err != nil {
				return nil, err
			}
			return []byte(s), nil
		}
		if err := p.keyword("vec"); err != nil {
			return nil, err
		}
		if err := p.expect("{"); err != nil {
			return nil, err
		}
		var elems []any
		for !p.accept("}") {
			v, err := p.value(et.Elem, depth+1)
			if err != nil {
				return nil, errors.WithPrefix(err, "["+strconv.Itoa(len(elems))+"]")
			}
			elems = append(elems, v)
			if !p.accept(";") {
				if err := p.expect("}"); err != nil {
					return nil, err
				}
				break
			}
		}
		if idl.IsBlob(et) {
			raw := make([]byte, len(elems))
			for i, v := range elems {
				raw[i] = v.(uint8)
			}
			return raw, nil
		}
		if elems == nil {
			elems = []any{}
		}
		return elems, nil

	case *idl.RecordType:
		return p.record(et, depth)

	case *idl.VariantType:
		return p.variant(et, depth)

	case *idl.FuncType:
		if err := p.keyword("func"); err != nil {
			return nil, err
		}
		svc, err := p.principalText()
		if err != nil {
			return nil, err
		}
		if err := p.expect("."); err != nil {
			return nil, err
		}
		method, err := p.name()
		if err != nil {
			return nil, err
		}
		return idl.FuncRef{Service: svc, Method: method}, nil

	case *idl.ServiceType:
		if err := p.keyword("service"); err != nil {
			return nil, err
		}
		return p.principalText()
	}
	return nil, errors.Internal(errors.PhaseParse, "unhandled type %T", rt)
}

func (p *valueParser) keyword(kw string) error {
	t := p.peek()
	if t == nil || !t.Is(kw) {
		got := "end of input"
		if t != nil {
			got = strconv.Quote(t.Value)
		}
		return p.errorf("expected %s, got %s", kw, got)
	}
	p.pos++
	return nil
}

func (p *valueParser) str() (string, error) {
	t := p.next()
	if t == nil || t.Type != token.String {
		return "", p.errorf("expected a string literal")
	}
	return t.Value, nil
}

func (p *valueParser) principalText() (principal.Principal, error) {
	line := p.line()
	s, err := p.str()
	if err != nil {
		return principal.Principal{}, err
	}
	pr, err := principal.FromText(s)
	if err != nil {
		return principal.Principal{}, errors.New(errors.PhaseParse, errors.KindInvalidData).
			Cause(err).
			Detail("line %d: invalid principal %q", line, s).
			Build()
	}
	return pr, nil
}

func (p *valueParser) prim(pt idl.PrimType) (any, error) {
	k := pt.Kind()
	switch {
	case k.IsInteger():
		t := p.next()
		if t == nil || t.Type != token.Number {
			return nil, p.errorf("expected %s literal", k)
		}
		n, ok := parseInteger(t.Value)
		if !ok {
			return nil, errors.ParseFailed(t.Line, "invalid %s literal %q", k, t.Value)
		}
		if !idl.InRange(n, k) {
			return nil, errors.Overflow(errors.PhaseParse, nil, n.String(), k.String())
		}
		return idl.NativeInt(n, k), nil

	case k == idl.KindFloat32 || k == idl.KindFloat64:
		t := p.next()
		if t == nil || t.Type != token.Number {
			return nil, p.errorf("expected %s literal", k)
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(t.Value, "_", ""), k.Bits())
		if err != nil {
			return nil, errors.ParseFailed(t.Line, "invalid %s literal %q", k, t.Value)
		}
		if k == idl.KindFloat32 {
			return float32(f), nil
		}
		return f, nil
	}

	switch k {
	case idl.KindNull:
		return nil, p.keyword("null")
	case idl.KindBool:
		switch {
		case p.accept("true"):
			return true, nil
		case p.accept("false"):
			return false, nil
		}
		return nil, p.errorf("expected true or false")
	case idl.KindText:
		s, err := p.str()
		if err != nil {
			return nil, err
		}
		if !utf8.ValidString(s) {
			return nil, errors.InvalidUTF8(errors.PhaseParse, nil, []byte(s))
		}
		return s, nil
	case idl.KindPrincipal:
		if err := p.keyword("principal"); err != nil {
			return nil, err
		}
		return p.principalText()
	case idl.KindReserved:
		return nil, p.skip()
	case idl.KindEmpty:
		return nil, p.errorf("no value inhabits empty")
	}
	return nil, errors.Internal(errors.PhaseParse, "unhandled primitive %s", k)
}

func (p *valueParser) record(rt *idl.RecordType, depth int) (any, error) {
	if err := p.keyword("record"); err != nil {
		return nil, err
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	rec := make(idl.Record, len(rt.Fields))
	next := uint32(0)
	for !p.accept("}") {
		id := next
		if n := p.peekAt(1); n != nil && n.Is("=") {
			var err error
			if id, err = p.label(); err != nil {
				return nil, err
			}
			p.pos++ // '='
		}
		f, ok := rt.Field(id)
		if !ok {
			return nil, p.errorf("record has no field %s", idl.NumField(id, nil).Label())
		}
		if _, dup := rec[id]; dup {
			return nil, p.errorf("field %s given twice", f.Label())
		}
		v, err := p.value(f.Type, depth+1)
		if err != nil {
			return nil, errors.WithPrefix(err, f.Label())
		}
		rec[id] = v
		next = id + 1
		if !p.accept(";") {
			if err := p.expect("}"); err != nil {
				return nil, err
			}
			break
		}
	}
	return rec, nil
}

func (p *valueParser) variant(vt *idl.VariantType, depth int) (any, error) {
	if err := p.keyword("variant"); err != nil {
		return nil, err
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	id, err := p.label()
	if err != nil {
		return nil, err
	}
	c, _, ok := vt.Case(id)
	if !ok {
		return nil, errors.UnknownVariant(errors.PhaseParse, nil, id)
	}
	var v any
	if p.accept("=") {
		if v, err = p.value(c.Type, depth+1); err != nil {
			return nil, errors.WithPrefix(err, c.Label())
		}
	} else if rt := idl.Resolve(c.Type); rt != idl.Null && rt != idl.Reserved {
		return nil, p.errorf("case %s needs a value", c.Label())
	}
	p.accept(";")
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return idl.Variant{Tag: id, Value: v}, nil
}

// label reads a field or case label as its numeric id.
func (p *valueParser) label() (uint32, error) {
	t := p.next()
	if t == nil {
		return 0, p.errorf("expected a label, got end of input")
	}
	switch t.Type {
	case token.Number:
		id, err := strconv.ParseUint(strings.ReplaceAll(t.Value, "_", ""), 10, 32)
		if err != nil {
			return 0, errors.ParseFailed(t.Line, "invalid label %q", t.Value)
		}
		return uint32(id), nil
	case token.Ident, token.String:
		return idl.Hash(t.Value), nil
	}
	return 0, errors.ParseFailed(t.Line, "expected a label, got %q", t.Value)
}

// skip consumes one value of any shape.
func (p *valueParser) skip() error {
	depth := 0
	for {
		t := p.next()
		if t == nil {
			return p.errorf("unexpected end of input")
		}
		switch {
		case t.Is("{"), t.Is("("):
			depth++
		case t.Is("}"), t.Is(")"):
			depth--
		}
		if depth > 0 {
			continue
		}
		// keywords that prefix another token
		if t.Type == token.Ident && (t.Is("opt") || t.Is("principal") || t.Is("blob") || t.Is("service") || t.Is("func")) {
			continue
		}
		if t.Type == token.Ident && (t.Is("vec") || t.Is("record") || t.Is("variant")) {
			continue
		}
		if n := p.peek(); n != nil && n.Is(".") {
			p.pos++
			continue
		}
		return nil
	}
}

func parseInteger(s string) (*big.Int, bool) {
	s = strings.ReplaceAll(s, "_", "")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, s = 16, s[2:]
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, false
	}
	if neg {
		n.Neg(n)
	}
	return n, true
}
