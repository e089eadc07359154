package did

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/candid/did/internal/token"
	"github.com/wippyai/candid/errors"
	"github.com/wippyai/candid/idl"
)

// Program is a parsed .did file.
type Program struct {
	Env *idl.Env
	// Service is the main actor, or nil when the file declares none.
	Service *idl.ServiceType
	// Init holds the arguments of a service class (service : (A) -> {...}).
	Init []idl.Type
}

// Parse parses Candid interface text.
func Parse(src string) (*Program, error) {
	tokens, err := token.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{
		tokens: tokens,
		env:    idl.NewEnv(),
		defs:   make(map[string]*definition),
	}
	return p.program()
}

// MustParse is like Parse but panics on error.
func MustParse(src string) *Program {
	prog, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return prog
}

// Type returns the definition of a named type.
func (p *Program) Type(name string) (idl.Type, bool) {
	ref, ok := p.Env.Ref(name)
	if !ok {
		return nil, false
	}
	return ref, true
}

type definition struct {
	ref        *idl.RefType
	start, end int
	state      int // 0 pending, 1 in progress, 2 done
}

type parser struct {
	env    *idl.Env
	defs   map[string]*definition
	tokens []token.Token
	order  []string
	pos    int
}

func (p *parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *parser) peekAt(n int) *token.Token {
	if p.pos+n >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos+n]
}

func (p *parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) line() int {
	if t := p.peek(); t != nil {
		return t.Line
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Line
	}
	return 1
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.ParseFailed(p.line(), format, args...)
}

func (p *parser) expect(s string) error {
	t := p.next()
	if t == nil {
		return p.errorf("expected %q, got end of input", s)
	}
	if !t.Is(s) {
		return errors.ParseFailed(t.Line, "expected %q, got %q", s, t.Value)
	}
	return nil
}

func (p *parser) accept(s string) bool {
	if t := p.peek(); t != nil && t.Is(s) {
		p.pos++
		return true
	}
	return false
}

// name reads an identifier or a quoted label.
func (p *parser) name() (string, error) {
	t := p.next()
	if t == nil {
		return "", p.errorf("expected a name, got end of input")
	}
	if t.Type != token.Ident && t.Type != token.String {
		return "", errors.ParseFailed(t.Line, "expected a name, got %q", t.Value)
	}
	return t.Value, nil
}

func (p *parser) program() (*Program, error) {
	actorAt := -1
	for p.peek() != nil {
		switch t := p.peek(); {
		case t.Is(";"):
			p.pos++
		case t.Is("type"):
			p.pos++
			name, err := p.name()
			if err != nil {
				return nil, err
			}
			if err := p.expect("="); err != nil {
				return nil, err
			}
			if _, dup := p.defs[name]; dup {
				return nil, errors.ParseFailed(t.Line, "type %q defined twice", name)
			}
			start := p.pos
			if err := p.skipUntilSemicolon(); err != nil {
				return nil, err
			}
			p.defs[name] = &definition{start: start, end: p.pos}
			p.order = append(p.order, name)
		case t.Is("import"):
			return nil, errors.ParseFailed(t.Line, "import is not supported")
		case t.Is("service"):
			if actorAt >= 0 {
				return nil, errors.ParseFailed(t.Line, "more than one service declared")
			}
			actorAt = p.pos
			if err := p.skipUntilSemicolon(); err != nil {
				return nil, err
			}
		default:
			return nil, errors.ParseFailed(t.Line, "unexpected %q at top level", t.Value)
		}
	}

	for _, name := range p.order {
		ref, err := p.env.Declare(name)
		if err != nil {
			return nil, err
		}
		p.defs[name].ref = ref
	}
	for _, name := range p.order {
		if err := p.define(name); err != nil {
			return nil, err
		}
	}
	if err := p.env.Validate(); err != nil {
		return nil, err
	}

	prog := &Program{Env: p.env}
	if actorAt >= 0 {
		p.pos = actorAt
		if err := p.actor(prog); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

// skipUntilSemicolon advances past the next top-level ';' or to the end.
func (p *parser) skipUntilSemicolon() error {
	depth := 0
	for {
		t := p.next()
		if t == nil {
			if depth != 0 {
				return p.errorf("unbalanced brackets")
			}
			return nil
		}
		switch {
		case t.Is("{"), t.Is("("):
			depth++
		case t.Is("}"), t.Is(")"):
			depth--
			if depth < 0 {
				return errors.ParseFailed(t.Line, "unbalanced %q", t.Value)
			}
		case t.Is(";") && depth == 0:
			return nil
		}
	}
}

// define parses the body of a named definition, on demand.
func (p *parser) define(name string) error {
	d := p.defs[name]
	switch d.state {
	case 2:
		return nil
	case 1:
		// only a method signature naming its enclosing type re-enters here
		return errors.New(errors.PhaseParse, errors.KindSchema).
			Detail("type %q is used as a method signature inside its own definition (cycle)", name).
			Build()
	}
	d.state = 1
	saved := p.pos
	p.pos = d.start
	t, err := p.datatype()
	if err != nil {
		return err
	}
	if p.pos < d.end && !p.tokens[p.pos].Is(";") {
		return errors.ParseFailed(p.tokens[p.pos].Line, "unexpected %q after type", p.tokens[p.pos].Value)
	}
	p.pos = saved
	if err := p.env.Define(d.ref, t); err != nil {
		return err
	}
	d.state = 2
	return nil
}

func (p *parser) datatype() (idl.Type, error) {
	t := p.next()
	if t == nil {
		return nil, p.errorf("expected a type, got end of input")
	}
	if t.Type != token.Ident {
		return nil, errors.ParseFailed(t.Line, "expected a type, got %q", t.Value)
	}

	if prim, ok := idl.PrimByName(t.Value); ok {
		return prim, nil
	}
	switch t.Value {
	case "blob":
		return idl.Blob(), nil
	case "opt":
		elem, err := p.datatype()
		if err != nil {
			return nil, err
		}
		return idl.Opt(elem), nil
	case "vec":
		elem, err := p.datatype()
		if err != nil {
			return nil, err
		}
		return idl.Vec(elem), nil
	case "record":
		fields, err := p.fields(false)
		if err != nil {
			return nil, err
		}
		r, err := idl.NewRecord(fields...)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "variant":
		fields, err := p.fields(true)
		if err != nil {
			return nil, err
		}
		v, err := idl.NewVariant(fields...)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "func":
		f, err := p.functype()
		if err != nil {
			return nil, err
		}
		return f, nil
	case "service":
		s, err := p.actortype()
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	d, ok := p.defs[t.Value]
	if !ok {
		return nil, errors.ParseFailed(t.Line, "undefined type %q", t.Value)
	}
	return d.ref, nil
}

func (p *parser) fields(variant bool) ([]idl.Field, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var fields []idl.Field
	next := uint32(0)
	for !p.accept("}") {
		f, err := p.field(variant, next)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		next = f.ID + 1
		if !p.accept(";") {
			if err := p.expect("}"); err != nil {
				return nil, err
			}
			break
		}
	}
	return fields, nil
}

func (p *parser) field(variant bool, next uint32) (idl.Field, error) {
	t := p.peek()
	if t == nil {
		return idl.Field{}, p.errorf("expected a field, got end of input")
	}
	labelled := p.peekAt(1) != nil && p.peekAt(1).Is(":")

	switch {
	case t.Type == token.Number && (labelled || variant):
		p.pos++
		id, err := strconv.ParseUint(strings.ReplaceAll(t.Value, "_", ""), 0, 32)
		if err != nil {
			return idl.Field{}, errors.ParseFailed(t.Line, "invalid field id %q", t.Value)
		}
		ft, err := p.fieldType(labelled)
		if err != nil {
			return idl.Field{}, err
		}
		return idl.NumField(uint32(id), ft), nil

	case (t.Type == token.Ident || t.Type == token.String) && (labelled || variant):
		p.pos++
		ft, err := p.fieldType(labelled)
		if err != nil {
			return idl.Field{}, err
		}
		return idl.NewField(t.Value, ft), nil
	}

	ft, err := p.datatype()
	if err != nil {
		return idl.Field{}, err
	}
	return idl.NumField(next, ft), nil
}

func (p *parser) fieldType(labelled bool) (idl.Type, error) {
	if !labelled {
		return idl.Null, nil
	}
	p.pos++ // ':'
	return p.datatype()
}

func (p *parser) tuple() ([]idl.Type, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var out []idl.Type
	for !p.accept(")") {
		// argument names are documentation only
		if t, n := p.peek(), p.peekAt(1); t != nil && n != nil && n.Is(":") && (t.Type == token.Ident || t.Type == token.String) {
			p.pos += 2
		}
		at, err := p.datatype()
		if err != nil {
			return nil, err
		}
		out = append(out, at)
		if !p.accept(",") {
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	return out, nil
}

func (p *parser) functype() (*idl.FuncType, error) {
	args, err := p.tuple()
	if err != nil {
		return nil, err
	}
	if err := p.expect("->"); err != nil {
		return nil, err
	}
	results, err := p.tuple()
	if err != nil {
		return nil, err
	}
	var modes idl.Mode
	for {
		t := p.peek()
		if t == nil || t.Type != token.Ident {
			break
		}
		m, ok := idl.ParseMode(t.Value)
		if !ok || m == 0 {
			break
		}
		p.pos++
		modes |= m
	}
	f, err := idl.NewFunc(args, results, modes)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindSchema, err, fmt.Sprintf("line %d", p.line()))
	}
	return f, nil
}

func (p *parser) actortype() (*idl.ServiceType, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var methods []idl.Method
	for !p.accept("}") {
		name, err := p.name()
		if err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		ft, err := p.methodType()
		if err != nil {
			return nil, err
		}
		methods = append(methods, idl.Method{Name: name, Type: ft})
		if !p.accept(";") {
			if err := p.expect("}"); err != nil {
				return nil, err
			}
			break
		}
	}
	return idl.NewService(methods...)
}

// methodType parses an inline signature or a name bound to a func type.
func (p *parser) methodType() (*idl.FuncType, error) {
	t := p.peek()
	if t != nil && t.Is("(") {
		return p.functype()
	}
	if t == nil || t.Type != token.Ident {
		return nil, p.errorf("expected a method signature")
	}
	p.pos++
	d, ok := p.defs[t.Value]
	if !ok {
		return nil, errors.ParseFailed(t.Line, "undefined type %q", t.Value)
	}
	if err := p.define(t.Value); err != nil {
		return nil, err
	}
	ft, ok := idl.Resolve(d.ref).(*idl.FuncType)
	if !ok {
		return nil, errors.ParseFailed(t.Line, "%q is not a function type", t.Value)
	}
	return ft, nil
}

func (p *parser) actor(prog *Program) error {
	if err := p.expect("service"); err != nil {
		return err
	}
	if t := p.peek(); t != nil && t.Type == token.Ident {
		p.pos++ // actor name
	}
	if err := p.expect(":"); err != nil {
		return err
	}
	if t := p.peek(); t != nil && t.Is("(") {
		init, err := p.tuple()
		if err != nil {
			return err
		}
		if err := p.expect("->"); err != nil {
			return err
		}
		prog.Init = init
	}

	t := p.peek()
	if t != nil && t.Is("{") {
		svc, err := p.actortype()
		if err != nil {
			return err
		}
		prog.Service = svc
		return nil
	}
	if t == nil || t.Type != token.Ident {
		return p.errorf("expected a service type")
	}
	p.pos++
	d, ok := p.defs[t.Value]
	if !ok {
		return errors.ParseFailed(t.Line, "undefined type %q", t.Value)
	}
	svc, ok := idl.Resolve(d.ref).(*idl.ServiceType)
	if !ok {
		return errors.ParseFailed(t.Line, "%q is not a service type", t.Value)
	}
	prog.Service = svc
	return nil
}
