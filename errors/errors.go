package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseSchema    Phase = "schema"    // descriptor construction
	PhaseEncode    Phase = "encode"    // Go values to wire bytes
	PhaseDecode    Phase = "decode"    // wire bytes to Go values
	PhaseCall      Phase = "call"      // stub invocation
	PhaseTransport Phase = "transport" // byte delivery
	PhaseParse     Phase = "parse"     // Candid text parsing
	PhaseServe     Phase = "serve"     // server-side dispatch
)

// Kind categorizes the error
type Kind string

const (
	KindSchema         Kind = "schema"
	KindTypeMismatch   Kind = "type_mismatch"
	KindInternal       Kind = "internal"
	KindUnexpectedEOF  Kind = "unexpected_eof"
	KindUnknownVariant Kind = "unknown_variant"
	KindFieldMissing   Kind = "field_missing"
	KindOverflow       Kind = "overflow"
	KindInvalidData    Kind = "invalid_data"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindLimit          Kind = "limit"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindRejected       Kind = "rejected"
)

// Sentinels for errors.Is. A sentinel has no Phase and matches any
// *Error of the same Kind.
var (
	ErrSchema         = &Error{Kind: KindSchema, Offset: -1}
	ErrTypeMismatch   = &Error{Kind: KindTypeMismatch, Offset: -1}
	ErrInternal       = &Error{Kind: KindInternal, Offset: -1}
	ErrUnexpectedEOF  = &Error{Kind: KindUnexpectedEOF, Offset: -1}
	ErrUnknownVariant = &Error{Kind: KindUnknownVariant, Offset: -1}
	ErrMissingField   = &Error{Kind: KindFieldMissing, Offset: -1}
	ErrRangeOverflow  = &Error{Kind: KindOverflow, Offset: -1}
	ErrInvalidData    = &Error{Kind: KindInvalidData, Offset: -1}
	ErrRejected       = &Error{Kind: KindRejected, Offset: -1}
	ErrLimit          = &Error{Kind: KindLimit, Offset: -1}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	IDLType string
	Detail  string
	Path    []string
	// Offset is the byte offset into the message, or -1 when not applicable.
	Offset int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Offset >= 0 {
		b.WriteString(" (offset ")
		b.WriteString(strconv.Itoa(e.Offset))
		b.WriteByte(')')
	}

	if e.GoType != "" || e.IDLType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.IDLType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", IDL type ")
			b.WriteString(e.IDLType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("IDL type ")
			b.WriteString(e.IDLType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.IDLType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Targets without a Phase
// match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: -1,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// IDLType sets the IDL type name
func (b *Builder) IDLType(t string) *Builder {
	b.err.IDLType = t
	return b
}

// Offset sets the byte offset
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Schema creates a malformed-descriptor error
func Schema(detail string, args ...any) *Error {
	return New(PhaseSchema, KindSchema).Detail(detail, args...).Build()
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, idlType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		IDLType: idlType,
		Offset:  -1,
	}
}

// Internal creates an invariant-violation error. These indicate a bug, not
// bad input.
func Internal(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindInternal).Detail(detail, args...).Build()
}

// UnexpectedEOF creates a truncated-input error at the given offset
func UnexpectedEOF(path []string, offset int, need int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnexpectedEOF,
		Path:   path,
		Offset: offset,
		Detail: fmt.Sprintf("need %d more byte(s)", need),
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
		Offset: -1,
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, field string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %s not found", field),
		Offset: -1,
	}
}

// UnknownVariant creates an unknown variant tag error
func UnknownVariant(phase Phase, path []string, tag uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownVariant,
		Path:   path,
		Detail: fmt.Sprintf("variant tag %d is not declared by the expected type", tag),
		Value:  tag,
		Offset: -1,
	}
}

// Overflow creates a range overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOverflow,
		Path:    path,
		IDLType: target,
		Detail:  fmt.Sprintf("value %v overflows %s", value, target),
		Value:   value,
		Offset:  -1,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
		Offset: -1,
	}
}

// Limit creates a safety-limit error
func Limit(phase Phase, path []string, what string, got, max int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLimit,
		Path:   path,
		Detail: fmt.Sprintf("%s %d exceeds maximum %d", what, got, max),
		Value:  got,
		Offset: -1,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Offset: -1,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
		Offset: -1,
	}
}

// Rejected creates an error for a call the remote side refused
func Rejected(method, reason string) *Error {
	return &Error{
		Phase:  PhaseServe,
		Kind:   KindRejected,
		Detail: fmt.Sprintf("%s: %s", method, reason),
		Offset: -1,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
		Offset: -1,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(line int, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("line %d: %s", line, fmt.Sprintf(detail, args...)),
		Offset: -1,
	}
}

// WithPrefix returns a copy of err with prefix prepended to its path.
// Non-structured errors are returned unchanged.
func WithPrefix(err error, prefix ...string) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Path = append(append([]string(nil), prefix...), e.Path...)
	return &cp
}
