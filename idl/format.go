package idl

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/wippyai/candid/principal"
)

// Format renders v as a Candid text value, using t for labels.
func Format(v any, t Type) string {
	var b strings.Builder
	writeValue(&b, v, t, 0)
	return b.String()
}

// FormatArgs renders a value list as a parenthesized Candid argument list.
func FormatArgs(vals []any, types []Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		var t Type = Reserved
		if i < len(types) {
			t = types[i]
		}
		writeValue(&b, v, t, 0)
	}
	b.WriteByte(')')
	return b.String()
}

func writeValue(b *strings.Builder, v any, t Type, depth int) {
	if depth > MaxDepth {
		b.WriteString("...")
		return
	}
	rt := Resolve(t)
	if rt == nil {
		rt = Reserved
	}

	switch tt := rt.(type) {
	case *OptType:
		o, ok := AsOption(v)
		if !ok {
			fmt.Fprintf(b, "%v", v)
			return
		}
		if !o.Valid {
			b.WriteString("null")
			return
		}
		b.WriteString("opt ")
		writeValue(b, o.Value, tt.Elem, depth+1)
		return

	case *VecType:
		if raw, ok := AsBytes(v); ok && IsBlob(tt) {
			writeBlob(b, raw)
			return
		}
		elems, _ := AsSlice(v)
		if len(elems) == 0 {
			b.WriteString("vec {}")
			return
		}
		b.WriteString("vec { ")
		for i, e := range elems {
			if i > 0 {
				b.WriteString("; ")
			}
			writeValue(b, e, tt.Elem, depth+1)
		}
		b.WriteString(" }")
		return

	case *RecordType:
		rec, _ := AsRecord(v)
		writeRecord(b, rec, tt, depth)
		return

	case *VariantType:
		b.WriteString("variant { ")
		switch vv := v.(type) {
		case Variant:
			f, _, ok := tt.Case(vv.Tag)
			if !ok {
				f = NumField(vv.Tag, Reserved)
			}
			b.WriteString(formatLabel(f))
			if p, ok := Resolve(f.Type).(PrimType); !ok || p != Null {
				b.WriteString(" = ")
				writeValue(b, vv.Value, f.Type, depth+1)
			}
		case UnknownCase:
			b.WriteString(strconv.FormatUint(uint64(vv.Tag), 10))
			b.WriteString(" = ")
			writeBlob(b, vv.Raw)
		}
		b.WriteString(" }")
		return

	case *FuncType:
		if ref, ok := v.(FuncRef); ok {
			fmt.Fprintf(b, "func %q.%s", ref.Service.String(), quoteName(ref.Method))
			return
		}

	case *ServiceType:
		if p, ok := v.(principal.Principal); ok {
			fmt.Fprintf(b, "service %q", p.String())
			return
		}
	}

	writeScalar(b, v)
}

func writeRecord(b *strings.Builder, rec Record, rt *RecordType, depth int) {
	if len(rt.Fields) == 0 {
		b.WriteString("record {}")
		return
	}
	tuple := rt.IsTuple()
	b.WriteString("record { ")
	first := true
	for _, f := range rt.Fields {
		fv, ok := rec[f.ID]
		if !ok {
			continue
		}
		if !first {
			b.WriteString("; ")
		}
		first = false
		if !tuple {
			b.WriteString(formatLabel(f))
			b.WriteString(" = ")
		}
		writeValue(b, fv, f.Type, depth+1)
	}
	b.WriteString(" }")
}

func writeScalar(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case string:
		b.WriteString(strconv.Quote(x))
	case *big.Int:
		b.WriteString(x.String())
	case float32:
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case principal.Principal:
		fmt.Fprintf(b, "principal %q", x.String())
	case []byte:
		writeBlob(b, x)
	default:
		if n, ok := AsBigInt(v); ok {
			b.WriteString(n.String())
			return
		}
		fmt.Fprintf(b, "%v", v)
	}
}

func writeBlob(b *strings.Builder, raw []byte) {
	b.WriteString(`blob "`)
	for _, c := range raw {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(b, `\%02x`, c)
	}
	b.WriteByte('"')
}
