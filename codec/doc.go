// Package codec implements the canonical Candid binary format.
//
// # Message Layout
//
//	┌──────┬────────────┬──────────────────┬──────────┐
//	│ DIDL │ type table │ argument types   │ values   │
//	└──────┴────────────┴──────────────────┴──────────┘
//
// The type table is a LEB128 count followed by composite type entries, each
// starting with an SLEB128 opcode. Argument types are SLEB128 references:
// negative numbers are primitive opcodes, non-negative numbers index the
// table. Entries are written children first and deduplicated by their bytes;
// a named type reserves its slot before its body, which lets recursive
// types refer back to themselves.
//
// # Value Layout
//
//	Type            Encoding
//	──────────────────────────────────────────────
//	nat / int       LEB128 / SLEB128
//	natN / intN     N/8 bytes, little-endian
//	float32/64      IEEE 754, little-endian
//	bool            1 byte
//	text            LEB128 length + UTF-8
//	vec T           LEB128 count + elements
//	opt T           0, or 1 + value
//	record          fields in ascending id order
//	variant         LEB128 case index + payload
//	principal       1 + LEB128 length + bytes
//	null, reserved  nothing
//
// # Compatibility
//
// Decode checks each wire argument type against the expected type with
// idl.Compatible before reading any value, then converts as it reads:
// integers of any width are range-checked into the expected width, unknown
// record fields are skipped, absent optional fields become none, and
// variant cases the reader does not know fail with an unknown_variant error
// unless the expected variant is open.
//
// Encoding and decoding are pure functions of their inputs and may run
// concurrently.
package codec
