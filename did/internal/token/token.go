package token

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wippyai/candid/errors"
)

type Type int

const (
	Ident Type = iota
	String
	Number
	Punct
)

func (t Type) String() string {
	switch t {
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Punct:
		return "punctuation"
	}
	return "unknown"
}

// Token is a lexical unit. For strings, Value holds the unescaped bytes,
// which need not be valid UTF-8.
type Token struct {
	Value string
	Type  Type
	Line  int
}

// Is reports whether the token is punctuation or an identifier spelled s.
func (t Token) Is(s string) bool {
	return (t.Type == Punct || t.Type == Ident) && t.Value == s
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isNumberPart(c rune) bool {
	return unicode.IsDigit(c) || c == '.' || c == '_' || c == 'x' || c == 'X' ||
		(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Tokenize splits Candid text into tokens, dropping whitespace and
// comments.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	line := 1
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}

		// Line comment
		if r == '/' && i+1 < len(runes) && runes[i+1] == '/' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			line++
			continue
		}

		// Block comment, may nest
		if r == '/' && i+1 < len(runes) && runes[i+1] == '*' {
			start := line
			depth := 1
			i += 2
			for i < len(runes) && depth > 0 {
				switch {
				case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '*':
					depth++
					i++
				case runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/':
					depth--
					i++
				case runes[i] == '\n':
					line++
				}
				i++
			}
			if depth > 0 {
				return nil, errors.ParseFailed(start, "unterminated comment")
			}
			i--
			continue
		}

		if r == '-' && i+1 < len(runes) && runes[i+1] == '>' {
			tokens = append(tokens, Token{"->", Punct, line})
			i++
			continue
		}

		if strings.ContainsRune("(){};:,=.", r) {
			tokens = append(tokens, Token{string(r), Punct, line})
			continue
		}

		// String literal
		if r == '"' {
			start := line
			var b strings.Builder
			i++
			for ; i < len(runes) && runes[i] != '"'; i++ {
				c := runes[i]
				if c == '\n' {
					line++
				}
				if c != '\\' {
					b.WriteRune(c)
					continue
				}
				n, err := unescape(&b, runes, i+1)
				if err != nil {
					return nil, errors.ParseFailed(line, "%v", err)
				}
				i += n
			}
			if i >= len(runes) {
				return nil, errors.ParseFailed(start, "unterminated string")
			}
			tokens = append(tokens, Token{b.String(), String, start})
			continue
		}

		// Number, optionally signed
		if ((r == '-' || r == '+') && i+1 < len(runes) && unicode.IsDigit(runes[i+1])) || unicode.IsDigit(r) {
			start := i
			i++
			for i < len(runes) && isNumberPart(runes[i]) {
				// exponent sign
				if (runes[i] == 'e' || runes[i] == 'E') && i+1 < len(runes) && (runes[i+1] == '-' || runes[i+1] == '+') &&
					!strings.HasPrefix(strings.ToLower(string(runes[start:i])), "0x") {
					i++
				}
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, line})
			i--
			continue
		}

		if isIdentStart(r) {
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Ident, line})
			i--
			continue
		}

		return nil, errors.ParseFailed(line, "unexpected character %q", r)
	}

	return tokens, nil
}

// unescape decodes the escape sequence starting at runes[i] (just after
// the backslash) and returns how many runes it consumed.
func unescape(b *strings.Builder, runes []rune, i int) (int, error) {
	if i >= len(runes) {
		return 0, errors.InvalidInput(errors.PhaseParse, "unterminated escape")
	}
	switch runes[i] {
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case '\\', '"', '\'':
		b.WriteRune(runes[i])
	case 'u':
		if i+1 >= len(runes) || runes[i+1] != '{' {
			return 0, errors.InvalidInput(errors.PhaseParse, `expected \u{...}`)
		}
		end := i + 2
		for end < len(runes) && runes[end] != '}' {
			end++
		}
		if end >= len(runes) {
			return 0, errors.InvalidInput(errors.PhaseParse, "unterminated unicode escape")
		}
		code, err := strconv.ParseUint(strings.ReplaceAll(string(runes[i+2:end]), "_", ""), 16, 32)
		if err != nil || !utf8.ValidRune(rune(code)) {
			return 0, errors.InvalidInput(errors.PhaseParse, "invalid unicode escape")
		}
		b.WriteRune(rune(code))
		return end - i + 1, nil
	default:
		if i+1 >= len(runes) {
			return 0, errors.InvalidInput(errors.PhaseParse, "short byte escape")
		}
		v, err := strconv.ParseUint(string(runes[i:i+2]), 16, 8)
		if err != nil {
			return 0, errors.InvalidInput(errors.PhaseParse, "invalid escape \\"+string(runes[i:i+2]))
		}
		b.WriteByte(byte(v))
		return 2, nil
	}
	return 1, nil
}
