package modsys

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/esmaudit/pkg/analyzer/binding"
	"github.com/panbanda/esmaudit/pkg/parser"
)

// Fold evaluates an expression to a constant string when it is built only from
// literals, templates with constant substitutions, and string concatenation.
// It never evaluates arithmetic; 1 + 2 is unknown while "a" + 1 is "a1".
func Fold(n *sitter.Node, source []byte, table *binding.Table) (string, bool) {
	v, _, ok := fold(n, source, table)
	return v, ok
}

// fold returns the string value, whether the expression is string-typed, and
// whether it could be evaluated at all.
func fold(n *sitter.Node, source []byte, table *binding.Table) (string, bool, bool) {
	if n == nil {
		return "", false, false
	}

	switch n.Type() {
	case "parenthesized_expression":
		inner := parser.FirstNamedChild(n)
		if inner == nil || inner.Type() == "sequence_expression" {
			return "", false, false
		}
		return fold(inner, source, table)

	case "string":
		text := parser.GetNodeText(n, source)
		if len(text) < 2 {
			return "", false, false
		}
		v, ok := unescape(text[1 : len(text)-1])
		return v, true, ok

	case "template_string":
		return foldTemplate(n, source, table)

	case "number":
		v, ok := formatNumberLiteral(parser.GetNodeText(n, source))
		return v, false, ok

	case "true", "false", "null", "undefined":
		return n.Type(), false, true

	case "identifier":
		name := parser.GetNodeText(n, source)
		switch name {
		case "undefined", "NaN", "Infinity":
			if table.Tag(n) == binding.FreeReference {
				return name, false, true
			}
		}
		return "", false, false

	case "binary_expression":
		op := n.ChildByFieldName("operator")
		if op == nil || parser.GetNodeText(op, source) != "+" {
			return "", false, false
		}
		l, lstr, lok := fold(n.ChildByFieldName("left"), source, table)
		if !lok {
			return "", false, false
		}
		r, rstr, rok := fold(n.ChildByFieldName("right"), source, table)
		if !rok || (!lstr && !rstr) {
			return "", false, false
		}
		return l + r, true, true
	}

	return "", false, false
}

func foldTemplate(n *sitter.Node, source []byte, table *binding.Table) (string, bool, bool) {
	start, end := n.StartByte(), n.EndByte()
	if end < start+2 || end > uint32(len(source)) {
		return "", false, false
	}

	var b strings.Builder
	pos := start + 1
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if c.Type() != "template_substitution" {
			continue
		}
		piece, ok := unescape(string(source[pos:c.StartByte()]))
		if !ok {
			return "", false, false
		}
		b.WriteString(piece)

		v, _, ok := fold(parser.FirstNamedChild(c), source, table)
		if !ok {
			return "", false, false
		}
		b.WriteString(v)
		pos = c.EndByte()
	}

	piece, ok := unescape(string(source[pos : end-1]))
	if !ok {
		return "", false, false
	}
	b.WriteString(piece)
	return b.String(), true, true
}

// unescape decodes the escape sequences of a string or template literal body.
func unescape(raw string) (string, bool) {
	if !strings.Contains(raw, `\`) {
		return raw, true
	}

	var units []uint16
	flush := func(b *strings.Builder) {
		if len(units) > 0 {
			b.WriteString(string(utf16.Decode(units)))
			units = units[:0]
		}
	}

	var b strings.Builder
	for i := 0; i < len(raw); {
		if raw[i] != '\\' {
			flush(&b)
			r, size := utf8.DecodeRuneInString(raw[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(raw) {
			return "", false
		}

		c := raw[i+1]
		i += 2
		switch c {
		case 'n':
			flush(&b)
			b.WriteByte('\n')
		case 'r':
			flush(&b)
			b.WriteByte('\r')
		case 't':
			flush(&b)
			b.WriteByte('\t')
		case 'b':
			flush(&b)
			b.WriteByte('\b')
		case 'f':
			flush(&b)
			b.WriteByte('\f')
		case 'v':
			flush(&b)
			b.WriteByte('\v')
		case '0':
			flush(&b)
			b.WriteByte(0)
		case '\r':
			// Line continuation, possibly CRLF.
			if i < len(raw) && raw[i] == '\n' {
				i++
			}
		case '\n':
		case 'x':
			if i+2 > len(raw) {
				return "", false
			}
			v, err := strconv.ParseUint(raw[i:i+2], 16, 8)
			if err != nil {
				return "", false
			}
			flush(&b)
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			var hex string
			if i < len(raw) && raw[i] == '{' {
				rbrace := strings.IndexByte(raw[i:], '}')
				if rbrace < 0 {
					return "", false
				}
				hex = raw[i+1 : i+rbrace]
				i += rbrace + 1
			} else {
				if i+4 > len(raw) {
					return "", false
				}
				hex = raw[i : i+4]
				i += 4
			}
			v, err := strconv.ParseUint(hex, 16, 32)
			if err != nil || v > utf8.MaxRune {
				return "", false
			}
			if v <= 0xFFFF {
				units = append(units, uint16(v))
			} else {
				flush(&b)
				b.WriteRune(rune(v))
			}
		default:
			flush(&b)
			r, size := utf8.DecodeRuneInString(raw[i-1:])
			// U+2028 and U+2029 after a backslash are line continuations.
			if r != '\u2028' && r != '\u2029' {
				b.WriteRune(r)
			}
			i += size - 1
		}
	}
	flush(&b)
	return b.String(), true
}

// formatNumberLiteral renders a numeric literal the way Number#toString does.
// BigInt literals are not folded.
func formatNumberLiteral(text string) (string, bool) {
	text = strings.ReplaceAll(text, "_", "")
	if text == "" || strings.HasSuffix(text, "n") {
		return "", false
	}

	var f float64
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "0x"), strings.HasPrefix(lower, "0o"), strings.HasPrefix(lower, "0b"):
		base := map[byte]int{'x': 16, 'o': 8, 'b': 2}[lower[1]]
		v, err := strconv.ParseUint(lower[2:], base, 64)
		if err != nil {
			return "", false
		}
		f = float64(v)
	case len(text) > 1 && text[0] == '0' && isOctalDigits(text[1:]):
		v, err := strconv.ParseUint(text[1:], 8, 64)
		if err != nil {
			return "", false
		}
		f = float64(v)
	default:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return "", false
		}
		f = v
	}

	return formatNumber(f), true
}

func isOctalDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return s != ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + sign + digits
}
