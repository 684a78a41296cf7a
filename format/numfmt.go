package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrFormat = errors.New("invalid number format")

const (
	General = "General"
	Text    = "@"

	// first identifier available for custom number formats
	CustomID = 164

	maxSections = 4
)

var builtins = map[int]string{
	0:  General,
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	12: "# ?/?",
	13: "# ??/??",
	14: "mm-dd-yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mmss.0",
	48: "##0.0E+0",
	49: Text,
}

var builtinIds = func() map[string]int {
	ids := make(map[string]int)
	for id, code := range builtins {
		ids[code] = id
	}
	return ids
}()

// Builtin returns the identifier of a format code that spreadsheet
// applications know without declaring it in the styles part.
func Builtin(code string) (int, bool) {
	if strings.EqualFold(code, General) {
		return 0, true
	}
	id, ok := builtinIds[code]
	return id, ok
}

func BuiltinCode(id int) (string, bool) {
	code, ok := builtins[id]
	return code, ok
}

// IsBuiltinDate reports whether the given built-in identifier formats its
// value as a date or a time, including the locale specific ones.
func IsBuiltinDate(id int) bool {
	switch {
	case id >= 14 && id <= 22:
	case id >= 27 && id <= 36:
	case id >= 45 && id <= 47:
	case id >= 50 && id <= 58:
	default:
		return false
	}
	return true
}

// Validate checks that code follows the grammar of number format codes:
// up to four sections separated by semicolons, each made of placeholders,
// date and time tokens, quoted or escaped literals and bracketed modifiers.
func Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: empty format", ErrFormat)
	}
	if strings.EqualFold(code, General) {
		return nil
	}
	sections, err := splitSections(code)
	if err != nil {
		return err
	}
	if len(sections) > maxSections {
		return fmt.Errorf("%w: %q has more than %d sections", ErrFormat, code, maxSections)
	}
	for _, sec := range sections {
		if err := validateSection(sec); err != nil {
			return fmt.Errorf("%w in %q", err, code)
		}
	}
	return nil
}

// IsDateFormat reports whether a value displayed with code is a date or a
// time. Only the first section is inspected.
func IsDateFormat(code string) bool {
	sections, err := splitSections(code)
	if err != nil || len(sections) == 0 {
		return false
	}
	sec := sections[0]
	if strings.EqualFold(sec, General) {
		return false
	}
	for i := 0; i < len(sec); i++ {
		switch c := sec[i]; c {
		case '"':
			end := strings.IndexByte(sec[i+1:], '"')
			if end < 0 {
				return false
			}
			i += end + 1
		case '\\', '_', '*':
			i++
		case '[':
			end := strings.IndexByte(sec[i:], ']')
			if end < 0 {
				return false
			}
			if isElapsed(sec[i+1 : i+end]) {
				return true
			}
			i += end
		case 'g', 'G':
			if len(sec)-i >= len(General) && strings.EqualFold(sec[i:i+len(General)], General) {
				i += len(General) - 1
			}
		case 'y', 'Y', 'd', 'D', 'h', 'H', 's', 'S', 'm', 'M':
			return true
		case 'e':
			return true
		default:
		}
	}
	return false
}

func splitSections(code string) ([]string, error) {
	var (
		list  []string
		start int
	)
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '"':
			end := strings.IndexByte(code[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated literal in %q", ErrFormat, code)
			}
			i += end + 1
		case '\\':
			i++
		case '[':
			end := strings.IndexByte(code[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated bracket in %q", ErrFormat, code)
			}
			i += end
		case ';':
			list = append(list, code[start:i])
			start = i + 1
		default:
		}
	}
	return append(list, code[start:]), nil
}

func validateSection(sec string) error {
	for i := 0; i < len(sec); {
		c := sec[i]
		switch {
		case c == '"':
			end := strings.IndexByte(sec[i+1:], '"')
			if end < 0 {
				return fmt.Errorf("%w: unterminated literal", ErrFormat)
			}
			i += end + 2
		case c == '\\' || c == '_' || c == '*':
			if i+1 >= len(sec) {
				return fmt.Errorf("%w: %q must be followed by a character", ErrFormat, c)
			}
			_, z := utf8.DecodeRuneInString(sec[i+1:])
			i += z + 1
		case c == '[':
			end := strings.IndexByte(sec[i:], ']')
			if end < 0 {
				return fmt.Errorf("%w: unterminated bracket", ErrFormat)
			}
			if err := validateBracket(sec[i+1 : i+end]); err != nil {
				return err
			}
			i += end + 1
		case c == 'E':
			if i+1 >= len(sec) || (sec[i+1] != '+' && sec[i+1] != '-') {
				return fmt.Errorf("%w: exponent must be followed by a sign", ErrFormat)
			}
			i += 2
		case strings.IndexByte("0123456789#?.,%/+-$()!:^&'~{}<>= @", c) >= 0:
			i++
		case isLetter(c):
			n, err := validateKeyword(sec[i:])
			if err != nil {
				return err
			}
			i += n
		case c >= utf8.RuneSelf:
			r, z := utf8.DecodeRuneInString(sec[i:])
			if !unicode.Is(unicode.Sc, r) && !unicode.IsSpace(r) {
				return fmt.Errorf("%w: unexpected character %q", ErrFormat, r)
			}
			i += z
		default:
			return fmt.Errorf("%w: unexpected character %q", ErrFormat, c)
		}
	}
	return nil
}

var keywords = []string{
	"AM/PM",
	"am/pm",
	"A/P",
	"a/p",
	"General",
}

func validateKeyword(str string) (int, error) {
	for _, kw := range keywords {
		if len(str) >= len(kw) && strings.EqualFold(str[:len(kw)], kw) {
			return len(kw), nil
		}
	}
	switch str[0] {
	case 'y', 'Y', 'm', 'M', 'd', 'D', 'h', 'H', 's', 'S', 'e', 'g', 'G':
		return 1, nil
	case 'B', 'b':
		if len(str) > 1 && (str[1] == '1' || str[1] == '2') {
			return 2, nil
		}
	default:
	}
	return 0, fmt.Errorf("%w: unexpected character %q", ErrFormat, str[0])
}

var colors = []string{
	"black",
	"blue",
	"cyan",
	"green",
	"magenta",
	"red",
	"white",
	"yellow",
}

func validateBracket(str string) error {
	if str == "" {
		return fmt.Errorf("%w: empty bracket", ErrFormat)
	}
	lower := strings.ToLower(str)
	for _, c := range colors {
		if lower == c {
			return nil
		}
	}
	if rest, ok := strings.CutPrefix(lower, "color"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > 56 {
			return fmt.Errorf("%w: invalid color index %q", ErrFormat, str)
		}
		return nil
	}
	if str[0] == '$' || isElapsed(str) {
		return nil
	}
	if strings.HasPrefix(lower, "dbnum") || strings.HasPrefix(lower, "natnum") {
		return nil
	}
	return validateCondition(str)
}

func validateCondition(str string) error {
	var op string
	for _, o := range []string{"<=", ">=", "<>", "<", ">", "="} {
		if strings.HasPrefix(str, o) {
			op = o
			break
		}
	}
	if op == "" {
		return fmt.Errorf("%w: unknown modifier [%s]", ErrFormat, str)
	}
	if _, err := strconv.ParseFloat(str[len(op):], 64); err != nil {
		return fmt.Errorf("%w: invalid condition [%s]", ErrFormat, str)
	}
	return nil
}

func isElapsed(str string) bool {
	if str == "" {
		return false
	}
	c := unicode.ToLower(rune(str[0]))
	if c != 'h' && c != 'm' && c != 's' {
		return false
	}
	for i := 1; i < len(str); i++ {
		if unicode.ToLower(rune(str[i])) != c {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
