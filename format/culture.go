package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Culture describes how numbers and dates are written as text in a given
// locale. It is used when text values need to be converted to numbers or
// dates and when numbers are rendered as text.
type Culture struct {
	Tag     language.Tag
	Decimal rune
	Group   rune
	Layouts []string
}

var commaDecimals = map[string]struct{}{
	"fr": {},
	"de": {},
	"es": {},
	"it": {},
	"pt": {},
	"nl": {},
	"ru": {},
	"pl": {},
	"tr": {},
	"id": {},
	"da": {},
	"sv": {},
	"nb": {},
	"fi": {},
	"cs": {},
}

var (
	isoLayouts = []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	dayFirst = []string{
		"02/01/2006 15:04:05",
		"02/01/2006",
		"02.01.2006",
	}
	monthFirst = []string{
		"01/02/2006 15:04:05",
		"01/02/2006",
	}
)

func Invariant() Culture {
	return Culture{
		Tag:     language.Und,
		Decimal: '.',
		Group:   ',',
		Layouts: isoLayouts,
	}
}

// ParseCulture builds the Culture of a BCP 47 tag. An empty tag gives the
// invariant culture.
func ParseCulture(str string) (Culture, error) {
	if str == "" {
		return Invariant(), nil
	}
	tag, err := language.Parse(str)
	if err != nil {
		return Culture{}, fmt.Errorf("%w: unknown culture %q", ErrFormat, str)
	}
	c := Culture{
		Tag:     tag,
		Decimal: '.',
		Group:   ',',
	}
	base, _ := tag.Base()
	c.Layouts = append(c.Layouts, isoLayouts...)
	if _, ok := commaDecimals[base.String()]; ok {
		c.Decimal = ','
		c.Group = '.'
		if base.String() == "fr" || base.String() == "ru" || base.String() == "sv" {
			c.Group = ' '
		}
	}
	if region, _ := tag.Region(); region.String() == "US" {
		c.Layouts = append(c.Layouts, monthFirst...)
	} else {
		c.Layouts = append(c.Layouts, dayFirst...)
	}
	return c, nil
}

func (c Culture) String() string {
	if c.Tag == language.Und {
		return "invariant"
	}
	return c.Tag.String()
}

func (c Culture) ParseNumber(str string) (float64, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, fmt.Errorf("%w: empty number", ErrFormat)
	}
	var buf strings.Builder
	for _, r := range str {
		switch {
		case r == c.Group:
		case c.Group == ' ' && (r == '\u00a0' || r == '\u202f'):
		case r == c.Decimal:
			buf.WriteByte('.')
		default:
			buf.WriteRune(r)
		}
	}
	n, err := strconv.ParseFloat(buf.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrFormat, str)
	}
	return n, nil
}

func (c Culture) ParseDate(str string) (time.Time, error) {
	str = strings.TrimSpace(str)
	for _, layout := range c.Layouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrFormat, str)
}

func (c Culture) FormatNumber(n float64) string {
	str := strconv.FormatFloat(n, 'f', -1, 64)
	if c.Decimal == '.' {
		return str
	}
	return strings.Replace(str, ".", string(c.Decimal), 1)
}
