package oxml

import (
	"fmt"
	"os"
	"strings"

	"github.com/midbel/xlstream/format"
	"gopkg.in/yaml.v2"
)

const (
	DefaultBufferSize     = 32 << 10
	DefaultMinColumnWidth = 9.28515625
	DefaultMaxColumnWidth = 200
	DefaultDateFormat     = "yyyy-mm-dd hh:mm:ss"
)

type Options struct {
	BufferSize     int     `yaml:"buffer_size"`
	Culture        string  `yaml:"culture"`
	FastMode       bool    `yaml:"fast_mode"`
	MinColumnWidth float64 `yaml:"min_column_width"`
	MaxColumnWidth float64 `yaml:"max_column_width"`
	DateFormat     string  `yaml:"date_format"`
	Date1904       bool    `yaml:"date_1904"`
	TempDir        string  `yaml:"temp_dir"`
	SkipHeader     bool    `yaml:"skip_header"`
}

func DefaultOptions() Options {
	return Options{
		BufferSize:     DefaultBufferSize,
		MinColumnWidth: DefaultMinColumnWidth,
		MaxColumnWidth: DefaultMaxColumnWidth,
		DateFormat:     DefaultDateFormat,
	}
}

// LoadOptions reads options from a yaml file. Missing keys keep their
// default value.
func LoadOptions(file string) (Options, error) {
	opts := DefaultOptions()
	buf, err := os.ReadFile(file)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(buf, &opts); err != nil {
		return opts, fmt.Errorf("%s: %w", file, err)
	}
	return opts.withDefaults()
}

func (o Options) withDefaults() (Options, error) {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.MinColumnWidth <= 0 {
		o.MinColumnWidth = DefaultMinColumnWidth
	}
	if o.MaxColumnWidth <= 0 {
		o.MaxColumnWidth = DefaultMaxColumnWidth
	}
	if o.MaxColumnWidth < o.MinColumnWidth {
		o.MaxColumnWidth = o.MinColumnWidth
	}
	if o.DateFormat == "" {
		o.DateFormat = DefaultDateFormat
	}
	if err := format.Validate(o.DateFormat); err != nil {
		return o, err
	}
	if _, err := format.ParseCulture(o.Culture); err != nil {
		return o, err
	}
	return o, nil
}

func (o Options) culture() format.Culture {
	c, err := format.ParseCulture(o.Culture)
	if err != nil {
		return format.Invariant()
	}
	return c
}

// Infer converts text to the most specific value the culture of the options
// recognizes: a bool, a number, a date or, failing those, the text itself.
// Empty text gives nil.
func (o Options) Infer(str string) any {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}
	switch strings.ToLower(str) {
	case "true":
		return true
	case "false":
		return false
	}
	c := o.culture()
	if n, err := c.ParseNumber(str); err == nil {
		return n
	}
	if t, err := c.ParseDate(str); err == nil {
		return t
	}
	return str
}
