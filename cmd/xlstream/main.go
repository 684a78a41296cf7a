package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/midbel/cli"
	"github.com/midbel/xlstream/csv"
	"github.com/midbel/xlstream/internal/config"
	"github.com/midbel/xlstream/internal/logger"
	"github.com/midbel/xlstream/layout"
	"github.com/midbel/xlstream/oxml"
	"gopkg.in/yaml.v2"
)

var (
	errFail    = errors.New("fail")
	errMissing = errors.New("missing input file")
)

var (
	summary = "xlstream"
	help    = "read, write, fill and merge xlsx workbooks without loading them in memory"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	linoStyle   = lipgloss.NewStyle().Faint(true)
	hiddenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var (
	envFile     string
	optionsFile string
)

func main() {
	var (
		set  = cli.NewFlagSet("xlstream")
		root = prepare()
	)
	root.SetSummary(summary)
	root.SetHelp(help)
	set.StringVar(&envFile, "e", "", "load environment from file")
	set.StringVar(&optionsFile, "o", "", "load options from yaml file")
	if err := set.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			root.Help()
			os.Exit(2)
		}
	}
	err := root.Execute(set.Args())
	if err != nil {
		if s, ok := err.(cli.SuggestionError); ok && len(s.Others) > 0 {
			fmt.Fprintln(os.Stderr, "similar command(s)")
			for _, n := range s.Others {
				fmt.Fprintln(os.Stderr, "-", n)
			}
		}
		if !errors.Is(err, errFail) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func prepare() *cli.CommandTrie {
	root := cli.New()
	root.Register([]string{"info"}, &infoCmd)
	root.Register([]string{"print"}, &printCmd)
	root.Register([]string{"extract"}, &extractCmd)
	root.Register([]string{"new"}, &newCmd)
	root.Register([]string{"template"}, &templateCmd)
	root.Register([]string{"merge"}, &mergeCmd)

	return root
}

var infoCmd = cli.Command{
	Name:    "info",
	Summary: "get informations about sheets in given file",
	Usage:   "info [-a] <spreadsheet>",
	Handler: &GetInfoCommand{},
}

var printCmd = cli.Command{
	Name:    "print",
	Alias:   []string{"view", "show", "dump"},
	Summary: "print content of a sheet",
	Usage:   "print [-s sep] [-w width] [-c columns] [-n] <spreadsheet> [<sheet>]",
	Handler: &PrintSheetCommand{},
}

var extractCmd = cli.Command{
	Name:    "extract",
	Alias:   []string{"export"},
	Summary: "extract one or more sheets from given spreadsheets",
	Usage:   "extract [-d directory] [-f format] [-c delimiter] <spreadsheet> [sheet,...]",
	Handler: &ExtractSheetCommand{},
}

var newCmd = cli.Command{
	Name:    "new",
	Alias:   []string{"create"},
	Summary: "create a new spreadsheet from csv files",
	Usage:   "new [-o file] [-s sep] [-f] <file, [file,...]>",
	Handler: &CreateFileCommand{},
}

var templateCmd = cli.Command{
	Name:    "template",
	Alias:   []string{"fill"},
	Summary: "fill the placeholders of a template with data from a yaml file",
	Usage:   "template [-o file] -d <data> <template>",
	Handler: &ApplyTemplateCommand{},
}

var mergeCmd = cli.Command{
	Name:    "merge",
	Summary: "merge vertical runs of identical cells",
	Usage:   "merge [-o file] <spreadsheet> [sheet,...]",
	Handler: &MergeCellsCommand{},
}

// setup loads the configuration, initializes the logger and gives the
// options shared by all commands. The returned context is cancelled on
// interrupt.
func setup(cmd string) (context.Context, context.CancelFunc, oxml.Options, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, oxml.Options{}, err
	}
	logger.InitLogging(cfg.LogLevel, cfg.LogFile)

	opts := oxml.DefaultOptions()
	if optionsFile == "" {
		optionsFile = cfg.Options
	}
	if optionsFile != "" {
		if opts, err = oxml.LoadOptions(optionsFile); err != nil {
			return nil, nil, opts, err
		}
	}
	if cfg.Culture != "" {
		opts.Culture = cfg.Culture
	}
	if cfg.TempDir != "" {
		opts.TempDir = cfg.TempDir
	}
	if cfg.BufferSize > 0 {
		opts.BufferSize = cfg.BufferSize
	}
	opts.FastMode = opts.FastMode || cfg.FastMode

	ctx := logger.WithLogger(context.Background(), map[string]any{
		"command": cmd,
	})
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	return ctx, cancel, opts, nil
}

type GetInfoCommand struct {
	All bool
}

func (c GetInfoCommand) Run(args []string) error {
	set := cli.NewFlagSet("info")
	set.BoolVar(&c.All, "a", false, "show hidden sheets")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() == 0 {
		return errMissing
	}
	_, cancel, opts, err := setup("info")
	if err != nil {
		return err
	}
	defer cancel()

	f, err := oxml.Open(set.Arg(0), opts)
	if err != nil {
		return err
	}
	defer f.Close()

	tab := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "name", "state", "lines", "columns", "path").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, s := range f.Sheets() {
		if !s.Visible() && !c.All {
			continue
		}
		name := s.Name
		if s.Active {
			name = activeStyle.Render(name + " *")
		}
		tab.Row(
			strconv.Itoa(s.Index),
			name,
			s.State.String(),
			strconv.FormatInt(s.Size.Lines, 10),
			strconv.FormatInt(s.Size.Columns, 10),
			s.Path,
		)
	}
	fmt.Fprintln(os.Stdout, tab.String())
	return nil
}

type PrintSheetCommand struct {
	Width   int
	Sep     string
	Lino    bool
	Columns string

	selection *layout.Selection
}

func (c PrintSheetCommand) Run(args []string) error {
	set := cli.NewFlagSet("print")
	set.StringVar(&c.Sep, "s", "|", "column separator")
	set.IntVar(&c.Width, "w", 12, "column width")
	set.BoolVar(&c.Lino, "n", false, "print line number")
	set.StringVar(&c.Columns, "c", "", "columns to print (A,C:E)")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() == 0 {
		return errMissing
	}
	sel, err := layout.ParseSelection(c.Columns)
	if err != nil {
		return err
	}
	c.selection = sel

	ctx, cancel, opts, err := setup("print")
	if err != nil {
		return err
	}
	defer cancel()

	f, err := oxml.Open(set.Arg(0), opts)
	if err != nil {
		return err
	}
	defer f.Close()

	name := set.Arg(1)
	if name == "" {
		sh, err := f.ActiveSheet()
		if err != nil {
			return err
		}
		name = sh.Name
	}
	return c.EncodeSheet(f.Rows(ctx, name))
}

func (c PrintSheetCommand) EncodeSheet(rows iter.Seq2[*oxml.Row, error]) error {
	if c.Width <= 0 {
		c.Width = 16
	}
	for row, err := range rows {
		if err != nil {
			return err
		}
		line := c.formatRow(row)
		if row.Hidden {
			line = hiddenStyle.Render(line)
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}

func (c PrintSheetCommand) formatRow(row *oxml.Row) string {
	var str strings.Builder
	if c.Lino {
		str.WriteString(linoStyle.Render(fmt.Sprintf("%-5d", row.Line)))
		str.WriteString(c.Sep)
	}
	var n int
	for i, v := range row.Values() {
		if !c.selection.Has(int64(i + 1)) {
			continue
		}
		if n > 0 {
			str.WriteString(c.Sep)
		}
		n++
		fmt.Fprintf(&str, " %-*s ", c.Width, v.String())
	}
	return str.String()
}

type ExtractSheetCommand struct {
	OutDir    string
	Format    string
	Delimiter string
}

func (c ExtractSheetCommand) Run(args []string) error {
	set := cli.NewFlagSet("extract")
	set.StringVar(&c.OutDir, "d", "", "write result to directory")
	set.StringVar(&c.Format, "f", "", "extract to given format (csv, json, xml)")
	set.StringVar(&c.Delimiter, "c", "", "delimiter to use")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() == 0 {
		return errMissing
	}
	ctx, cancel, opts, err := setup("extract")
	if err != nil {
		return err
	}
	defer cancel()

	if c.OutDir != "" {
		if err := os.MkdirAll(c.OutDir, 0755); err != nil {
			return err
		}
	}
	file, err := oxml.Open(set.Arg(0), opts)
	if err != nil {
		return err
	}
	defer file.Close()

	names := set.Args()[1:]
	if len(names) == 0 {
		for _, s := range file.Sheets() {
			names = append(names, s.Name)
		}
	}
	for _, n := range names {
		if err := c.Extract(ctx, file, n); err != nil {
			return err
		}
	}
	return nil
}

func (c ExtractSheetCommand) Extract(ctx context.Context, file *oxml.File, name string) error {
	sh, err := file.Sheet(name)
	if err != nil {
		return err
	}

	var encode func(io.Writer) oxml.Encoder
	switch c.Format {
	case "", "csv":
		comma, err := csvSeparator(c.Delimiter)
		if err != nil {
			return err
		}
		encode = func(w io.Writer) oxml.Encoder {
			return oxml.EncodeCSV(w, comma)
		}
		c.Format = "csv"
	case "json":
		encode = oxml.EncodeJSON
	case "xml":
		encode = oxml.EncodeXML
	default:
		return fmt.Errorf("%s: unsupported format", c.Format)
	}
	ext := fmt.Sprintf(".%s", c.Format)

	w, err := os.Create(filepath.Join(c.OutDir, sh.Name+ext))
	if err != nil {
		return err
	}
	defer w.Close()

	logger.Get(ctx).Info().Str("sheet", sh.Name).Str("file", w.Name()).Msg("extract sheet")
	return encode(w).EncodeSheet(file.Rows(ctx, sh.Name))
}

type CreateFileCommand struct {
	OutFile string
	Sep     string
	Freeze  bool
}

func (c CreateFileCommand) Run(args []string) error {
	set := cli.NewFlagSet("new")
	set.StringVar(&c.OutFile, "o", "", "write result to output file")
	set.StringVar(&c.Sep, "s", "", "fields separator")
	set.BoolVar(&c.Freeze, "f", false, "freeze the header row")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() == 0 {
		return errMissing
	}
	ctx, cancel, opts, err := setup("new")
	if err != nil {
		return err
	}
	defer cancel()

	if c.OutFile == "" {
		c.OutFile = "new.xlsx"
	}
	if err := os.MkdirAll(filepath.Dir(c.OutFile), 0755); err != nil {
		return err
	}
	w, err := oxml.Create(c.OutFile, opts)
	if err != nil {
		return err
	}
	defer w.Abort()

	for _, a := range set.Args() {
		if ok, err := isZip(a); ok || err != nil {
			if err != nil {
				return err
			}
			logger.Get(ctx).Warn().Str("file", a).Msg("skip spreadsheet")
			continue
		}
		if err := c.appendCSV(ctx, w, opts, a); err != nil {
			return err
		}
	}
	return w.Close()
}

func (c CreateFileCommand) appendCSV(ctx context.Context, w *oxml.Writer, opts oxml.Options, file string) error {
	r, err := os.Open(file)
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		comma byte
		rs    io.Reader = r
	)
	if c.Sep == "" {
		comma, rs = csv.Sniff(r)
	} else if comma, err = csvSeparator(c.Sep); err != nil {
		return err
	}
	reader := csv.NewReader(rs)
	reader.Comma = comma

	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	columns := make([]oxml.Column, len(head))
	for i := range head {
		columns[i].Name = head[i]
	}
	rows := func(yield func([]any, error) bool) {
		for line, err := range csv.Records(reader) {
			if err != nil {
				yield(nil, err)
				return
			}
			values := make([]any, len(line))
			for i := range line {
				values[i] = opts.Infer(line[i])
			}
			if !yield(values, nil) {
				return
			}
		}
	}

	name := filepath.Base(file)
	spec := oxml.SheetSpec{
		Name:         strings.TrimSuffix(name, filepath.Ext(name)),
		Columns:      columns,
		Rows:         rows,
		FreezeHeader: c.Freeze,
		AutoFilter:   true,
	}
	return w.WriteSheet(ctx, spec)
}

type ApplyTemplateCommand struct {
	OutFile  string
	DataFile string
}

func (c ApplyTemplateCommand) Run(args []string) error {
	set := cli.NewFlagSet("template")
	set.StringVar(&c.OutFile, "o", "", "write result to output file")
	set.StringVar(&c.DataFile, "d", "", "yaml file with the data of the template")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() == 0 {
		return errMissing
	}
	ctx, cancel, opts, err := setup("template")
	if err != nil {
		return err
	}
	defer cancel()

	data := make(map[string]any)
	if c.DataFile != "" {
		buf, err := os.ReadFile(c.DataFile)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(buf, &data); err != nil {
			return fmt.Errorf("%s: %w", c.DataFile, err)
		}
	}
	if c.OutFile == "" {
		c.OutFile = outputName(set.Arg(0), "filled")
	}
	return oxml.ApplyTemplateFile(ctx, set.Arg(0), c.OutFile, data, opts)
}

type MergeCellsCommand struct {
	OutFile string
}

func (c MergeCellsCommand) Run(args []string) error {
	set := cli.NewFlagSet("merge")
	set.StringVar(&c.OutFile, "o", "", "write result to output file")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() == 0 {
		return errMissing
	}
	ctx, cancel, opts, err := setup("merge")
	if err != nil {
		return err
	}
	defer cancel()

	if c.OutFile == "" {
		c.OutFile = outputName(set.Arg(0), "merged")
	}
	return oxml.MergeSameCellsFile(ctx, set.Arg(0), c.OutFile, opts, set.Args()[1:]...)
}

func outputName(file, suffix string) string {
	ext := filepath.Ext(file)
	return fmt.Sprintf("%s-%s%s", strings.TrimSuffix(file, ext), suffix, ext)
}

var magicZipBytes = [][]byte{
	{0x50, 0x4b, 0x03, 0x04},
	{0x50, 0x4b, 0x05, 0x06},
	{0x50, 0x4b, 0x07, 0x08},
}

func isZip(file string) (bool, error) {
	r, err := os.Open(file)
	if err != nil {
		return false, err
	}
	defer r.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	for _, mzb := range magicZipBytes {
		if bytes.Equal(magic, mzb) {
			return true, nil
		}
	}
	return false, nil
}

func csvSeparator(str string) (byte, error) {
	var comma byte
	switch str {
	case "semi", "semicolon", ";":
		comma = ';'
	case "comma", ",", "":
		comma = ','
	case "tab", "\t":
		comma = '\t'
	case "colon", ":":
		comma = ':'
	case "pipe", "|":
		comma = '|'
	default:
		return 0, fmt.Errorf("unsupported separator")
	}
	return comma, nil
}
