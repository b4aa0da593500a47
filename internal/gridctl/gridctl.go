// internal/gridctl/gridctl.go
package gridctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/dalemusser/usergrid/internal/export"
	"github.com/dalemusser/usergrid/internal/suggest"
	"github.com/dalemusser/usergrid/internal/userstore"
	"github.com/dalemusser/usergrid/version"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// CLI runs gridctl commands against the given streams.
type CLI struct {
	Name string
	Out  io.Writer
	Err  io.Writer
}

// Run is the entrypoint used by cmd/gridctl. args exclude the binary name.
// It returns a process exit code.
func Run(binName string, args []string) int {
	return CLI{Name: binName, Out: os.Stdout, Err: os.Stderr}.Run(args)
}

// Run dispatches args[0] to its subcommand.
func (c CLI) Run(args []string) int {
	if len(args) < 1 {
		c.usage()
		return 1
	}

	var err error
	switch args[0] {
	case "suggest":
		err = c.suggest(args[1:])
	case "schema":
		err = c.schema(args[1:])
	case "validate":
		err = c.validate(args[1:])
	case "export":
		err = c.export(args[1:])
	case "query":
		err = c.query(args[1:])
	case "version":
		fmt.Fprintln(c.Out, version.Get())
	case "help", "-h", "--help":
		c.usage()
	default:
		fmt.Fprintf(c.Err, "unknown command: %q\n\n", args[0])
		c.usage()
		return 1
	}

	switch {
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case err != nil:
		fmt.Fprintf(c.Err, "error: %v\n", err)
		return 1
	}
	return 0
}

func (c CLI) usage() {
	fmt.Fprintf(c.Err, "usergrid CLI (%s)\n\n", c.Name)
	fmt.Fprintln(c.Err, "Usage:")
	fmt.Fprintf(c.Err, "  %s suggest [--suffix @a.com ...] [--json] <value>\n", c.Name)
	fmt.Fprintf(c.Err, "  %s schema [--file dataset.yaml] [--locale zh-CN] [--json]\n", c.Name)
	fmt.Fprintf(c.Err, "  %s validate [--file dataset.yaml] <records.json>\n", c.Name)
	fmt.Fprintf(c.Err, "  %s export --db usergrid.db --format csv|xlsx --out FILE [--locale zh-CN]\n", c.Name)
	fmt.Fprintf(c.Err, "  %s query [--url http://host:8080] [--page N] [--field name=Ann] [--param customPara=test] [--json-data]\n", c.Name)
	fmt.Fprintf(c.Err, "  %s version\n", c.Name)
}

// logger writes human-readable events to the error stream so stdout stays
// machine-readable.
func (c CLI) logger() *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(zapcore.AddSync(c.Err)), zapcore.InfoLevel)
	return zap.New(core)
}

func (c CLI) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.Err)
	return fs
}

func (c CLI) suggest(args []string) error {
	fs := c.flags("suggest")
	suffixes := fs.StringSlice("suffix", suggest.DefaultSuffixes, "domain suffixes, in order")
	asJSON := fs.Bool("json", false, "print the suggestion records as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("suggest takes exactly one value")
	}

	out := suggest.Generate(fs.Arg(0), *suffixes)
	if *asJSON {
		enc := json.NewEncoder(c.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, s := range out {
		fmt.Fprintln(c.Out, s.Value)
	}
	return nil
}

func loadDataset(path string) (*dataset.Config, error) {
	if path == "" {
		return dataset.Default()
	}
	return dataset.Load(path, dataset.DefaultRules())
}

func (c CLI) schema(args []string) error {
	fs := c.flags("schema")
	file := fs.String("file", "", "dataset YAML; defaults to the built-in user dataset")
	locale := fs.String("locale", "zh-CN", "label locale")
	asJSON := fs.Bool("json", false, "print JSON instead of YAML")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadDataset(*file)
	if err != nil {
		return err
	}
	spec := cfg.Localize(dataset.ParseLocale(*locale))
	if *asJSON {
		enc := json.NewEncoder(c.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	}
	enc := yaml.NewEncoder(c.Out)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return err
	}
	return enc.Close()
}

// validate checks a JSON array of records the way the submit endpoint does.
func (c CLI) validate(args []string) error {
	fs := c.flags("validate")
	file := fs.String("file", "", "dataset YAML; defaults to the built-in user dataset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("validate takes one records file")
	}

	cfg, err := loadDataset(*file)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	var records []dataset.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}

	verrs := cfg.ValidateAll(records)
	for _, e := range verrs {
		fmt.Fprintf(c.Out, "record %d: %s: %s (%s)\n", e.Index, e.Field, e.Message, e.Rule)
	}
	if len(verrs) > 0 {
		return fmt.Errorf("%d of %d records invalid", countRecords(verrs), len(records))
	}
	fmt.Fprintf(c.Out, "%d records valid\n", len(records))
	return nil
}

func countRecords(verrs dataset.ValidationErrors) int {
	seen := map[int]bool{}
	for _, e := range verrs {
		seen[e.Index] = true
	}
	return len(seen)
}

func (c CLI) export(args []string) error {
	fs := c.flags("export")
	dbPath := fs.String("db", "usergrid.db", "SQLite database path")
	formatName := fs.String("format", "csv", "csv or xlsx")
	out := fs.String("out", "", "output file; defaults to user.<format>")
	locale := fs.String("locale", "zh-CN", "header locale")
	file := fs.String("file", "", "dataset YAML; defaults to the built-in user dataset")
	timeout := fs.Duration("timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	cfg, err := loadDataset(*file)
	if err != nil {
		return err
	}
	if *out == "" {
		*out = cfg.Name + "." + string(format)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := userstore.Open(ctx, *dbPath, userstore.DefaultOptions(), 0)
	if err != nil {
		return err
	}
	store := userstore.New(db, nil)
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	users, _, err := store.List(ctx, userstore.Query{})
	if err != nil {
		return err
	}
	records := make([]dataset.Record, len(users))
	for i, u := range users {
		records[i] = u.Record()
	}
	table := export.FromRecords(records, cfg.FieldNames(), cfg.Labels(dataset.ParseLocale(*locale)))

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, table, cfg.Name); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "wrote %d %s to %s\n", len(records), plural(len(records), "record"), *out)
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// query reads one page from a running server through a dataset mirror and
// prints either the loaded records or the payload a submit would send.
func (c CLI) query(args []string) error {
	fs := c.flags("query")
	baseURL := fs.String("url", "http://localhost:8080", "server base URL")
	page := fs.Int("page", 1, "page to read")
	fields := fs.StringToString("field", nil, "query field value, e.g. name=Ann (repeatable)")
	params := fs.StringToString("param", nil, "extra query parameter, e.g. customPara=test (repeatable)")
	jsonData := fs.Bool("json-data", false, "print the submit payload instead of the records")
	file := fs.String("file", "", "dataset YAML; defaults to the built-in user dataset")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadDataset(*file)
	if err != nil {
		return err
	}
	data := dataset.Record{}
	for name, v := range *fields {
		if _, ok := cfg.QueryField(name); !ok {
			return fmt.Errorf("unknown query field %q", name)
		}
		data[name] = v
	}

	logger := c.logger()
	defer logger.Sync()

	ds := dataset.New(cfg)
	for k, v := range *params {
		ds.SetQueryParameter(k, v)
	}
	ds.OnQuery(func(ev dataset.QueryEvent) {
		logger.Info("query", zap.Any("params", ev.Params), zap.Any("data", ev.Data))
	})
	ds.OnLoad(func(ev dataset.LoadEvent) {
		logger.Info("load", zap.Int("records", ev.DataSet.Len()), zap.Int("total", ev.Total), zap.Int("page", ev.DataSet.Page()))
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := &http.Client{Timeout: *timeout}
	if err := ds.Fetch(ctx, client, strings.TrimRight(*baseURL, "/"), *page, data); err != nil {
		return err
	}

	out := ds.ToData()
	if *jsonData {
		out = ds.ToJSONData()
	}
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
