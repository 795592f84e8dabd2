// Command pagesweep removes blank pages from PDF files.
//
// Usage:
//
//	pagesweep [flags] file.pdf...
//
// Each input is written as cleaned_<name> next to the original unless -o or
// -outdir is given.
//
// Exit status is 0 on success, 1 when any input failed, 2 on usage errors and
// 3 when an input had only blank pages and nothing was written for it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/tsawler/pagesweep"
	"github.com/tsawler/pagesweep/format"
	"github.com/tsawler/pagesweep/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

type flags struct {
	output     string
	outDir     string
	dryRun     bool
	allowEmpty bool
	configPath string
	maxSize    string
	verbose    bool
}

// Exit statuses.
const (
	exitOK       = 0
	exitFailed   = 1
	exitUsage    = 2
	exitAllBlank = 3
)

// run executes the command and returns the exit status. A failed input
// outranks an all-blank one.
func run(args []string, stdout, stderr io.Writer, lookup config.LookupFunc) int {
	fs := flag.NewFlagSet("pagesweep", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f flags
	fs.StringVar(&f.output, "o", "", "Output path (single input only)")
	fs.StringVar(&f.outDir, "outdir", "", "Directory for cleaned files (default: next to each input)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Report per-page verdicts without writing output")
	fs.BoolVar(&f.allowEmpty, "allow-empty", false, "Write a zero-page document when every page is blank")
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML or JSON config file")
	fs.StringVar(&f.maxSize, "max-size", "", "Largest accepted input, e.g. 64MiB")
	fs.BoolVar(&f.verbose, "v", false, "Verbose logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: pagesweep [flags] file.pdf...")
		fs.PrintDefaults()
		fmt.Fprintln(stderr, "\nExit status: 0 ok, 1 an input failed, 2 usage error, 3 an input was entirely blank (nothing written without -allow-empty).")
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if f.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	inputs := fs.Args()
	if len(inputs) == 0 {
		fs.Usage()
		return exitUsage
	}
	if f.output != "" && len(inputs) > 1 {
		log.Error().Msg("-o requires a single input")
		return exitUsage
	}

	cfg, err := loadConfig(fs, f, lookup)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return exitUsage
	}
	log.Debug().Str("max_input_size", cfg.MaxInputSize).Bool("allow_empty", cfg.AllowEmpty).Msg("configuration loaded")

	status := exitOK
	for _, in := range inputs {
		var err error
		if f.dryRun {
			err = analyze(in, cfg, stdout, log)
		} else {
			err = clean(in, outputPath(in, f.output, cfg), cfg, stdout, log)
		}
		switch {
		case errors.Is(err, pagesweep.ErrNoPagesKept):
			if status == exitOK {
				status = exitAllBlank
			}
		case err != nil:
			log.Error().Err(err).Str("file", in).Str("format", sniff(in)).Msg("failed")
			status = exitFailed
		}
	}
	return status
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set explicitly.
func loadConfig(fs *flag.FlagSet, f flags, lookup config.LookupFunc) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "allow-empty":
			cfg.AllowEmpty = f.allowEmpty
		case "outdir":
			cfg.Output.Dir = f.outDir
		case "max-size":
			cfg.MaxInputSize = f.maxSize
		}
	})
	return cfg, cfg.Validate()
}

func outputPath(in, explicit string, cfg config.Config) string {
	if explicit != "" {
		return explicit
	}
	dir := cfg.Output.Dir
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, cfg.OutputName(in))
}

func clean(in, out string, cfg config.Config, stdout io.Writer, log zerolog.Logger) error {
	res, err := pagesweep.Open(in).With(cfg.Options()...).Clean()
	if errors.Is(err, pagesweep.ErrNoPagesKept) {
		fmt.Fprintf(stdout, "%s: all %d pages are blank, nothing written (use -allow-empty to write an empty document)\n", in, res.TotalPages)
		return err
	}
	if err != nil {
		return err
	}
	logWarnings(log, in, res.Warnings)

	if err := os.WriteFile(out, res.Output, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(stdout, "%s: %d pages, removed %d, kept %d -> %s (%s)\n",
		in, res.TotalPages, res.RemovedPages, res.KeptPages(), out, humanize.Bytes(uint64(len(res.Output))))
	if res.AllRemoved() {
		log.Warn().Str("file", in).Msg("every page was blank; wrote a zero-page document")
	}
	return nil
}

func analyze(in string, cfg config.Config, stdout io.Writer, log zerolog.Logger) error {
	res, err := pagesweep.Open(in).With(cfg.Options()...).Analyze()
	if err != nil {
		return err
	}
	logWarnings(log, in, res.Warnings)

	fmt.Fprintf(stdout, "%s: %d pages, %d blank\n", in, res.TotalPages, res.RemovedPages)
	for _, v := range res.Verdicts {
		verdict := "keep"
		if v.Blank {
			verdict = "blank"
		}
		fmt.Fprintf(stdout, "  page %d: %s (%s)\n", v.Page, verdict, v.Evidence)
	}
	return nil
}

// sniff names the kind of file in, for error reports.
func sniff(in string) string {
	f, err := os.Open(in)
	if err != nil {
		return format.Unknown.String()
	}
	defer f.Close()
	head := make([]byte, 4096)
	n, _ := io.ReadFull(f, head)
	return format.Detect(head[:n]).String()
}

func logWarnings(log zerolog.Logger, in string, warnings []pagesweep.Warning) {
	for _, w := range warnings {
		log.Warn().Str("file", in).Int("page", w.Page).Msg(w.Message)
	}
}
