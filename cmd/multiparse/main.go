// Command multiparse converts line-oriented files (plain, gzip or zstd)
// into JSON Lines using one of the registered parsers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"multiparse"
	"multiparse/modules/csvrecord"
	"multiparse/modules/webaccess"
)

const usage = `usage: multiparse <command> [options]

Commands:
  run   Run a parser over an input file (multithreaded)
  list  List available parsers and their descriptions

Run 'multiparse <command> -h' for details on a command.
`

func main() {
	// Do not handle SIGPIPE, we'll do it ourselves (see the EPIPE check in
	// runCmd).
	signal.Ignore(syscall.SIGPIPE)

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "multiparse: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}
	env := newEnv()
	switch args[0] {
	case "run":
		return runCmd(env, args[1:])
	case "list":
		return listCmd(args[1:])
	case "help", "-h", "-help", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// newEnv binds the MULTIPARSE_* environment variables that provide defaults
// for the run flags (MULTIPARSE_WORKERS, MULTIPARSE_CSV_HEADER,
// MULTIPARSE_CSV_DELIM, MULTIPARSE_WEB_FAST_TIME).
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("multiparse")
	v.AutomaticEnv()
	v.SetDefault("workers", runtime.GOMAXPROCS(0))
	v.SetDefault("csv_header", "")
	v.SetDefault("csv_delim", ",")
	v.SetDefault("web_fast_time", false)
	return v
}

// parserSettings carries the per-parser configuration resolved from flags
// and environment.
type parserSettings struct {
	csvHeader []string
	csvComma  rune
	fastTime  bool
}

// newRegistry wires the built-in parsers.  The registry is an explicit
// value constructed once per invocation; there is no global registration.
func newRegistry(s parserSettings) *multiparse.Registry {
	return multiparse.NewRegistry(
		webaccess.New(webaccess.Options{FastTime: s.fastTime}),
		csvrecord.New(csvrecord.Options{Header: s.csvHeader, Comma: s.csvComma}),
	)
}

func listCmd(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	colorMode := fs.String("color", "auto", "colorize output: auto, always, never")
	fs.Parse(args)

	var useColor bool
	switch *colorMode {
	case "always":
		useColor = true
	case "never":
	case "auto":
		useColor = isatty.IsTerminal(os.Stdout.Fd())
	default:
		return fmt.Errorf("invalid -color value: %q (use auto, always, or never)", *colorMode)
	}
	var stdout io.Writer = os.Stdout
	if useColor {
		stdout = colorable.NewColorableStdout()
	}

	reg := newRegistry(parserSettings{})
	fmt.Fprintln(stdout, "Available parsers:")
	for _, name := range reg.Names() {
		p, _ := reg.Lookup(name)
		padded := fmt.Sprintf("%-16s", name)
		if useColor {
			padded = "\x1b[1;36m" + padded + "\x1b[0m"
		}
		fmt.Fprintf(stdout, "  %s - %s\n", padded, p.Description())
	}
	return nil
}

func runCmd(env *viper.Viper, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	module := fs.String("module", "", "parser name (see 'multiparse list')")
	input := fs.String("input", "", "input file path (plain, gzip or zstd)")
	output := fs.String("output", "", "output file path (stdout if omitted)")
	workers := fs.Int("workers", env.GetInt("workers"), "number of worker goroutines")
	csvHeader := fs.String("csv-header", env.GetString("csv_header"), "comma-separated column names for the csv parser")
	csvDelim := fs.String("csv-delim", env.GetString("csv_delim"), `field delimiter for the csv parser (use \t for tab)`)
	fastTime := fs.Bool("fast-time", env.GetBool("web_fast_time"), "skip timestamp normalization in the web-access parser")
	onInvalid := fs.String("on-invalid", "skip", "handling of non-UTF-8 lines: skip or fail")
	quiet := fs.Bool("quiet", false, "only log errors")
	fs.Parse(args)

	if *module == "" {
		return errors.New("run: -module is required")
	}
	if *input == "" {
		return errors.New("run: -input is required")
	}
	var policy multiparse.Policy
	switch *onInvalid {
	case "skip":
		policy = multiparse.PolicySkip
	case "fail":
		policy = multiparse.PolicyFail
	default:
		return fmt.Errorf("invalid -on-invalid value: %q (use skip or fail)", *onInvalid)
	}

	logger := newLogger(*quiet)
	reg := newRegistry(parserSettings{
		csvHeader: csvrecord.ParseHeader(*csvHeader),
		csvComma:  csvrecord.ParseComma(*csvDelim),
		fastTime:  *fastTime,
	})
	parser, ok := reg.Lookup(*module)
	if !ok {
		return fmt.Errorf("unknown parser %q (see 'multiparse list')", *module)
	}

	info, err := os.Stat(*input)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	lineCount, err := multiparse.CountLines(*input)
	if err != nil {
		return err
	}
	logger.Info().
		Str("input", *input).
		Str("size", multiparse.FormatSize(uint64(info.Size()))).
		Uint64("lines", lineCount).
		Msg("input")
	logger.Info().
		Str("parser", parser.Name()).
		Int("workers", *workers).
		Msg("starting")

	in, err := multiparse.Open(*input)
	if err != nil {
		return err
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	var outFile *os.File
	if *output != "" {
		outFile, err = os.Create(*output)
		if err != nil {
			return fmt.Errorf("create %s: %w", *output, err)
		}
		out = outFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := multiparse.Run(ctx, parser, in, out, multiparse.Options{
		Workers: *workers,
		Policy:  policy,
		Logger:  logger,
	})
	if outFile != nil {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", *output, cerr)
		}
	}
	if err != nil {
		if errors.Is(err, syscall.EPIPE) {
			// stdout is a pipe and something closed it (e.g. 'head' or
			// 'less').  In this case we don't want to complain.
			return nil
		}
		return err
	}

	ev := logger.Info().
		Uint64("records", res.Records).
		Dur("elapsed", res.Elapsed).
		Float64("lines_per_sec", float64(lineCount)/res.Elapsed.Seconds())
	if lineCount > 0 {
		ev = ev.Float64("emit_ratio", float64(res.Records)/float64(lineCount))
	}
	target := "stdout"
	if *output != "" {
		target = *output
		if outInfo, serr := os.Stat(*output); serr == nil {
			ev = ev.Str("output_size", multiparse.FormatSize(uint64(outInfo.Size())))
		}
	}
	ev.Str("output", target).Msg("done")
	return nil
}

func newLogger(quiet bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if quiet {
		level = zerolog.ErrorLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}
