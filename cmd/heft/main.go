// Package main is the entry point for the heft big-document scanner.
//
// heft loads the same configuration the embedding editor would, runs the
// given files through the detection lifecycle, and reports which of them
// count as big and what features they would lose.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/heft/internal/app"
	"github.com/dshills/heft/internal/config"
	"github.com/dshills/heft/internal/config/loader"
	"github.com/dshills/heft/internal/detect"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

type cliOptions struct {
	ConfigPath string
	LogLevel   string
	JSON       bool
	Overrides  overrideFlags
	Files      []string
}

// overrideFlags collects repeatable -set key=value flags.
type overrideFlags []string

func (o *overrideFlags) String() string {
	return strings.Join(*o, ",")
}

func (o *overrideFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*o = append(*o, v)
	return nil
}

func run() int {
	opts := parseFlags()

	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = loader.GetEnvOrDefault("HEFT_CONFIG", "")
	}

	// A one-shot scan has no use for a settings watcher.
	cfgOpts := []config.Option{config.WithWatcher(false)}
	if cfgPath != "" {
		cfgOpts = append(cfgOpts, config.WithUserConfigPath(cfgPath))
	}

	cfg := config.New(cfgOpts...)
	if err := cfg.Load(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return 1
	}
	defer cfg.Close()

	for _, kv := range opts.Overrides {
		parts := strings.SplitN(kv, "=", 2)
		if err := cfg.SetSession(parts[0], loader.ParseValue(parts[1])); err != nil {
			fmt.Fprintf(os.Stderr, "Error: -set %s: %v\n", kv, err)
			return 1
		}
	}

	var logger *app.Logger
	switch {
	case opts.JSON:
		// Keep stdout machine-readable; logging would interleave.
		logger = app.NullLogger
	case opts.LogLevel != "":
		logger = app.NewLogger(app.LoggerConfig{
			Level:  app.ParseLogLevel(opts.LogLevel),
			Output: os.Stderr,
			Prefix: "heft",
		})
		app.SetLogger(logger)
	}

	host, err := app.New(app.Options{Config: cfg, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer host.Close()

	immediate, deferred, err := host.FeaturePlan()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	timer := app.StartTimer()
	results, errs := scan(host, opts.Files)
	elapsed := timer.Elapsed()

	if opts.JSON {
		printJSON(host, results, immediate, deferred)
	} else {
		printReport(host, results, immediate, deferred, elapsed)
	}

	for _, scanErr := range errs.Errors() {
		fmt.Fprintf(os.Stderr, "Error: %v\n", scanErr)
	}
	if errs.HasErrors() {
		return 1
	}
	return 0
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (default $HEFT_CONFIG)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	flag.BoolVar(&opts.JSON, "json", false, "Write a JSON report to stdout")
	flag.Var(&opts.Overrides, "set", "Override a setting for this run (key=value, repeatable)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "heft - big-document detection scanner\n\n")
		fmt.Fprintf(os.Stderr, "Usage: heft [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  heft                               Report the active detection plan\n")
		fmt.Fprintf(os.Stderr, "  heft notes.md vendor.min.js        Scan files against the threshold\n")
		fmt.Fprintf(os.Stderr, "  heft -set bigdoc.filesize=1 *.go   Override a setting for one run\n")
		fmt.Fprintf(os.Stderr, "  heft -json big.log                 Machine-readable report\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("heft %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.LogLevel != "" {
		switch opts.LogLevel {
		case "debug", "info", "warn", "error":
			// Valid
		default:
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
			os.Exit(1)
		}
	}

	// Remaining arguments are files to scan
	opts.Files = flag.Args()

	return opts
}

// fileResult is one scanned file's outcome.
type fileResult struct {
	Path      string
	SizeBytes int64
	Verdict   detect.State
}

// scan runs each file through the open lifecycle and records its verdict.
// Files that fail to open are collected, not fatal.
func scan(host *app.Host, files []string) ([]fileResult, *app.ErrorList) {
	errs := app.NewErrorList()
	results := make([]fileResult, 0, len(files))

	for _, path := range files {
		doc, err := host.OpenDocument(context.Background(), path)
		if err != nil {
			errs.Add(err)
			continue
		}

		size, err := host.Documents().FileSize(doc.ID)
		if err != nil {
			size = 0
		}

		results = append(results, fileResult{
			Path:      doc.Path,
			SizeBytes: size,
			Verdict:   host.Verdict(doc.ID),
		})
	}

	return results, errs
}

func printReport(host *app.Host, results []fileResult, immediate, deferred []string, elapsed time.Duration) {
	bc := host.Config().BigDoc()

	fmt.Printf("heft %s\n", version)
	fmt.Printf("settings:  %s\n", host.Config().SettingsPath())
	fmt.Printf("threshold: %d %s\n", bc.Filesize, bc.FilesizeUnit)
	if bc.PredicateScript != "" {
		fmt.Printf("predicate: %s\n", bc.PredicateScript)
	} else if len(bc.Patterns) > 0 {
		fmt.Printf("patterns:  %s\n", strings.Join(bc.Patterns, ", "))
	}
	fmt.Printf("immediate: %s\n", strings.Join(immediate, ", "))
	fmt.Printf("deferred:  %s\n", strings.Join(deferred, ", "))

	if len(results) == 0 {
		return
	}

	fmt.Println()
	big := 0
	for _, r := range results {
		verdict := " ok"
		if r.Verdict == detect.StateBig {
			verdict = "BIG"
			big++
		}
		fmt.Printf("  %s  %s (%s)\n", verdict, r.Path, formatSize(r.SizeBytes))
	}

	fmt.Println()
	fmt.Printf("%d files scanned, %d big, in %.1fms\n",
		len(results), big, float64(elapsed.Nanoseconds())/1e6)
}

func printJSON(host *app.Host, results []fileResult, immediate, deferred []string) {
	bc := host.Config().BigDoc()

	out := "{}"
	out, _ = sjson.Set(out, "version", version)
	out, _ = sjson.Set(out, "settings", host.Config().SettingsPath())
	out, _ = sjson.Set(out, "threshold.filesize", bc.Filesize)
	out, _ = sjson.Set(out, "threshold.unit", bc.FilesizeUnit)
	if bc.PredicateScript != "" {
		out, _ = sjson.Set(out, "predicate", bc.PredicateScript)
	} else {
		out, _ = sjson.Set(out, "patterns", bc.Patterns)
	}
	out, _ = sjson.Set(out, "plan.immediate", immediate)
	out, _ = sjson.Set(out, "plan.deferred", deferred)

	big := 0
	out, _ = sjson.SetRaw(out, "files", "[]")
	for i, r := range results {
		key := fmt.Sprintf("files.%d", i)
		out, _ = sjson.Set(out, key+".path", r.Path)
		out, _ = sjson.Set(out, key+".sizeBytes", r.SizeBytes)
		out, _ = sjson.Set(out, key+".verdict", r.Verdict.String())
		if r.Verdict == detect.StateBig {
			big++
		}
	}
	out, _ = sjson.Set(out, "scanned", len(results))
	out, _ = sjson.Set(out, "big", big)

	_, _ = os.Stdout.Write(pretty.Pretty([]byte(out)))
}

// formatSize renders a byte count the way users read thresholds.
func formatSize(n int64) string {
	if n >= 1<<20 {
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	}
	return fmt.Sprintf("%d bytes", n)
}
