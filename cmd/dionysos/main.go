package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/janstarke/dionysos/internal"
)

func main() {
	app := &cli.App{
		Name:  "dionysos",
		Usage: "Scan a directory tree for threats by rules, hashes and filenames",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"P"},
				Usage:   "Directory which must be scanned",
				Value:   defaultRoot(),
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: csv, txt or json",
				Value:   "txt",
			},
			&cli.StringFlag{
				Name:    "rules",
				Aliases: []string{"Y"},
				Usage:   "Rule corpus: a single rules file, a zip of rules files, or a directory of rules files",
			},
			&cli.DurationFlag{
				Name:  "rule-timeout",
				Usage: "Time budget for rule evaluation per file",
				Value: 240 * time.Second,
			},
			&cli.BoolFlag{
				Name:    "print-strings",
				Aliases: []string{"s"},
				Usage:   "Disclose matched strings in the output",
			},
			&cli.BoolFlag{
				Name:    "scan-compressed",
				Aliases: []string{"C"},
				Usage:   "Also run rules against decompressed content (gz, bz2, xz, ...)",
			},
			&cli.Int64Flag{
				Name:  "decompression-buffer",
				Usage: "Maximum size (in MiB) of decompressed content per file",
				Value: 128,
			},
			&cli.StringSliceFlag{
				Name:    "file-hash",
				Aliases: []string{"H"},
				Usage:   "Hash to match against file content (MD5, SHA1 or SHA256, repeatable)",
			},
			&cli.StringSliceFlag{
				Name:    "filename",
				Aliases: []string{"F"},
				Usage:   "Regular expression to match against file basenames (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "levenshtein",
				Usage: "Flag basenames that nearly match well-known process names",
			},
			&cli.IntFlag{
				Name:  "levenshtein-threshold",
				Usage: "Maximum edit distance the levenshtein scanner reports",
				Value: 1,
			},
			&cli.StringSliceFlag{
				Name:  "levenshtein-name",
				Usage: "Reference filename for the levenshtein scanner (repeatable; replaces the built-in list)",
			},
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"p"},
				Usage:   "Number of scan workers (default scales with CPU)",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Display a progress bar (counts files up front)",
			},
			&cli.StringFlag{
				Name:    "log-file",
				Aliases: []string{"L"},
				Usage:   "Append logs to this file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: trace, debug, info, warn, error",
				Value: "info",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if err := internal.InitLogger(c.String("log-file"), c.String("log-level")); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	logrus.Info("dionysos started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := internal.Options{
		Path:                 c.String("path"),
		Format:               internal.OutputFormat(c.String("format")),
		RuleCorpus:           c.String("rules"),
		RuleTimeout:          c.Duration("rule-timeout"),
		ScanCompressed:       c.Bool("scan-compressed"),
		DecompressionBuffer:  c.Int64("decompression-buffer") << 20,
		FileHashes:           c.StringSlice("file-hash"),
		FilenameRegexes:      c.StringSlice("filename"),
		Levenshtein:          c.Bool("levenshtein"),
		LevenshteinThreshold: c.Int("levenshtein-threshold"),
		LevenshteinNames:     c.StringSlice("levenshtein-name"),
		Threads:              c.Int("threads"),
		Progress:             c.Bool("progress"),
		PrintStrings:         c.Bool("print-strings"),
	}
	if err := opts.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := opts.Prepare(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	scanners, err := internal.BuildScanners(opts)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var stats internal.RunStats
	engine := internal.NewEngine(opts, scanners, &stats)
	out := internal.NewResultWriter(opts.Format, os.Stdout, opts.PrintStrings)

	if err := engine.Run(ctx, out); err != nil {
		if ctx.Err() != nil {
			logrus.Warn("Scan cancelled")
		} else {
			logrus.WithError(err).Error("Scan failed")
		}
	}

	fmt.Fprintf(os.Stderr,
		"\n======= Scan finished in %s =======\nFiles scanned: %d\nFindings: %d\nScanner errors: %d\n",
		stats.Elapsed(), stats.FilesScanned.Load(), stats.Findings.Load(), stats.ScannerErrors.Load(),
	)
	return nil
}

func defaultRoot() string {
	if os.PathSeparator == '\\' {
		return "\\"
	}
	return "/"
}
