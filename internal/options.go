package internal

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"time"
)

// Options - public options from CLI.
type Options struct {
	Path                 string
	Format               OutputFormat
	RuleCorpus           string
	RuleTimeout          time.Duration
	ScanCompressed       bool
	DecompressionBuffer  int64 // bytes
	FileHashes           []string
	FilenameRegexes      []string
	Levenshtein          bool
	LevenshteinThreshold int
	LevenshteinNames     []string
	Threads              int
	Progress             bool
	PrintStrings         bool

	filenamePatterns []*regexp.Regexp
}

// Validate checks invariants before any scanning starts.
func (o *Options) Validate() error {
	if o.Path == "" {
		return errors.New("path is required")
	}
	if st, err := os.Stat(o.Path); err != nil || !st.IsDir() {
		return fmt.Errorf("path is not a readable directory: %s", o.Path)
	}
	if o.RuleCorpus != "" {
		if _, err := os.Stat(o.RuleCorpus); err != nil {
			return fmt.Errorf("unable to read rules from %q: %w", o.RuleCorpus, err)
		}
	}
	switch o.Format {
	case FormatCSV, FormatTxt, FormatJSON:
	default:
		return fmt.Errorf("unknown output format %q", o.Format)
	}
	if o.RuleCorpus == "" && len(o.FileHashes) == 0 && len(o.FilenameRegexes) == 0 && !o.Levenshtein {
		return errors.New("no scanner enabled: supply rules, file hashes, filename patterns or --levenshtein")
	}
	return nil
}

// Prepare compiles patterns and fills derived defaults. Regex
// compilation happens here so bad expressions fail the run up front.
func (o *Options) Prepare() error {
	o.filenamePatterns = o.filenamePatterns[:0]
	for _, expr := range o.FilenameRegexes {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid filename pattern %q: %w", expr, err)
		}
		o.filenamePatterns = append(o.filenamePatterns, re)
	}
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
	if o.RuleTimeout <= 0 {
		o.RuleTimeout = 240 * time.Second
	}
	if o.DecompressionBuffer <= 0 {
		o.DecompressionBuffer = 128 << 20
	}
	return nil
}

func (o *Options) FilenamePatterns() []*regexp.Regexp { return o.filenamePatterns }
