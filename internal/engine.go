package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/janstarke/dionysos/internal/scanner"
)

// BuildScanners assembles the immutable scanner set once, in the order
// the scanners will run on every file.
func BuildScanners(opts Options) ([]scanner.FileScanner, error) {
	var set []scanner.FileScanner

	if opts.RuleCorpus != "" {
		rs, err := scanner.NewRuleScanner(opts.RuleCorpus)
		if err != nil {
			return nil, err
		}
		rs.WithTimeout(opts.RuleTimeout).
			WithScanCompressed(opts.ScanCompressed).
			WithBufferSize(opts.DecompressionBuffer)
		set = append(set, rs)
	}
	if patterns := opts.FilenamePatterns(); len(patterns) > 0 {
		set = append(set, scanner.NewFilenameScanner(patterns))
	}
	if opts.Levenshtein {
		set = append(set, scanner.NewLevenshteinScanner().
			WithReferences(opts.LevenshteinNames).
			WithThreshold(opts.LevenshteinThreshold))
	}
	if len(opts.FileHashes) > 0 {
		hs, err := scanner.NewHashScanner(opts.FileHashes)
		if err != nil {
			return nil, err
		}
		set = append(set, hs)
	}
	return set, nil
}

// Engine runs the scan pipeline: one enumerator, N workers applying the
// scanner set, one writer draining results in arrival order.
type Engine struct {
	opts     Options
	scanners []scanner.FileScanner
	stats    *RunStats
}

func NewEngine(opts Options, scanners []scanner.FileScanner, stats *RunStats) *Engine {
	return &Engine{opts: opts, scanners: scanners, stats: stats}
}

// Run is the main pipeline. It returns when the tree is exhausted and
// every result has been drained, or when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, out *ResultWriter) error {
	e.stats.Start()

	var progress *Progress
	if e.opts.Progress {
		progress = NewProgress(CountFiles(ctx, e.opts.Path))
	}

	entryCh := make(chan scanner.Entry, 2048)
	resultCh := make(chan *scanner.Result, 256)

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(e.opts.Threads, func(i interface{}) {
		defer wg.Done()
		entry := i.(scanner.Entry)
		res := e.scanEntry(entry)
		e.stats.FilesScanned.Add(1)
		select {
		case resultCh <- res:
		case <-ctx.Done():
			// hand-off lost; fatal for this task only
			logrus.WithField("file", entry.Path).Warn("run cancelled before result hand-off")
		}
	})
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	defer pool.Release()

	// walker
	walkErr := make(chan error, 1)
	go func() {
		defer close(entryCh)
		walkErr <- EnumerateFiles(ctx, e.opts.Path, func(en scanner.Entry) error {
			select {
			case entryCh <- en:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	// writer: single consumer, drains to completion even if the sink
	// goes bad, so workers never wedge on a full result channel
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sinkBroken := false
		for res := range resultCh {
			if !res.HasFindings() {
				continue
			}
			e.stats.Findings.Add(int64(len(res.Findings)))
			if sinkBroken {
				continue
			}
			if err := out.Write(res); err != nil {
				logrus.WithError(err).Error("output sink failed, draining remaining results")
				sinkBroken = true
			}
		}
	}()

	for entry := range entryCh {
		wg.Add(1)
		progress.Dispatch(entry.Name)
		if err := pool.Invoke(entry); err != nil {
			wg.Done()
			logrus.WithError(err).WithField("file", entry.Path).Error("submit entry")
		}
	}

	wg.Wait()
	close(resultCh)
	<-writerDone
	progress.Finish()

	if err := out.Flush(); err != nil {
		logrus.WithError(err).Error("flushing output")
	}
	return <-walkErr
}

// scanEntry runs the full scanner set over one file, in set order. A
// failing scanner contributes nothing for this file; the rest proceed.
func (e *Engine) scanEntry(entry scanner.Entry) *scanner.Result {
	result := scanner.NewResult(entry)
	for _, s := range e.scanners {
		logrus.WithFields(logrus.Fields{"scanner": s.Name(), "file": entry.Name}).Trace("scanner started")
		begin := time.Now()

		findings, err := s.Scan(entry)
		if err != nil {
			e.stats.ScannerErrors.Add(1)
			logrus.WithError(err).WithFields(logrus.Fields{"scanner": s.Name(), "file": entry.Path}).Error("scanner failed")
			continue
		}
		for _, f := range findings {
			result.Add(f)
		}

		logrus.WithFields(logrus.Fields{
			"scanner": s.Name(),
			"file":    entry.Name,
			"elapsed": time.Since(begin),
		}).Trace("scanner finished")
	}
	return result
}
