package internal

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// Progress renders operator feedback. It is purely observational: nil
// receivers are valid and every method is a no-op on them, so the
// pipeline never depends on it.
type Progress struct {
	bar *progressbar.ProgressBar
}

func NewProgress(total int64) *Progress {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionClearOnFinish(),
	)
	return &Progress{bar: bar}
}

// Dispatch records one file handed to a worker.
func (p *Progress) Dispatch(name string) {
	if p == nil {
		return
	}
	p.bar.Describe(name)
	_ = p.bar.Add(1)
}

func (p *Progress) Finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
