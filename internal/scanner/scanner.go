package scanner

import "path/filepath"

// Entry is one regular file handed to the scanner set.
type Entry struct {
	Path string
	Name string
}

func NewEntry(path string) Entry {
	return Entry{Path: path, Name: filepath.Base(path)}
}

// MatchedString is one matched region inside a scanned file.
type MatchedString struct {
	Offset int64  `json:"offset"`
	Data   string `json:"data"`
}

// Finding is a single detection event from one scanner for one file.
type Finding struct {
	Scanner     string
	Match       string
	Description string
	Strings     []MatchedString
}

// Result collects all findings for one file, in scanner-set order.
type Result struct {
	Path     string
	Findings []Finding
}

func NewResult(entry Entry) *Result {
	return &Result{Path: entry.Path}
}

func (r *Result) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}

func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// FileScanner is one detection technique. Implementations hold no
// mutable state across calls and are safe for concurrent use from
// multiple workers.
type FileScanner interface {
	Name() string
	Scan(entry Entry) ([]Finding, error)
}
