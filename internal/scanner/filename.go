package scanner

import (
	"fmt"
	"regexp"
)

// FilenameScanner matches compiled expressions against file basenames.
// Patterns are compiled at the CLI boundary so a bad expression fails
// the run before any scanning starts.
type FilenameScanner struct {
	patterns []*regexp.Regexp
}

func NewFilenameScanner(patterns []*regexp.Regexp) *FilenameScanner {
	return &FilenameScanner{patterns: patterns}
}

func (s *FilenameScanner) Name() string { return "filename" }

// Scan yields one finding per matching expression; expressions match
// independently of each other.
func (s *FilenameScanner) Scan(entry Entry) ([]Finding, error) {
	var findings []Finding
	for _, re := range s.patterns {
		if !re.MatchString(entry.Name) {
			continue
		}
		findings = append(findings, Finding{
			Scanner:     s.Name(),
			Match:       re.String(),
			Description: fmt.Sprintf("filename %q matches %q", entry.Name, re.String()),
		})
	}
	return findings, nil
}
