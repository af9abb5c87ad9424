package scanner

import (
	"fmt"

	"github.com/xrash/smetrics"
)

// DefaultLevenshteinThreshold reports basenames within edit distance 1
// of a reference name, which covers single-character impersonation
// tricks like "svch0st.exe".
const DefaultLevenshteinThreshold = 1

// wellKnownNames are process names commonly impersonated by malware.
var wellKnownNames = []string{
	"svchost.exe",
	"explorer.exe",
	"iexplore.exe",
	"lsass.exe",
	"winlogon.exe",
	"csrss.exe",
	"smss.exe",
	"services.exe",
}

// LevenshteinScanner flags basenames that are near misses of reference
// names. Exact matches are deliberately excluded: distance zero is the
// business of the exact matchers, this scanner only catches *near*
// misses.
type LevenshteinScanner struct {
	references []string
	threshold  int
}

func NewLevenshteinScanner() *LevenshteinScanner {
	return &LevenshteinScanner{
		references: wellKnownNames,
		threshold:  DefaultLevenshteinThreshold,
	}
}

func (s *LevenshteinScanner) WithReferences(names []string) *LevenshteinScanner {
	if len(names) > 0 {
		s.references = names
	}
	return s
}

func (s *LevenshteinScanner) WithThreshold(n int) *LevenshteinScanner {
	if n > 0 {
		s.threshold = n
	}
	return s
}

func (s *LevenshteinScanner) Name() string { return "levenshtein" }

func (s *LevenshteinScanner) Scan(entry Entry) ([]Finding, error) {
	var findings []Finding
	for _, ref := range s.references {
		d := smetrics.WagnerFischer(entry.Name, ref, 1, 1, 1)
		if d == 0 || d > s.threshold {
			continue
		}
		findings = append(findings, Finding{
			Scanner:     s.Name(),
			Match:       ref,
			Description: fmt.Sprintf("filename %q is within distance %d of %q", entry.Name, d, ref),
		})
	}
	return findings, nil
}
