package scanner

import (
	"bufio"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// RuleExt is the extension rule files must carry when the corpus
	// is a directory or a zip archive.
	RuleExt = ".rules"

	DefaultRuleTimeout = 240 * time.Second

	maxRuleStrings = 32 // per rule per file
)

// Rule - fast interface for line match.
type Rule interface {
	Match(string) bool
	Find(string) []MatchedString // offsets relative to the line start
	ID() string
}

type RegexRule struct {
	re *regexp.Regexp
	id string
}

func (r *RegexRule) Match(s string) bool { return r.re.MatchString(s) }
func (r *RegexRule) ID() string          { return r.id }

func (r *RegexRule) Find(s string) []MatchedString {
	var out []MatchedString
	for _, loc := range r.re.FindAllStringIndex(s, maxRuleStrings) {
		out = append(out, MatchedString{Offset: int64(loc[0]), Data: s[loc[0]:loc[1]]})
	}
	return out
}

type PlainRule struct {
	s  string
	id string
}

func (r *PlainRule) ID() string          { return r.id }
func (r *PlainRule) Match(s string) bool { return strings.Contains(s, r.s) }

func (r *PlainRule) Find(s string) []MatchedString {
	var out []MatchedString
	from := 0
	for len(out) < maxRuleStrings {
		i := strings.Index(s[from:], r.s)
		if i < 0 {
			break
		}
		at := from + i
		out = append(out, MatchedString{Offset: int64(at), Data: s[at : at+len(r.s)]})
		from = at + len(r.s)
	}
	return out
}

// ParseRules reads one rules file.
// Lines:
//
//	foo
//	plain:i:bar
//	re:^user=\w+$
//
// Blank lines and '#' comments are skipped. Rule IDs are source:line.
func ParseRules(r io.Reader, source string) ([]Rule, error) {
	var rules []Rule
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id := fmt.Sprintf("%s:%d", source, lineNo)
		switch {
		case strings.HasPrefix(line, "re:"):
			re, err := regexp.Compile(line[3:])
			if err != nil {
				return nil, fmt.Errorf("invalid rule %s %q: %w", id, line, err)
			}
			rules = append(rules, &RegexRule{re: re, id: id})
		case strings.HasPrefix(line, "plain:i:"):
			// case folding changes byte lengths in Unicode; a folding
			// regex keeps match offsets valid for the original bytes
			re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(line[8:]))
			if err != nil {
				return nil, fmt.Errorf("invalid rule %s %q: %w", id, line, err)
			}
			rules = append(rules, &RegexRule{re: re, id: id})
		default:
			rules = append(rules, &PlainRule{s: line, id: id})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading rules from %s: %w", source, err)
	}
	return rules, nil
}

// LoadRuleCorpus loads rules from a single file, a zip archive of rule
// files, or a directory tree of rule files.
func LoadRuleCorpus(path string) ([]Rule, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("rule corpus: %w", err)
	}

	if st.IsDir() {
		var rules []Rule
		err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(p), RuleExt) {
				return err
			}
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()
			rs, err := ParseRules(f, filepath.Base(p))
			if err != nil {
				return err
			}
			rules = append(rules, rs...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("rule corpus %s: %w", path, err)
		}
		return rules, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return loadZippedRules(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rule corpus: %w", err)
	}
	defer f.Close()
	return ParseRules(f, filepath.Base(path))
}

func loadZippedRules(path string) ([]Rule, error) {
	fsys, closeFS, err := openArchiveFS(path)
	if err != nil {
		return nil, fmt.Errorf("rule corpus %s: %w", path, err)
	}
	defer closeFS()

	var rules []Rule
	err = iofs.WalkDir(fsys, ".", func(inner string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(inner), RuleExt) {
			return err
		}
		f, err := fsys.Open(inner)
		if err != nil {
			return err
		}
		defer f.Close()
		rs, err := ParseRules(f, inner)
		if err != nil {
			return err
		}
		rules = append(rules, rs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rule corpus %s: %w", path, err)
	}
	return rules, nil
}

// RuleScanner evaluates the rule corpus against file content.
type RuleScanner struct {
	rules          []Rule
	timeout        time.Duration
	scanCompressed bool
	bufferSize     int64
}

// NewRuleScanner loads the corpus once; the scanner is immutable and
// shared by all workers afterwards.
func NewRuleScanner(corpus string) (*RuleScanner, error) {
	rules, err := LoadRuleCorpus(corpus)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("Loaded %d rules from %s", len(rules), corpus)
	return &RuleScanner{rules: rules, timeout: DefaultRuleTimeout}, nil
}

func (s *RuleScanner) WithTimeout(d time.Duration) *RuleScanner {
	s.timeout = d
	return s
}

func (s *RuleScanner) WithScanCompressed(enabled bool) *RuleScanner {
	s.scanCompressed = enabled
	return s
}

// WithBufferSize caps, per invocation, how many decompressed bytes are
// read from a compressed file.
func (s *RuleScanner) WithBufferSize(bytes int64) *RuleScanner {
	s.bufferSize = bytes
	return s
}

func (s *RuleScanner) Name() string { return "rules" }

func (s *RuleScanner) RuleCount() int { return len(s.rules) }

// Scan evaluates all rules against the file content. Evaluation races
// against the configured timeout; on timeout the file's partial matches
// are discarded and an error is returned.
func (s *RuleScanner) Scan(entry Entry) ([]Finding, error) {
	rc, err := s.open(entry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	type evalOut struct {
		findings []Finding
		err      error
	}
	done := make(chan evalOut, 1)
	go func() {
		f, err := s.evaluate(rc)
		done <- evalOut{f, err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		return out.findings, out.err
	case <-timer.C:
		// the deferred Close unblocks the evaluation goroutine
		return nil, fmt.Errorf("rule scan of %s exceeded %s", entry.Path, s.timeout)
	}
}

func (s *RuleScanner) open(entry Entry) (io.ReadCloser, error) {
	if s.scanCompressed && IsCompressed(entry.Path) {
		return OpenDecompressed(entry.Path, s.bufferSize)
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *RuleScanner) evaluate(r io.Reader) ([]Finding, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	matched := make(map[int][]MatchedString)
	var offset int64

	for {
		b, err := br.ReadBytes('\n')
		if len(b) > 0 {
			line := string(b)
			for i, rule := range s.rules {
				if len(matched[i]) >= maxRuleStrings {
					continue
				}
				if !rule.Match(line) {
					continue
				}
				for _, ms := range rule.Find(line) {
					ms.Offset += offset
					ms.Data = strings.TrimRight(ms.Data, "\r\n")
					matched[i] = append(matched[i], ms)
					if len(matched[i]) >= maxRuleStrings {
						break
					}
				}
				if len(matched[i]) == 0 {
					matched[i] = []MatchedString{}
				}
			}
			offset += int64(len(b))
		}
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			break
		}
	}

	var findings []Finding
	for i, rule := range s.rules {
		strs, ok := matched[i]
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			Scanner:     s.Name(),
			Match:       rule.ID(),
			Description: fmt.Sprintf("rule %s matched", rule.ID()),
			Strings:     strs,
		})
	}
	return findings, nil
}
