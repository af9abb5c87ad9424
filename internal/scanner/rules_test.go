package scanner

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseRules(t *testing.T) {
	content := `# comment
secret
plain:i:BAR

re:token-\d+
`
	rules, err := ParseRules(strings.NewReader(content), "base.rules")
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	if rules[0].ID() != "base.rules:2" {
		t.Fatalf("unexpected id: %s", rules[0].ID())
	}
	if !rules[1].Match("xxx bAr yyy") {
		t.Error("insensitive rule did not match")
	}
	if !rules[2].Match("token-123") || rules[2].Match("token-x") {
		t.Error("regex rule mismatch")
	}
}

func TestInsensitiveRule_UnicodeFold(t *testing.T) {
	rules, err := ParseRules(strings.NewReader("plain:i:x\n"), "r.rules")
	if err != nil {
		t.Fatal(err)
	}
	// "Ⱥ" (2 bytes) lowercases to "ⱥ" (3 bytes); offsets must still
	// index the original bytes without running past the end
	ms := rules[0].Find("ȺȺȺȺx")
	if len(ms) != 1 {
		t.Fatalf("expected 1 match, got %d", len(ms))
	}
	if ms[0].Offset != 8 || ms[0].Data != "x" {
		t.Fatalf("bad match: %+v", ms[0])
	}
	if !rules[0].Match("ȺȺȺȺX") {
		t.Error("insensitive rule did not match uppercase")
	}
}

func TestParseRules_InvalidRegex(t *testing.T) {
	_, err := ParseRules(strings.NewReader("re:[\n"), "bad.rules")
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestRuleFind_Offsets(t *testing.T) {
	rules, err := ParseRules(strings.NewReader("abc"), "r.rules")
	if err != nil {
		t.Fatal(err)
	}
	ms := rules[0].Find("xxabcyyabc")
	if len(ms) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(ms))
	}
	if ms[0].Offset != 2 || ms[1].Offset != 7 {
		t.Fatalf("bad offsets: %v", ms)
	}
	if ms[0].Data != "abc" {
		t.Fatalf("bad data: %q", ms[0].Data)
	}
}

func TestLoadRuleCorpus_Directory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(dir, "a.rules"), []byte("foo\n"), 0644)
	_ = os.WriteFile(filepath.Join(sub, "b.rules"), []byte("bar\nbaz\n"), 0644)
	_ = os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("nope\n"), 0644)

	rules, err := LoadRuleCorpus(dir)
	if err != nil {
		t.Fatalf("LoadRuleCorpus: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules from *.rules only, got %d", len(rules))
	}
}

func TestLoadRuleCorpus_Zip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "corpus.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("inner.rules")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("evilstring\nre:^x+$\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	rules, err := LoadRuleCorpus(zipPath)
	if err != nil {
		t.Fatalf("LoadRuleCorpus(zip): %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
}

func TestLoadRuleCorpus_Missing(t *testing.T) {
	if _, err := LoadRuleCorpus(filepath.Join(t.TempDir(), "nope.rules")); err == nil {
		t.Fatal("expected error for missing corpus")
	}
}

func TestRuleScanner_Scan(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "r.rules")
	_ = os.WriteFile(corpus, []byte("secret\nre:token-\\d+\nplain:i:NOPE\n"), 0644)

	target := filepath.Join(dir, "data.txt")
	_ = os.WriteFile(target, []byte("hello\na secret line\ntoken-42 here\n"), 0644)

	rs, err := NewRuleScanner(corpus)
	if err != nil {
		t.Fatal(err)
	}
	rs.WithTimeout(10 * time.Second)

	findings, err := rs.Scan(NewEntry(target))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	// finding order follows rule order
	if findings[0].Match != "r.rules:1" || findings[1].Match != "r.rules:2" {
		t.Fatalf("unexpected rule ids: %s, %s", findings[0].Match, findings[1].Match)
	}
	if len(findings[0].Strings) != 1 || findings[0].Strings[0].Data != "secret" {
		t.Fatalf("bad matched strings: %v", findings[0].Strings)
	}
	if findings[0].Strings[0].Offset != 8 {
		t.Fatalf("bad offset: %d", findings[0].Strings[0].Offset)
	}
}

func TestRuleScanner_NoMatchIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "r.rules")
	_ = os.WriteFile(corpus, []byte("nothinghere\n"), 0644)
	target := filepath.Join(dir, "clean.txt")
	_ = os.WriteFile(target, []byte("just text\n"), 0644)

	rs, err := NewRuleScanner(corpus)
	if err != nil {
		t.Fatal(err)
	}
	findings, err := rs.Scan(NewEntry(target))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %d", len(findings))
	}
}

func TestRuleScanner_Timeout(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "r.rules")
	_ = os.WriteFile(corpus, []byte("needle\nre:x+y+z+\n"), 0644)

	// big enough that evaluation cannot finish within a nanosecond
	big := filepath.Join(dir, "big.log")
	_ = os.WriteFile(big, []byte(strings.Repeat("filler line without matches\n", 200000)), 0644)

	rs, err := NewRuleScanner(corpus)
	if err != nil {
		t.Fatal(err)
	}
	rs.WithTimeout(time.Nanosecond)

	findings, err := rs.Scan(NewEntry(big))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if findings != nil {
		t.Fatalf("timeout must discard partial findings, got %d", len(findings))
	}

	// the scanner stays usable for the next file
	small := filepath.Join(dir, "small.txt")
	_ = os.WriteFile(small, []byte("has needle inside\n"), 0644)
	rs.WithTimeout(10 * time.Second)
	findings, err = rs.Scan(NewEntry(small))
	if err != nil {
		t.Fatalf("unexpected error after timeout: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
}

func TestRuleScanner_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "r.rules")
	_ = os.WriteFile(corpus, []byte("x\n"), 0644)

	rs, err := NewRuleScanner(corpus)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rs.Scan(NewEntry(filepath.Join(dir, "missing.bin"))); err == nil {
		t.Fatal("expected error for unreadable file")
	}
}
