package scanner

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIsCompressed(t *testing.T) {
	for _, p := range []string{"a.gz", "b.BZ2", "c.xz", "d.zst"} {
		if !IsCompressed(p) {
			t.Errorf("expected compressed for %s", p)
		}
	}
	if IsCompressed("a.txt") || IsCompressed("a.exe") {
		t.Error("plain extensions must not be compressed")
	}
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := io.WriteString(zw, content); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func TestOpenDecompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt.gz")
	writeGzip(t, path, "hidden secret content\n")

	rc, err := OpenDecompressed(path, 1<<20)
	if err != nil {
		t.Fatalf("OpenDecompressed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hidden secret content\n" {
		t.Fatalf("unexpected content: %q", string(data))
	}
}

func TestOpenDecompressed_BufferCeiling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt.gz")
	writeGzip(t, path, strings.Repeat("A", 4096))

	rc, err := OpenDecompressed(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 64 {
		t.Fatalf("ceiling not applied: read %d bytes", len(data))
	}
}

func TestRuleScanner_ScansCompressed(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "r.rules")
	_ = os.WriteFile(corpus, []byte("secret\n"), 0644)

	target := filepath.Join(dir, "data.log.gz")
	writeGzip(t, target, "nothing\nthe secret word\n")

	rs, err := NewRuleScanner(corpus)
	if err != nil {
		t.Fatal(err)
	}
	rs.WithScanCompressed(true).WithBufferSize(1 << 20).WithTimeout(10 * time.Second)

	findings, err := rs.Scan(NewEntry(target))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding from decompressed content, got %d", len(findings))
	}
	if findings[0].Strings[0].Data != "secret" {
		t.Fatalf("bad matched string: %v", findings[0].Strings)
	}
}
