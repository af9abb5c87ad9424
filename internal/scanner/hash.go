package scanner

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// HashAlgorithm is detected from the hex digest length of a configured
// hash, so operators can mix algorithms in one list.
type HashAlgorithm string

const (
	MD5    HashAlgorithm = "md5"
	SHA1   HashAlgorithm = "sha1"
	SHA256 HashAlgorithm = "sha256"
)

func detectAlgorithm(digest string) (HashAlgorithm, error) {
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("invalid hash %q: %w", digest, err)
	}
	switch len(digest) {
	case 32:
		return MD5, nil
	case 40:
		return SHA1, nil
	case 64:
		return SHA256, nil
	default:
		return "", fmt.Errorf("invalid hash %q: unsupported digest length %d", digest, len(digest))
	}
}

func newHasher(algo HashAlgorithm) hash.Hash {
	switch algo {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	default:
		return sha256.New()
	}
}

// HashScanner matches file content digests against a configured set.
// Only the algorithms that actually appear in the set are computed,
// in a single pass over the file.
type HashScanner struct {
	digests map[HashAlgorithm]map[string]struct{}
}

// NewHashScanner validates and indexes the configured digests. An
// unrecognized digest format is a configuration error.
func NewHashScanner(hashes []string) (*HashScanner, error) {
	s := &HashScanner{digests: make(map[HashAlgorithm]map[string]struct{})}
	for _, h := range hashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		algo, err := detectAlgorithm(h)
		if err != nil {
			return nil, err
		}
		if s.digests[algo] == nil {
			s.digests[algo] = make(map[string]struct{})
		}
		s.digests[algo][h] = struct{}{}
	}
	return s, nil
}

func (s *HashScanner) Name() string { return "hash" }

func (s *HashScanner) Scan(entry Entry) ([]Finding, error) {
	f, err := os.Open(entry.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	algos := make([]HashAlgorithm, 0, len(s.digests))
	hashers := make([]hash.Hash, 0, len(s.digests))
	writers := make([]io.Writer, 0, len(s.digests))
	for _, algo := range []HashAlgorithm{MD5, SHA1, SHA256} {
		if _, ok := s.digests[algo]; !ok {
			continue
		}
		h := newHasher(algo)
		algos = append(algos, algo)
		hashers = append(hashers, h)
		writers = append(writers, h)
	}
	if len(writers) == 0 {
		return nil, nil
	}
	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return nil, err
	}

	var findings []Finding
	for i, algo := range algos {
		sum := hex.EncodeToString(hashers[i].Sum(nil))
		if _, ok := s.digests[algo][sum]; !ok {
			continue
		}
		findings = append(findings, Finding{
			Scanner:     s.Name(),
			Match:       sum,
			Description: fmt.Sprintf("%s digest matches %s", algo, sum),
		})
	}
	return findings, nil
}
