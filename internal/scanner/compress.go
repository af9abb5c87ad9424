package scanner

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

// DefaultDecompressionBuffer caps decompressed bytes per scan call.
const DefaultDecompressionBuffer = 128 << 20 // 128 MiB

// IsCompressed by extension. O(1) map lookup
var compressedExt = map[string]struct{}{
	".gz": {}, ".bz2": {}, ".xz": {}, ".zst": {},
	".br": {}, ".lz4": {}, ".lz": {}, ".sz": {}, ".zz": {},
}

func IsCompressed(path string) bool {
	_, ok := compressedExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

func openArchiveFS(path string) (iofs.FS, func() error, error) {
	fsys, err := archives.FileSystem(context.Background(), path, nil)
	if err != nil {
		return nil, nil, err
	}
	closeFS := func() error {
		if closer, ok := fsys.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}
	return fsys, closeFS, nil
}

type boundedReadCloser struct {
	io.Reader
	closers []func() error
}

func (b *boundedReadCloser) Close() error {
	var err error
	for _, c := range b.closers {
		if e := c(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// OpenDecompressed returns a reader over the decompressed content of a
// compressed file, truncated at max bytes. The cap keeps memory bounded
// even for decompression bombs; matches past the cap are simply missed.
func OpenDecompressed(path string, max int64) (io.ReadCloser, error) {
	if max <= 0 {
		max = DefaultDecompressionBuffer
	}
	fsys, closeFS, err := openArchiveFS(path)
	if err != nil {
		return nil, err
	}

	var inner string
	err = iofs.WalkDir(fsys, ".", func(p string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		inner = p
		return iofs.SkipAll
	})
	if err != nil || inner == "" {
		closeFS()
		if err == nil {
			err = errors.New("no decompressible content")
		}
		return nil, err
	}

	f, err := fsys.Open(inner)
	if err != nil {
		closeFS()
		return nil, err
	}
	return &boundedReadCloser{
		Reader:  io.LimitReader(f, max),
		closers: []func() error{f.Close, closeFS},
	}, nil
}
