package internal

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/janstarke/dionysos/internal/scanner"
)

// EnumerateFiles walks root and hands every regular file to send.
// Unreadable entries are logged and skipped so the walk makes maximum
// progress; traversal order is whatever the filesystem yields.
func EnumerateFiles(ctx context.Context, root string, send func(scanner.Entry) error) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logrus.WithError(err).WithField("path", path).Debug("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return send(scanner.NewEntry(path))
	})
}

// CountFiles does a throwaway walk just to size the progress bar.
func CountFiles(ctx context.Context, root string) int64 {
	var n int64
	_ = EnumerateFiles(ctx, root, func(scanner.Entry) error {
		n++
		return nil
	})
	return n
}
