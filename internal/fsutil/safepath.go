// Package fsutil contains filesystem path containment helpers.
package fsutil

import (
	"errors"
	"path/filepath"
	"strings"
)

var ErrPathTraversal = errors.New("path escapes root")

// WithinRoot maps a slash-separated relative path to a local filesystem
// path under root, rejecting any traversal outside root. It is the
// backstop behind segment validation: even a path that slipped through
// cannot name a directory above the photo root.
func WithinRoot(root, rel string) (string, error) {
	if root == "" {
		return "", errors.New("root is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	// Force relative paths.
	p := strings.TrimLeft(rel, "/\\")
	joined := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(p)))

	if !isWithin(rootAbs, joined) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

func isWithin(root, candidate string) bool {
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}
