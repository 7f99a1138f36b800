package jailfs

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"photokeep/internal/fsutil"
)

// TestJailCreatesParentsAndConfines writes through the jail and checks
// both the file and the containment boundary.
func TestJailCreatesParentsAndConfines(t *testing.T) {
	root := t.TempDir()
	fs := NewWithBase(root, afero.NewOsFs())

	if err := afero.WriteFile(fs, "fttx/City/Street/5/12/a.jpg", []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := afero.ReadFile(fs, "fttx/City/Street/5/12/a.jpg")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "x" {
		t.Fatalf("payload = %q", b)
	}

	if _, err := fs.Open("../outside"); !errors.Is(err, fsutil.ErrPathTraversal) {
		t.Fatalf("Open(../outside) = %v, want ErrPathTraversal", err)
	}
	if err := fs.MkdirAll("a/../../b", 0o700); !errors.Is(err, fsutil.ErrPathTraversal) {
		t.Fatalf("MkdirAll escape = %v, want ErrPathTraversal", err)
	}
}
