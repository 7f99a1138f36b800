// Package jailfs exposes an afero.Fs confined to a root directory.
// Every path is resolved through fsutil.WithinRoot before it touches
// the underlying filesystem, so callers cannot escape the photo root.
package jailfs

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"photokeep/internal/fsutil"
)

type FS struct {
	root string
	base afero.Fs
}

// New jails the OS filesystem to root.
func New(root string) *FS {
	return &FS{root: root, base: afero.NewOsFs()}
}

// NewWithBase jails an arbitrary afero.Fs, used with a memory
// filesystem in tests.
func NewWithBase(root string, base afero.Fs) *FS {
	return &FS{root: root, base: base}
}

func (f *FS) Create(name string) (afero.File, error) {
	p, err := f.local(name)
	if err != nil {
		return nil, err
	}
	if err := f.base.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}
	return f.base.Create(p)
}

func (f *FS) Mkdir(name string, perm os.FileMode) error {
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.base.Mkdir(p, perm)
}

func (f *FS) MkdirAll(path string, perm os.FileMode) error {
	p, err := f.local(path)
	if err != nil {
		return err
	}
	return f.base.MkdirAll(p, perm)
}

func (f *FS) Open(name string) (afero.File, error) {
	p, err := f.local(name)
	if err != nil {
		return nil, err
	}
	return f.base.Open(p)
}

func (f *FS) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	p, err := f.local(name)
	if err != nil {
		return nil, err
	}
	if flag&os.O_CREATE != 0 {
		if err := f.base.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return nil, err
		}
	}
	return f.base.OpenFile(p, flag, perm)
}

func (f *FS) Remove(name string) error {
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.base.Remove(p)
}

func (f *FS) RemoveAll(path string) error {
	p, err := f.local(path)
	if err != nil {
		return err
	}
	return f.base.RemoveAll(p)
}

func (f *FS) Rename(oldname, newname string) error {
	oldp, err := f.local(oldname)
	if err != nil {
		return err
	}
	newp, err := f.local(newname)
	if err != nil {
		return err
	}
	return f.base.Rename(oldp, newp)
}

func (f *FS) Stat(name string) (os.FileInfo, error) {
	p, err := f.local(name)
	if err != nil {
		return nil, err
	}
	return f.base.Stat(p)
}

func (f *FS) Name() string { return "jailfs" }

func (f *FS) Chmod(name string, mode os.FileMode) error {
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.base.Chmod(p, mode)
}

func (f *FS) Chown(name string, uid, gid int) error {
	return errors.New("chown not supported")
}

func (f *FS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.base.Chtimes(p, atime, mtime)
}

func (f *FS) local(name string) (string, error) {
	return fsutil.WithinRoot(f.root, name)
}
