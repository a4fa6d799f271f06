// Package vos is the shell's boundary to the operating system. It covers the
// filesystem, standard streams and process creation so the rest of the shell
// can be exercised against in-memory fakes.
package vos

import (
	"github.com/spf13/afero"
)

// VFS is the filesystem the shell resolves paths against.
type VFS = afero.Fs

// File is an open file of a VFS.
type File = afero.File

// NewOsFs returns a VFS backed by the host filesystem.
func NewOsFs() VFS {
	return afero.NewOsFs()
}

// NewMemFs returns an empty in-memory VFS.
func NewMemFs() VFS {
	return afero.NewMemMapFs()
}

// IsDir reports whether name exists and is a directory.
func IsDir(fs VFS, name string) bool {
	ok, err := afero.IsDir(fs, name)
	return err == nil && ok
}
