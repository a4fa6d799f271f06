package vos

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Op names a filesystem operation passed to a PathMapper.
type Op = string

const (
	OpChtimes  Op = "chtimes"
	OpSymlink  Op = "symlink"
	OpChmod    Op = "chmod"
	OpChown    Op = "chown"
	OpStat     Op = "stat"
	OpRename   Op = "rename"
	OpRemove   Op = "remove"
	OpOpen     Op = "open"
	OpMkdir    Op = "mkdir"
	OpCreate   Op = "create"
	OpLstat    Op = "lstat"
	OpReadlink Op = "readlink"
)

// PathMapper sees every path used on a MappingFs and returns the path to use
// on the underlying filesystem. Returning an error fails the operation.
type PathMapper func(op Op, name string) (string, error)

// MappingFs passes every path through a PathMapper before using BaseFs.
// The shell uses it to trace and confine filesystem access.
type MappingFs struct {
	BaseFs afero.Fs
	Mapper PathMapper
}

var (
	_ afero.Lstater    = (*MappingFs)(nil)
	_ afero.Linker     = (*MappingFs)(nil)
	_ afero.LinkReader = (*MappingFs)(nil)
)

// NewMappingFs wraps base.
func NewMappingFs(base afero.Fs, mapper PathMapper) *MappingFs {
	return &MappingFs{BaseFs: base, Mapper: mapper}
}

// NewTracingFs wraps base and reports each operation to trace.
func NewTracingFs(base afero.Fs, trace func(op Op, name string)) *MappingFs {
	return NewMappingFs(base, func(op Op, name string) (string, error) {
		trace(op, name)
		return name, nil
	})
}

// NewRootedFs confines base to the directory root; paths are resolved as
// if root were /.
func NewRootedFs(base afero.Fs, root string) *MappingFs {
	root = filepath.Clean(root)
	return NewMappingFs(base, func(_ Op, name string) (string, error) {
		return filepath.Join(root, filepath.Clean("/"+name)), nil
	})
}

// mappedFile reports names as seen through the MappingFs.
type mappedFile struct {
	afero.File
	name string
}

func (f *mappedFile) Name() string {
	return f.name
}

func (b *MappingFs) mapPath(op Op, name string) (string, error) {
	mapped, err := b.Mapper(op, name)
	if err != nil {
		return "", &os.PathError{Op: op, Path: name, Err: err}
	}
	return mapped, nil
}

func (b *MappingFs) wrap(name string, f afero.File, err error) (afero.File, error) {
	if err != nil {
		return nil, err
	}
	return &mappedFile{File: f, name: name}, nil
}

func (b *MappingFs) Name() string {
	return "MappingFs"
}

func (b *MappingFs) Chtimes(name string, atime, mtime time.Time) error {
	mapped, err := b.mapPath(OpChtimes, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Chtimes(mapped, atime, mtime)
}

func (b *MappingFs) Chmod(name string, mode os.FileMode) error {
	mapped, err := b.mapPath(OpChmod, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Chmod(mapped, mode)
}

func (b *MappingFs) Chown(name string, uid, gid int) error {
	mapped, err := b.mapPath(OpChown, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Chown(mapped, uid, gid)
}

func (b *MappingFs) Stat(name string) (os.FileInfo, error) {
	mapped, err := b.mapPath(OpStat, name)
	if err != nil {
		return nil, err
	}
	return b.BaseFs.Stat(mapped)
}

func (b *MappingFs) Rename(oldname, newname string) error {
	oldMapped, err := b.mapPath(OpRename, oldname)
	if err != nil {
		return err
	}
	newMapped, err := b.mapPath(OpRename, newname)
	if err != nil {
		return err
	}
	return b.BaseFs.Rename(oldMapped, newMapped)
}

func (b *MappingFs) RemoveAll(name string) error {
	mapped, err := b.mapPath(OpRemove, name)
	if err != nil {
		return err
	}
	return b.BaseFs.RemoveAll(mapped)
}

func (b *MappingFs) Remove(name string) error {
	mapped, err := b.mapPath(OpRemove, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Remove(mapped)
}

func (b *MappingFs) OpenFile(name string, flag int, mode os.FileMode) (afero.File, error) {
	mapped, err := b.mapPath(OpOpen, name)
	if err != nil {
		return nil, err
	}
	f, err := b.BaseFs.OpenFile(mapped, flag, mode)
	return b.wrap(name, f, err)
}

func (b *MappingFs) Open(name string) (afero.File, error) {
	mapped, err := b.mapPath(OpOpen, name)
	if err != nil {
		return nil, err
	}
	f, err := b.BaseFs.Open(mapped)
	return b.wrap(name, f, err)
}

func (b *MappingFs) Mkdir(name string, mode os.FileMode) error {
	mapped, err := b.mapPath(OpMkdir, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Mkdir(mapped, mode)
}

func (b *MappingFs) MkdirAll(name string, mode os.FileMode) error {
	mapped, err := b.mapPath(OpMkdir, name)
	if err != nil {
		return err
	}
	return b.BaseFs.MkdirAll(mapped, mode)
}

func (b *MappingFs) Create(name string) (afero.File, error) {
	mapped, err := b.mapPath(OpCreate, name)
	if err != nil {
		return nil, err
	}
	f, err := b.BaseFs.Create(mapped)
	return b.wrap(name, f, err)
}

func (b *MappingFs) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	mapped, err := b.mapPath(OpLstat, name)
	if err != nil {
		return nil, false, err
	}
	if lstater, ok := b.BaseFs.(afero.Lstater); ok {
		return lstater.LstatIfPossible(mapped)
	}
	fi, err := b.BaseFs.Stat(mapped)
	return fi, false, err
}

func (b *MappingFs) SymlinkIfPossible(oldname, newname string) error {
	// Link targets are stored verbatim, only the new name is mapped.
	newMapped, err := b.Mapper(OpSymlink, newname)
	if err != nil {
		return &os.LinkError{Op: OpSymlink, Old: oldname, New: newname, Err: err}
	}
	if linker, ok := b.BaseFs.(afero.Linker); ok {
		return linker.SymlinkIfPossible(oldname, newMapped)
	}
	return &os.LinkError{Op: OpSymlink, Old: oldname, New: newname, Err: afero.ErrNoSymlink}
}

func (b *MappingFs) ReadlinkIfPossible(name string) (string, error) {
	mapped, err := b.mapPath(OpReadlink, name)
	if err != nil {
		return "", err
	}
	if reader, ok := b.BaseFs.(afero.LinkReader); ok {
		return reader.ReadlinkIfPossible(mapped)
	}
	return "", &os.PathError{Op: OpReadlink, Path: name, Err: afero.ErrNoReadlink}
}

// OSFile returns the OS file behind a stream, looking through files opened
// on a MappingFs.
func OSFile(stream interface{}) (*os.File, bool) {
	switch f := stream.(type) {
	case *os.File:
		return f, true
	case *mappedFile:
		return OSFile(f.File)
	case interface{ OSFile() *os.File }:
		if file := f.OSFile(); file != nil {
			return file, true
		}
	}
	return nil, false
}
