package vos

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

// ErrNotFound is the error resulting if a path search failed to find an executable file.
var ErrNotFound = exec.ErrNotFound

func findExecutable(vfs VFS, file string) error {
	d, err := vfs.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories of the
// colon separated pathList. If file contains a slash, it is tried directly
// and the path list is not consulted. Relative directories are resolved
// against dir.
func LookPath(vfs VFS, dir, pathList, file string) (string, error) {
	if strings.Contains(file, "/") {
		err := findExecutable(vfs, Abs(dir, file))
		if err == nil {
			return file, nil
		}
		return "", err
	}

	// A candidate that exists but can't be executed is remembered so the
	// caller can report 126 instead of 127.
	var denied error
	for _, elem := range filepath.SplitList(pathList) {
		if elem == "" {
			// Unix shell semantics: path element "" means "."
			elem = "."
		}
		candidate := path.Join(elem, file)
		switch err := findExecutable(vfs, Abs(dir, candidate)); {
		case err == nil:
			return Abs(dir, candidate), nil
		case errors.Is(err, fs.ErrPermission) && denied == nil:
			denied = err
		}
	}
	if denied != nil {
		return "", denied
	}
	return "", ErrNotFound
}

// Abs resolves name against dir if it isn't already absolute.
func Abs(dir, name string) string {
	if path.IsAbs(name) || dir == "" {
		return name
	}
	return path.Join(dir, name)
}

// ProcAttr holds the attributes of a process started by StartProcess.
type ProcAttr struct {
	// Dir is the working directory of the child.
	Dir string
	// Env is the complete environment of the child as NAME=value pairs.
	Env []string
	// Files are the open descriptors inherited by the child, indexed by fd.
	// Nil entries are closed in the child.
	Files []*os.File

	// Setpgid places the child in the process group Pgid, or a new group
	// led by the child when Pgid is 0.
	Setpgid bool
	Pgid    int
}

// StartProcess starts the program at name with the argument vector argv.
func StartProcess(name string, argv []string, attr *ProcAttr) (*os.Process, error) {
	if attr == nil {
		attr = &ProcAttr{}
	}
	if argv == nil {
		argv = []string{name}
	}

	return os.StartProcess(name, argv, &os.ProcAttr{
		Dir:   attr.Dir,
		Env:   attr.Env,
		Files: attr.Files,
		Sys: &syscall.SysProcAttr{
			Setpgid: attr.Setpgid,
			Pgid:    attr.Pgid,
		},
	})
}

const maxSymlinks = 40

var errTooManyLinks = errors.New("too many levels of symbolic links")

// Realpath resolves every symbolic link in the absolute path name. Symbolic
// links are only followed on filesystems that can report them.
func Realpath(vfs VFS, name string) (string, error) {
	lstater, _ := vfs.(afero.Lstater)
	reader, _ := vfs.(afero.LinkReader)

	resolved := "/"
	rest := strings.Split(name, "/")
	links := 0
	for len(rest) > 0 {
		comp := rest[0]
		rest = rest[1:]

		switch comp {
		case "", ".":
			continue
		case "..":
			resolved = path.Dir(resolved)
			continue
		}

		next := path.Join(resolved, comp)
		var info os.FileInfo
		var err error
		if lstater != nil {
			info, _, err = lstater.LstatIfPossible(next)
		} else {
			info, err = vfs.Stat(next)
		}
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink == 0 || reader == nil {
			resolved = next
			continue
		}

		links++
		if links > maxSymlinks {
			return "", &fs.PathError{Op: "realpath", Path: name, Err: errTooManyLinks}
		}
		target, err := reader.ReadlinkIfPossible(next)
		if err != nil {
			return "", err
		}
		if path.IsAbs(target) {
			resolved = "/"
		}
		rest = append(strings.Split(target, "/"), rest...)
	}
	return resolved, nil
}
