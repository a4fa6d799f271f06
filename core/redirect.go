package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/josephlewis42/psh/core/expand"
	"github.com/josephlewis42/psh/core/syntax"
	"github.com/josephlewis42/psh/core/vos"
)

// ErrNoClobber is returned when > would truncate an existing file while
// noclobber is set.
var ErrNoClobber = errors.New("cannot overwrite existing file")

// redirect applies redirections in order. The returned function restores
// the descriptor table and closes the files that were opened; it is valid
// even when an error is returned.
func (s *Shell) redirect(ctx context.Context, redirs []*syntax.Redirect) (func(), error) {
	if len(redirs) == 0 {
		return func() {}, nil
	}

	saved := s.fds
	s.fds = saved.clone()
	var opened []io.Closer
	restore := func() {
		for _, c := range opened {
			c.Close()
		}
		s.fds = saved
	}

	cfg := s.expandConfig(ctx)
	for _, r := range redirs {
		fd := r.DefaultFd()
		switch r.Op {
		case syntax.DLess, syntax.DLessDash:
			body := ""
			if r.HereDoc != nil {
				var err error
				if body, err = expand.Literal(cfg, r.HereDoc); err != nil {
					return restore, err
				}
			}
			s.fds[fd] = &fdEntry{r: strings.NewReader(body)}

		case syntax.LessAnd, syntax.GreatAnd:
			target, err := expand.Literal(cfg, r.Target)
			if err != nil {
				return restore, err
			}
			if err := s.dupFd(fd, target); err != nil {
				return restore, err
			}

		default:
			name, err := s.redirectTarget(cfg, r.Target)
			if err != nil {
				return restore, err
			}
			f, err := s.openRedirect(r.Op, name)
			if err != nil {
				return restore, err
			}
			opened = append(opened, f)
			switch r.Op {
			case syntax.Less:
				s.fds[fd] = &fdEntry{r: f}
			case syntax.LessGreat:
				s.fds[fd] = &fdEntry{r: f, w: f}
			default:
				s.fds[fd] = &fdEntry{w: f}
			}
		}
	}
	return restore, nil
}

// redirectTarget expands the file name of a redirection, which must be a
// single field.
func (s *Shell) redirectTarget(cfg *expand.Config, w *syntax.Word) (string, error) {
	fields, err := expand.Fields(cfg, w)
	if err != nil {
		return "", err
	}
	if len(fields) != 1 {
		return "", fmt.Errorf("%s: ambiguous redirect", w.Raw)
	}
	return fields[0], nil
}

func (s *Shell) openRedirect(op syntax.Op, name string) (vos.File, error) {
	path := vos.Abs(s.Dir, name)

	var flag int
	switch op {
	case syntax.Less:
		flag = os.O_RDONLY
	case syntax.Great, syntax.Clobber:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case syntax.DGreat:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case syntax.LessGreat:
		flag = os.O_RDWR | os.O_CREATE
	default:
		return nil, fmt.Errorf("unsupported redirection %s", op)
	}

	if op == syntax.Great && s.Opts.NoClobber {
		if fi, err := s.FS.Stat(path); err == nil && fi.Mode().IsRegular() {
			return nil, fmt.Errorf("%s: %w", name, ErrNoClobber)
		}
	}

	f, err := s.FS.OpenFile(path, flag, 0666)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, unwrapPathError(err))
	}
	return f, nil
}

// dupFd makes fd a copy of the descriptor named by target, or closes it
// when target is "-".
func (s *Shell) dupFd(fd int, target string) error {
	if target == "-" {
		delete(s.fds, fd)
		return nil
	}
	src, err := strconv.Atoi(target)
	if err != nil || src < 0 {
		return fmt.Errorf("%s: bad file descriptor", target)
	}
	e, ok := s.fds[src]
	if !ok {
		return fmt.Errorf("%d: bad file descriptor", src)
	}
	s.fds[fd] = e
	return nil
}
