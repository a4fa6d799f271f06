package jobs

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal is the controlling terminal of an interactive shell with job
// control. The zero value and nil are valid and disabled.
type Terminal struct {
	fd        int
	shellPgid int
	enabled   bool
	saved     *term.State
	signals   chan os.Signal
}

// ErrNotTerminal is returned by Open when f isn't a terminal.
var ErrNotTerminal = errors.New("not a terminal")

// jobControlSignals are caught by the shell while job control is active so
// that only the foreground job reacts to them. They are caught rather than
// ignored so children start with the default dispositions.
var jobControlSignals = []os.Signal{
	syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTSTP, syscall.SIGTTIN,
}

// Open takes control of the terminal f: the shell becomes a process group
// leader and moves its group to the foreground, waiting while some other
// group owns the terminal.
func Open(f *os.File) (*Terminal, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return &Terminal{}, ErrNotTerminal
	}

	t := &Terminal{fd: fd, enabled: true, signals: make(chan os.Signal, 8)}

	// Stop until the terminal is ours, like any background job would.
	for {
		fg, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
		if err != nil {
			return &Terminal{}, err
		}
		if fg == unix.Getpgrp() {
			break
		}
		_ = unix.Kill(-unix.Getpgrp(), syscall.SIGTTIN)
	}

	signal.Notify(t.signals, jobControlSignals...)
	go t.drain()

	pid := unix.Getpid()
	if unix.Getpgrp() != pid {
		if err := unix.Setpgid(0, 0); err != nil {
			t.Close()
			return &Terminal{}, err
		}
	}
	t.shellPgid = pid
	if err := t.Reclaim(); err != nil {
		t.Close()
		return &Terminal{}, err
	}
	return t, nil
}

func (t *Terminal) drain() {
	for range t.signals {
	}
}

// Notify relays interrupts received by the shell to c so they can be passed
// on with Table.Forward.
func (t *Terminal) Notify(c chan<- os.Signal) {
	if t.Enabled() {
		signal.Notify(c, syscall.SIGINT, syscall.SIGQUIT)
	}
}

// Close stops catching job control signals.
func (t *Terminal) Close() {
	if t == nil || t.signals == nil {
		return
	}
	signal.Stop(t.signals)
	close(t.signals)
	t.signals = nil
	t.enabled = false
}

// Enabled returns true if job control over the terminal is active.
func (t *Terminal) Enabled() bool {
	return t != nil && t.enabled
}

// Fd returns the terminal's descriptor in the shell.
func (t *Terminal) Fd() int {
	return t.fd
}

// ShellPgid returns the process group of the shell.
func (t *Terminal) ShellPgid() int {
	if t == nil {
		return 0
	}
	return t.shellPgid
}

// Foreground hands the terminal to pgid after saving the shell's terminal
// modes.
func (t *Terminal) Foreground(pgid int) error {
	if !t.Enabled() {
		return nil
	}
	if st, err := term.GetState(t.fd); err == nil {
		t.saved = st
	}
	return t.setpgrp(pgid)
}

// Reclaim returns the terminal to the shell and restores its modes.
func (t *Terminal) Reclaim() error {
	if !t.Enabled() {
		return nil
	}
	if err := t.setpgrp(t.shellPgid); err != nil {
		return err
	}
	if t.saved != nil {
		_ = term.Restore(t.fd, t.saved)
		t.saved = nil
	}
	return nil
}

// setpgrp changes the terminal's foreground group. SIGTTOU is ignored for
// the duration because the shell may be in the background when it runs.
func (t *Terminal) setpgrp(pgid int) error {
	signal.Ignore(syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTOU)

	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}
