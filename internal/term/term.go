// Package term owns the controlling terminal: who is in the foreground, and
// which job-control signals reach the shell itself.
package term

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	xterm "golang.org/x/term"

	"psh/internal/logger"
)

type Terminal struct {
	fd   int
	tty  bool
	pgid int
}

// Open wraps f, normally os.Stdin.
func Open(f *os.File) *Terminal {
	fd := int(f.Fd())
	return &Terminal{
		fd:   fd,
		tty:  xterm.IsTerminal(fd),
		pgid: syscall.Getpgrp(),
	}
}

// IsTTY reports whether the wrapped file is a terminal.
func (t *Terminal) IsTTY() bool {
	return t != nil && t.tty
}

// Interactive reports whether the shell's group currently owns the terminal,
// which is when children have to be handed the foreground. A child shell
// started in the foreground therefore passes the terminal on to its own
// children, and one started in the background does not.
func (t *Terminal) Interactive() bool {
	if !t.IsTTY() {
		return false
	}
	fg, err := unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
	return err == nil && fg == t.pgid
}

// Fd is the terminal descriptor in the shell process.
func (t *Terminal) Fd() int {
	return t.fd
}

// Pgid is the shell's own process group.
func (t *Terminal) Pgid() int {
	return t.pgid
}

// Claim makes the shell lead its own process group and puts that group in
// the foreground. It first waits until the shell is in the foreground, so a
// shell started in the background stops instead of stealing the terminal.
// Keyboard job-control signals are swallowed from then on; a handler is
// installed instead of SIG_IGN so that exec'd children start with the
// default dispositions.
func (t *Terminal) Claim() error {
	if !t.IsTTY() {
		return nil
	}

	for {
		fg, err := unix.IoctlGetInt(t.fd, unix.TIOCGPGRP)
		if err != nil {
			return fmt.Errorf("tcgetpgrp: %w", err)
		}
		if fg == syscall.Getpgrp() {
			break
		}
		_ = syscall.Kill(-syscall.Getpgrp(), syscall.SIGTTIN)
	}

	signal.Notify(make(chan os.Signal, 1), syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGQUIT)

	pid := os.Getpid()
	if syscall.Getpgrp() != pid {
		if err := syscall.Setpgid(0, 0); err != nil {
			return fmt.Errorf("setpgid: %w", err)
		}
	}
	t.pgid = pid

	return t.setForeground(pid)
}

func (t *Terminal) setForeground(pgid int) error {
	signal.Ignore(syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTOU)

	if err := unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("tcsetpgrp %d: %w", pgid, err)
	}
	return nil
}

// Handoff puts pgid in the foreground. The returned func gives the terminal
// back to the shell. Both are no-ops on a non-interactive terminal.
func (t *Terminal) Handoff(pgid int) (restore func()) {
	if !t.Interactive() {
		return func() {}
	}

	if err := t.setForeground(pgid); err != nil {
		logger.Warnf("handoff: %v", err)
	}
	return t.Reclaim
}

// Reclaim puts the shell's own group back in the foreground.
func (t *Terminal) Reclaim() {
	if !t.IsTTY() {
		return
	}
	if err := t.setForeground(t.pgid); err != nil {
		logger.Warnf("reclaim: %v", err)
	}
}

// Size returns the terminal width and height.
func (t *Terminal) Size() (width, height int, err error) {
	return xterm.GetSize(t.fd)
}

// IgnoreInterrupt implements jobs.Controller.
func (t *Terminal) IgnoreInterrupt() (restore func()) {
	return IgnoreInterrupt()
}

// IgnoreInterrupt ignores SIGINT in the shell while it waits on a foreground
// child. Call it only after the child is started: an ignored signal stays
// ignored across exec.
func IgnoreInterrupt() (restore func()) {
	if signal.Ignored(syscall.SIGINT) {
		return func() {}
	}

	signal.Ignore(syscall.SIGINT)
	return func() { signal.Reset(syscall.SIGINT) }
}
