package execute

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"psh/internal/env"
	"psh/internal/logger"
)

// lookPath resolves name against the shell's own PATH, which may differ
// from the process environment after export or unset. A name with a slash
// is used as is and left for exec to reject.
func (e *Executor) lookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}

	for _, dir := range filepath.SplitList(env.Getenv(e.Env, "PATH")) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, name)
		if !strings.Contains(candidate, "/") {
			candidate = "./" + candidate
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (e *Executor) sysProcAttr(pgid int, foreground bool) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid,
	}
	if foreground {
		attr.Foreground = true
		attr.Ctty = e.Term.Fd()
	}
	return attr
}

// fds converts a descriptor table for ForkExec. A nil entry is closed in
// the child.
func fds(files []*os.File) []uintptr {
	out := make([]uintptr, len(files))
	for i, f := range files {
		if f == nil {
			out[i] = ^uintptr(0)
			continue
		}
		out[i] = f.Fd()
	}
	return out
}

// startExternal forks argv[0] from PATH into process group pgid, or a new
// group when pgid is 0. A command that cannot be started returns pid 0 and
// its status: 127 when it is not found, 126 when it cannot be executed. err
// is set only when the fork itself failed.
func (e *Executor) startExternal(argv []string, files []*os.File, pgid int, foreground bool) (pid, status int, err error) {
	binary, err := e.lookPath(argv[0])
	if err != nil {
		e.diag("%s: command not found", argv[0])
		return 0, 127, nil
	}

	pid, err = syscall.ForkExec(binary, argv, &syscall.ProcAttr{
		Env:   e.Env.Environ(),
		Files: fds(files),
		Sys:   e.sysProcAttr(pgid, foreground),
	})
	switch {
	case errors.Is(err, syscall.ENOENT):
		e.diag("%s: %v", argv[0], err)
		return 0, 127, nil
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.ENOEXEC), errors.Is(err, syscall.EISDIR):
		e.diag("%s: %v", argv[0], err)
		return 0, 126, nil
	case err != nil:
		return 0, -1, fmt.Errorf("fork %s: %w", argv[0], err)
	}

	logger.Debugf("started %s: pid %d, pgid %d", binary, pid, pgid)
	return pid, 0, nil
}

// reexec starts a child shell running source.
func (e *Executor) reexec(source string, files []*os.File, pgid int, foreground bool) (int, error) {
	if len(e.Self) == 0 {
		return 0, fmt.Errorf("cannot start a child shell for %q", source)
	}

	argv := append([]string{}, e.Self...)
	if e.XTrace {
		argv = append(argv, "-x")
	}
	argv = append(argv, "-c", source)

	pid, err := syscall.ForkExec(e.Self[0], argv, &syscall.ProcAttr{
		Env:   e.Env.Environ(),
		Files: fds(files),
		Sys:   e.sysProcAttr(pgid, foreground),
	})
	if err != nil {
		return 0, fmt.Errorf("fork child shell: %w", err)
	}

	logger.Debugf("child shell %d for %q, pgid %d", pid, source, pgid)
	return pid, nil
}
