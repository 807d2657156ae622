package execute

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"psh/internal/ast"
	"psh/internal/env"
	"psh/internal/logger"
	"psh/internal/stdio"
)

// maxFd is the largest descriptor a redirection may name.
const maxFd = 255

// redirected holds the files opened for one command, by target descriptor.
type redirected struct {
	files  map[int]*os.File
	opened []*os.File
}

// openRedirections opens every redirection in order. Nothing stays open when
// one of them fails.
func (e *Executor) openRedirections(rs []ast.Redirection) (*redirected, error) {
	r := &redirected{files: make(map[int]*os.File)}

	var prev *os.File
	for _, rd := range rs {
		if rd.Fd < 0 || rd.Fd > maxFd {
			r.Close()
			return nil, fmt.Errorf("%d: bad file descriptor", rd.Fd)
		}

		if rd.Dup && prev != nil {
			r.files[rd.Fd] = prev
			continue
		}

		f, err := e.openRedirection(rd)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.opened = append(r.opened, f)
		r.files[rd.Fd] = f
		prev = f
	}
	return r, nil
}

func (e *Executor) openRedirection(rd ast.Redirection) (*os.File, error) {
	if rd.Kind == ast.Heredoc {
		return e.heredoc(rd.Target)
	}

	target := env.Expand(e.Env, rd.Target)

	var flag int
	switch rd.Kind {
	case ast.Input:
		flag = os.O_RDONLY
	case ast.Append:
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(target, flag, 0644)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		return nil, fmt.Errorf("%s: %w", target, err)
	}
	return f, nil
}

// heredoc reads lines up to delim into an unlinked temporary file and
// returns it rewound. End of input also ends the body.
func (e *Executor) heredoc(delim string) (*os.File, error) {
	f, err := os.CreateTemp("", "psh-heredoc-*")
	if err != nil {
		return nil, fmt.Errorf("here-document: %w", err)
	}
	_ = os.Remove(f.Name())

	w := bufio.NewWriter(f)
	src := e.lines()
	for {
		line, err := src.ReadLine()
		if errors.Is(err, io.EOF) {
			logger.Warnf("here-document delimited by end of input (wanted %q)", delim)
			break
		}
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("here-document: %w", err)
		}
		if line == delim {
			break
		}
		_, _ = w.WriteString(line)
		_ = w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("here-document: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("here-document: %w", err)
	}
	return f, nil
}

func (r *redirected) Close() {
	for _, f := range r.opened {
		_ = f.Close()
	}
	r.opened = nil
}

// table is the descriptor table of a child: in, out and errf on 0, 1 and 2,
// replaced or extended by the redirections.
func (r *redirected) table(in, out, errf *os.File) []*os.File {
	t := []*os.File{in, out, errf}
	for fd, f := range r.files {
		for len(t) <= fd {
			t = append(t, nil)
		}
		t[fd] = f
	}
	return t
}

// stdio is the in-process view of table. Descriptors above 2 are ignored.
func (r *redirected) stdio(in, out, errf *os.File) *stdio.Stdio {
	s := &stdio.Stdio{In: in, Out: out, Err: errf}
	if f, ok := r.files[0]; ok {
		s.In = f
	}
	if f, ok := r.files[1]; ok {
		s.Out = f
	}
	if f, ok := r.files[2]; ok {
		s.Err = f
	}
	return s
}
