package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/abiosoft/readline"
)

// Input is a source of command lines without their trailing newline. It
// also feeds here-documents.
type Input interface {
	ReadLine() (string, error)
}

// prompter is an Input that shows a prompt before the next line.
type prompter interface {
	SetPrompt(prompt string)
}

// continuationPrompt is shown for every line after the first of a command.
const continuationPrompt = "> "

type scriptInput struct {
	r *bufio.Reader
}

// NewScriptInput reads lines from r, as for a script file or a pipe.
func NewScriptInput(r io.Reader) Input {
	return &scriptInput{r: bufio.NewReader(r)}
}

func (s *scriptInput) ReadLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), err
}

// gate reads from the terminal only while a line is being edited. Any read
// still pending when the line is done is cancelled, so keystrokes typed
// while a foreground job runs reach the job and not the line editor.
type gate struct {
	f *os.File

	mu   sync.Mutex
	cond *sync.Cond
	open bool
}

// openGate opens the terminal again in non-blocking mode so that pending
// reads can be interrupted with a deadline. The descriptors handed to
// children are not affected.
func openGate() (*gate, error) {
	f, err := os.OpenFile("/dev/tty", os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	g := &gate{f: f}
	g.cond = sync.NewCond(&g.mu)
	return g, nil
}

func (g *gate) Read(p []byte) (int, error) {
	for {
		g.mu.Lock()
		for !g.open {
			g.cond.Wait()
		}
		g.mu.Unlock()

		n, err := g.f.Read(p)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		return n, err
	}
}

func (g *gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()

	_ = g.f.SetReadDeadline(time.Time{})
	g.open = true
	g.cond.Broadcast()
}

func (g *gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.open = false
	_ = g.f.SetReadDeadline(time.Now())
}

func (g *gate) Close() error {
	return g.f.Close()
}

type terminalInput struct {
	rl     *readline.Instance
	gate   *gate
	prompt string
}

// NewTerminalInput is a line editor on the controlling terminal with an
// in-memory history.
func NewTerminalInput(stdout, stderr io.Writer) (Input, io.Closer, error) {
	g, err := openGate()
	if err != nil {
		return nil, nil, err
	}

	cfg := &readline.Config{
		Stdin:           readline.NewCancelableStdin(g),
		Stdout:          stdout,
		Stderr:          stderr,
		HistoryLimit:    1000,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	if err := cfg.Init(); err != nil {
		_ = g.Close()
		return nil, nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		_ = g.Close()
		return nil, nil, err
	}

	t := &terminalInput{rl: rl, gate: g, prompt: continuationPrompt}
	return t, t, nil
}

func (t *terminalInput) SetPrompt(prompt string) {
	t.prompt = prompt
}

func (t *terminalInput) ReadLine() (string, error) {
	t.rl.SetPrompt(t.prompt)
	t.prompt = continuationPrompt

	t.gate.Resume()
	defer t.gate.Pause()

	return t.rl.Readline()
}

func (t *terminalInput) Close() error {
	err := t.rl.Close()
	if cerr := t.gate.Close(); err == nil {
		err = cerr
	}
	return err
}
