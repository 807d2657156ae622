// Package repl reads command lines, parses them and hands them to the
// executor.
package repl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abiosoft/readline"

	"psh/internal/execute"
	"psh/internal/logger"
	"psh/internal/parser"
)

// StatusSyntax is the status of a line that does not parse.
const StatusSyntax = 2

type Shell struct {
	Exec  *execute.Executor
	Input Input

	// Errexit stops the run at the first top-level line that fails.
	Errexit bool
	// Interactive reports finished jobs before each prompt and keeps going
	// after syntax errors and interrupts.
	Interactive bool
	// Prompt renders the primary prompt. It is only used with an Input that
	// shows prompts.
	Prompt func() string
}

// ReadCommand reads one logical command line. A line ending in a backslash
// outside quotes continues on the next line without the backslash; an open
// quote continues it with the newline kept. End of input in the middle of a
// command returns what was read so far.
func ReadCommand(in Input) (string, error) {
	var b strings.Builder

	for {
		line, err := in.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		b.WriteString(line)

		switch quote := openQuote(b.String()); {
		case quote != 0:
			b.WriteByte('\n')
		case strings.HasSuffix(line, "\\"):
			s := b.String()
			b.Reset()
			b.WriteString(s[:len(s)-1])
		default:
			return b.String(), nil
		}
	}
}

// openQuote returns the quote character left open at the end of line, or 0.
func openQuote(line string) byte {
	var quote byte

	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		case quote != 0 && c == quote:
			quote = 0
		case quote == '"' && c == '\\':
			i++
		}
	}

	return quote
}

// Run executes lines until the input ends or the exit builtin is called, and
// returns the status of the last line run.
func (s *Shell) Run() int {
	status := 0

	for {
		if s.Interactive {
			s.Exec.Jobs.Reap()
			s.Exec.Jobs.NotifyDone(s.Exec.Stderr)
		}
		if p, ok := s.Input.(prompter); ok && s.Prompt != nil {
			p.SetPrompt(s.Prompt())
		}

		line, err := ReadCommand(s.Input)
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			status = 130
			continue
		case errors.Is(err, io.EOF):
			return status
		case err != nil:
			logger.Errorf("read: %v", err)
			fmt.Fprintf(s.Exec.Stderr, "psh: %v\n", err)
			return 1
		}

		var ran bool
		if status, ran = s.RunLine(line, status); !ran {
			continue
		}

		if code, exited := s.Exec.Exited(); exited {
			return code
		}
		if s.Errexit && status != 0 {
			logger.Debugf("errexit: status %d", status)
			return status
		}
	}
}

// RunLine parses and executes one command line. ran is false for a line
// with nothing to execute, in which case status is prev.
func (s *Shell) RunLine(line string, prev int) (status int, ran bool) {
	n, err := parser.ParseString(line)
	if err != nil {
		fmt.Fprintf(s.Exec.Stderr, "psh: %v\n", err)
		if s.Interactive {
			return StatusSyntax, false
		}
		return StatusSyntax, true
	}
	if n == nil {
		return prev, false
	}

	logger.Tracef("run: %s", n)
	return s.Exec.Run(n), true
}
