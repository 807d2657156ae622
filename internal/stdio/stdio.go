// Package stdio bundles the three standard streams handed to in-process
// commands.
package stdio

import (
	"fmt"
	"io"
	"os"
)

// Stdio holds the standard I/O streams for a builtin or plugin.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Default returns Stdio bound to os.Stdin, os.Stdout and os.Stderr.
func Default() *Stdio {
	return &Stdio{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

// Errorf writes a formatted message to stderr.
func (s *Stdio) Errorf(format string, args ...any) {
	fmt.Fprintf(s.Err, format, args...)
}

// Printf writes a formatted message to stdout.
func (s *Stdio) Printf(format string, args ...any) {
	fmt.Fprintf(s.Out, format, args...)
}

func (s *Stdio) Println(args ...any) {
	fmt.Fprintln(s.Out, args...)
}

// Fail prints "name: err" to stderr and returns status 1.
func (s *Stdio) Fail(name string, err error) int {
	s.Errorf("%s: %v\n", name, err)
	return 1
}
