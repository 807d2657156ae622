// Package builtin holds commands that run inside the shell process.
package builtin

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pborman/getopt/v2"

	"psh/internal/env"
	"psh/internal/jobs"
	"psh/internal/plugin"
	"psh/internal/stdio"
)

// Func runs a builtin. argv[0] is the builtin's name.
type Func func(ctx *Context, argv []string) int

type Builtin struct {
	Name        string
	Description string
	Func        Func
}

// Context is everything a builtin may touch. Output goes through the
// embedded Stdio, never directly to the shell's descriptors.
type Context struct {
	*stdio.Stdio

	Env      env.Environment
	Jobs     *jobs.Manager
	Plugins  *plugin.Registry
	Builtins *Registry

	// Exit is called by the exit builtin with the requested status.
	Exit func(status int)
}

type Registry struct {
	mu       sync.RWMutex
	builtins map[string]*Builtin
}

func NewRegistry() *Registry {
	return &Registry{builtins: make(map[string]*Builtin)}
}

// Core returns a registry holding the standard builtins.
func Core() *Registry {
	r := NewRegistry()
	r.Register("cd", Cd, "Change directory")
	r.Register("exit", Exit, "Exit the shell")
	r.Register("export", Export, "Set environment variables")
	r.Register("unset", Unset, "Unset environment variables")
	r.Register("pwd", Pwd, "Print working directory")
	r.Register("jobs", Jobs, "List active jobs")
	r.Register("fg", Fg, "Bring job to foreground")
	r.Register("bg", Bg, "Put job in background")
	r.Register("type", Type, "Display command type")
	r.Register("help", Help, "List builtins and plugins")
	r.Register("plugin", Plugin, "Load, unload or list plugins")
	return r
}

// Register adds or replaces a builtin.
func (r *Registry) Register(name string, fn Func, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.builtins[name] = &Builtin{Name: name, Description: description, Func: fn}
}

func (r *Registry) Find(name string) *Builtin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.builtins[name]
}

// Execute runs the builtin named by argv[0]. It returns -1 if there is no
// such builtin.
func (r *Registry) Execute(ctx *Context, argv []string) int {
	if len(argv) == 0 {
		return -1
	}
	b := r.Find(argv[0])
	if b == nil {
		return -1
	}
	return b.Func(ctx, argv)
}

// Names returns the builtin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) List(w io.Writer) {
	for _, name := range r.Names() {
		fmt.Fprintf(w, "%-10s %s\n", name, r.Find(name).Description)
	}
}

// flagSet is a getopt set with a usage line and a -h/--help flag.
type flagSet struct {
	*getopt.Set

	use   string
	short string
	help  *bool
}

func newFlagSet(use, short string) *flagSet {
	set := getopt.New()
	return &flagSet{
		Set:   set,
		use:   use,
		short: short,
		help:  set.BoolLong("help", 'h', "show this help and exit"),
	}
}

func (f *flagSet) printHelp(w io.Writer) {
	fmt.Fprintln(w, "usage:", f.use)
	fmt.Fprintln(w, f.short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	f.PrintOptions(w)
}

// run parses argv and, if that succeeds, calls fn with the operands.
func (f *flagSet) run(s *stdio.Stdio, argv []string, fn func(args []string) int) int {
	if err := f.Getopt(argv, nil); err != nil {
		s.Errorf("%s: %v\n", argv[0], err)
		f.printHelp(s.Err)
		return 2
	}
	if *f.help {
		f.printHelp(s.Out)
		return 0
	}
	return fn(f.Args())
}
