// Package plugin loads and dispatches commands implemented in Go plugins
// built with -buildmode=plugin.
package plugin

import (
	"errors"
	"fmt"
	"io"
	goplugin "plugin"
	"sync"

	"psh/internal/stdio"
)

// ErrNotHandled is returned by Plugin.Execute to decline a command. The
// shell then looks the name up on PATH instead.
var ErrNotHandled = errors.New("plugin: command not handled")

// Symbol is the name a shared object must export its Plugin under.
const Symbol = "Plugin"

type Info struct {
	Name        string
	Version     string
	Description string
}

// Plugin is a command provided by a dynamically loaded module. Its name
// (Info().Name) is the command it claims.
type Plugin interface {
	Info() Info
	Init() error
	Execute(s *stdio.Stdio, argv []string) (int, error)
	Cleanup()
}

type entry struct {
	plugin Plugin
	path   string
}

// Registry holds the loaded plugins, most recently loaded first.
type Registry struct {
	mu      sync.Mutex
	entries []entry

	open func(path string) (Plugin, error)
}

func NewRegistry() *Registry {
	return &Registry{open: openShared}
}

func openShared(path string) (Plugin, error) {
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}

	sym, err := so.Lookup(Symbol)
	if err != nil {
		return nil, err
	}

	switch p := sym.(type) {
	case *Plugin:
		if *p == nil {
			return nil, fmt.Errorf("%s: %s is nil", path, Symbol)
		}
		return *p, nil
	case Plugin:
		return p, nil
	}
	return nil, fmt.Errorf("%s: %s has type %T, which is not a plugin", path, Symbol, sym)
}

// Register initializes p and adds it to the registry.
func (r *Registry) Register(p Plugin) error {
	return r.add(p, "")
}

func (r *Registry) add(p Plugin, path string) error {
	name := p.Info().Name
	if name == "" {
		return errors.New("plugin has no name")
	}
	if r.Find(name) != nil {
		return fmt.Errorf("plugin %s already loaded", name)
	}

	if err := p.Init(); err != nil {
		return fmt.Errorf("plugin %s: initialization failed: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]entry{{plugin: p, path: path}}, r.entries...)
	return nil
}

// Load opens the shared object at path and registers the Plugin it exports.
// Go cannot unload code, so loading the same path twice fails on the name.
func (r *Registry) Load(path string) (Info, error) {
	p, err := r.open(path)
	if err != nil {
		return Info{}, fmt.Errorf("cannot load plugin %s: %w", path, err)
	}
	if err := r.add(p, path); err != nil {
		return Info{}, err
	}
	return p.Info(), nil
}

// Unload runs the plugin's cleanup and removes it from the registry.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	idx := r.index(name)
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("plugin %s not found", name)
	}
	p := r.entries[idx].plugin
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	r.mu.Unlock()

	p.Cleanup()
	return nil
}

func (r *Registry) index(name string) int {
	for i, e := range r.entries {
		if e.plugin.Info().Name == name {
			return i
		}
	}
	return -1
}

func (r *Registry) Find(name string) Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(name); i >= 0 {
		return r.entries[i].plugin
	}
	return nil
}

// Execute runs the plugin claiming argv[0]. handled is false when no plugin
// has that name or the plugin returned ErrNotHandled. Any other error is
// reported on s.Err and turns a zero status into 1.
func (r *Registry) Execute(s *stdio.Stdio, argv []string) (status int, handled bool) {
	if len(argv) == 0 {
		return 0, false
	}
	p := r.Find(argv[0])
	if p == nil {
		return 0, false
	}

	status, err := p.Execute(s, argv)
	switch {
	case errors.Is(err, ErrNotHandled):
		return 0, false
	case err != nil:
		s.Errorf("%s: %v\n", argv[0], err)
		if status == 0 {
			status = 1
		}
	}
	return status, true
}

// List writes one line per plugin: name, version and description.
func (r *Registry) List(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		info := e.plugin.Info()
		fmt.Fprintf(w, "%-15s v%-8s %s\n", info.Name, info.Version, info.Description)
	}
}

// Path returns the file a plugin was loaded from, or "" for plugins added
// with Register.
func (r *Registry) Path(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(name); i >= 0 {
		return r.entries[i].path
	}
	return ""
}

// CleanupAll unloads every plugin, most recent first.
func (r *Registry) CleanupAll() {
	for {
		r.mu.Lock()
		if len(r.entries) == 0 {
			r.mu.Unlock()
			return
		}
		name := r.entries[0].plugin.Info().Name
		r.mu.Unlock()

		_ = r.Unload(name)
	}
}
