// Package env holds the shell's variable store and $NAME expansion.
package env

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Environment is the variable store commands run against.
type Environment interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Unset(name string) error
	// Environ returns NAME=value pairs in the form exec expects.
	Environ() []string
}

// OS is the process environment. Children started by the shell inherit it.
type OS struct{}

var _ Environment = OS{}

func (OS) Get(name string) (string, bool) {
	return os.LookupEnv(name)
}

func (OS) Set(name, value string) error {
	if !ValidName(name) {
		return fmt.Errorf("%q: not a valid identifier", name)
	}
	return os.Setenv(name, value)
}

func (OS) Unset(name string) error {
	return os.Unsetenv(name)
}

func (OS) Environ() []string {
	return os.Environ()
}

// Map is an in-memory Environment.
type Map struct {
	rw  sync.RWMutex
	env map[string]string
}

var _ Environment = (*Map)(nil)

func NewMap() *Map {
	return &Map{}
}

// NewMapFromList builds a Map from NAME=value pairs. An entry without '='
// is set to the empty string.
func NewMapFromList(environ []string) *Map {
	m := &Map{}
	for _, e := range environ {
		key, value, _ := strings.Cut(e, "=")
		_ = m.Set(key, value)
	}
	return m
}

func (m *Map) Get(name string) (string, bool) {
	m.rw.RLock()
	defer m.rw.RUnlock()

	val, ok := m.env[name]
	return val, ok
}

func (m *Map) Set(name, value string) error {
	if !ValidName(name) {
		return fmt.Errorf("%q: not a valid identifier", name)
	}

	m.rw.Lock()
	defer m.rw.Unlock()

	if m.env == nil {
		m.env = make(map[string]string)
	}
	m.env[name] = value
	return nil
}

func (m *Map) Unset(name string) error {
	m.rw.Lock()
	defer m.rw.Unlock()

	delete(m.env, name)
	return nil
}

// Environ returns the pairs sorted by name.
func (m *Map) Environ() []string {
	m.rw.RLock()
	defer m.rw.RUnlock()

	out := make([]string, 0, len(m.env))
	for k, v := range m.env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Getenv returns the value of name, or "" when it is unset.
func Getenv(e Environment, name string) string {
	val, _ := e.Get(name)
	return val
}

func isNameChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// ValidName reports whether name can be used as a variable name.
func ValidName(name string) bool {
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return false
		}
	}
	return true
}

// Expand replaces every $NAME in text with its value from e. NAME is the
// longest run of letters, digits and underscores after the '$'. Unset
// variables expand to nothing, and a '$' with no name after it is kept.
func Expand(e Environment, text string) string {
	if strings.IndexByte(text, '$') < 0 {
		return text
	}

	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] != '$' {
			b.WriteByte(text[i])
			continue
		}

		end := i + 1
		for end < len(text) && isNameChar(text[end]) {
			end++
		}
		if end == i+1 {
			b.WriteByte('$')
			continue
		}

		b.WriteString(Getenv(e, text[i+1:end]))
		i = end - 1
	}
	return b.String()
}
