// Command hello is an example psh plugin.
//
//	go build -buildmode=plugin -o hello.so ./plugins/hello
//	psh -c 'plugin load ./hello.so && hello a b'
package main

import (
	"strings"

	"psh/internal/plugin"
	"psh/internal/stdio"
)

type hello struct{}

func (hello) Info() plugin.Info {
	return plugin.Info{
		Name:        "hello",
		Version:     "1.0.0",
		Description: "Simple hello world plugin",
	}
}

func (hello) Init() error { return nil }

func (hello) Execute(s *stdio.Stdio, argv []string) (int, error) {
	s.Printf("Hello, World!")
	if len(argv) > 1 {
		s.Printf(" Arguments: %s", strings.Join(argv[1:], " "))
	}
	s.Printf("\n")
	return 0, nil
}

func (hello) Cleanup() {}

// Plugin is looked up by the shell when the shared object is loaded.
var Plugin plugin.Plugin = hello{}

func main() {}
