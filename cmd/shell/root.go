package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"psh/internal/builtin"
	"psh/internal/config"
	"psh/internal/env"
	"psh/internal/execute"
	"psh/internal/jobs"
	"psh/internal/logger"
	"psh/internal/plugin"
	"psh/internal/prompt"
	"psh/internal/repl"
	"psh/internal/term"
)

type options struct {
	errexit    bool
	xtrace     bool
	command    string
	configPath string
}

// newRootCmd builds the psh command. The shell's exit status is stored in
// status.
func newRootCmd(status *int) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "psh [flags] [script [args...]]",
		Short: "A small job-control shell",
		Long: `psh reads commands from a script, from -c, or interactively from the
terminal, and runs them with pipelines, redirections and job control.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*status = run(opts, cmd.Flags().Changed("command"), args)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.BoolVarP(&opts.errexit, "errexit", "e", false, "exit when a command line fails")
	flags.BoolVarP(&opts.xtrace, "xtrace", "x", false, "print commands before running them")
	flags.StringVarP(&opts.command, "command", "c", "", "run the given command line and exit")
	flags.StringVar(&opts.configPath, "config", "", "config file path (default $XDG_CONFIG_HOME/psh/config.yaml)")

	return cmd
}

// Execute runs the shell with os.Args and returns its exit code.
func Execute() int {
	return runArgs(os.Args[1:])
}

func runArgs(args []string) int {
	status := 0
	cmd := newRootCmd(&status)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "psh: %v\n", err)
		return 2
	}
	return status
}

func run(opts options, hasCommand bool, args []string) int {
	environment := env.OS{}

	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath(environment)
	}
	cfg, err := config.Load(afero.NewOsFs(), cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "psh: config %s: %v\n", cfgPath, err)
		cfg = config.Default()
	}

	if err := logger.Init(logger.Options{Level: cfg.Level(), File: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "psh: %v\n", err)
	}
	defer logger.Shutdown()

	plugins := plugin.NewRegistry()
	for _, path := range cfg.Plugins {
		if _, err := plugins.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "psh: %v\n", err)
		}
	}
	defer plugins.CleanupAll()

	tty := term.Open(os.Stdin)
	interactive := !hasCommand && len(args) == 0 && tty.IsTTY()

	input, closer, err := openInput(opts, hasCommand, args, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "psh: %v\n", err)
		return 127
	}
	if closer != nil {
		defer closer.Close()
	}

	if interactive {
		if err := tty.Claim(); err != nil {
			logger.Warnf("job control disabled: %v", err)
		}
	}

	e := &execute.Executor{
		Env:        environment,
		Builtins:   builtin.Core(),
		Plugins:    plugins,
		Jobs:       jobs.NewManager(tty),
		Term:       tty,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Lines:      input,
		Self:       self(opts),
		XTrace:     opts.xtrace,
		MaxStages:  cfg.MaxPipelineStages,
		LabelWidth: cfg.JobLabelWidth,
	}

	shell := &repl.Shell{
		Exec:        e,
		Input:       input,
		Errexit:     opts.errexit,
		Interactive: interactive,
	}
	if interactive {
		colored := useColor(cfg.Color)
		shell.Prompt = func() string {
			return prompt.Render(cfg.Prompt, prompt.Current(environment), colored)
		}
	}

	status := shell.Run()
	logger.Debugf("exit status %d", status)
	if status < 0 {
		return 255
	}
	return status
}

func openInput(opts options, hasCommand bool, args []string, interactive bool) (repl.Input, io.Closer, error) {
	switch {
	case hasCommand:
		return repl.NewScriptInput(strings.NewReader(opts.command)), nil, nil
	case len(args) > 0:
		f, err := os.Open(args[0])
		if err != nil {
			return nil, nil, err
		}
		return repl.NewScriptInput(f), f, nil
	case interactive:
		in, closer, err := repl.NewTerminalInput(os.Stdout, os.Stderr)
		if err == nil {
			return in, closer, nil
		}
		logger.Warnf("line editing disabled: %v", err)
	}
	return repl.NewScriptInput(os.Stdin), nil, nil
}

// self is how a child shell is started: the same binary with the same
// configuration and options.
func self(opts options) []string {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	argv := []string{exe}
	if opts.configPath != "" {
		argv = append(argv, "--config", opts.configPath)
	}
	if opts.errexit {
		argv = append(argv, "-e")
	}
	return argv
}

func useColor(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	return !color.NoColor
}
