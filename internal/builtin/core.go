package builtin

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"psh/internal/env"
)

func Cd(ctx *Context, argv []string) int {
	var dir string
	switch len(argv) {
	case 1:
		home, ok := ctx.Env.Get("HOME")
		if !ok || home == "" {
			ctx.Errorf("cd: HOME not set\n")
			return 1
		}
		dir = home
	case 2:
		dir = argv[1]
		if dir == "-" {
			old, ok := ctx.Env.Get("OLDPWD")
			if !ok {
				ctx.Errorf("cd: OLDPWD not set\n")
				return 1
			}
			dir = old
			ctx.Println(dir)
		}
	default:
		ctx.Errorf("cd: too many arguments\n")
		return 1
	}

	prev, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		return ctx.Fail("cd", err)
	}

	if cwd, err := os.Getwd(); err == nil {
		_ = ctx.Env.Set("OLDPWD", prev)
		_ = ctx.Env.Set("PWD", cwd)
	}
	return 0
}

// Exit asks the shell to stop. The status defaults to 0.
func Exit(ctx *Context, argv []string) int {
	status := 0
	switch len(argv) {
	case 1:
	case 2:
		n, err := strconv.Atoi(argv[1])
		if err != nil {
			ctx.Errorf("exit: %s: numeric argument required\n", argv[1])
			status = 2
		} else {
			status = n & 0xff
		}
	default:
		ctx.Errorf("exit: too many arguments\n")
		return 1
	}

	if ctx.Exit != nil {
		ctx.Exit(status)
	}
	return status
}

func Export(ctx *Context, argv []string) int {
	f := newFlagSet("export [NAME[=VALUE]...]", "Set environment variables. With no NAME, print them.")

	return f.run(ctx.Stdio, argv, func(args []string) int {
		if len(args) == 0 {
			environ := ctx.Env.Environ()
			sort.Strings(environ)
			for _, kv := range environ {
				ctx.Println(kv)
			}
			return 0
		}

		status := 0
		for _, arg := range args {
			name, value, hasValue := strings.Cut(arg, "=")
			if !hasValue {
				// Everything the shell holds is already exported; only
				// check the name.
				if !env.ValidName(name) {
					ctx.Errorf("export: %q: not a valid identifier\n", name)
					status = 1
				}
				continue
			}
			if err := ctx.Env.Set(name, value); err != nil {
				status = ctx.Fail("export", err)
			}
		}
		return status
	})
}

func Unset(ctx *Context, argv []string) int {
	f := newFlagSet("unset NAME...", "Unset environment variables.")

	return f.run(ctx.Stdio, argv, func(args []string) int {
		if len(args) == 0 {
			ctx.Errorf("unset: missing variable name\n")
			return 1
		}

		for _, name := range args {
			if err := ctx.Env.Unset(name); err != nil {
				return ctx.Fail("unset", err)
			}
		}
		return 0
	})
}

func Pwd(ctx *Context, argv []string) int {
	f := newFlagSet("pwd [-P]", "Print the current working directory.")
	physical := f.Bool('P', "resolve symbolic links")

	return f.run(ctx.Stdio, argv, func([]string) int {
		cwd, err := os.Getwd()
		if err != nil {
			return ctx.Fail("pwd", err)
		}
		if *physical {
			if cwd, err = filepath.EvalSymlinks(cwd); err != nil {
				return ctx.Fail("pwd", err)
			}
		}
		ctx.Println(cwd)
		return 0
	})
}

// Type reports how each name would be run: builtin, plugin or a file on
// PATH, in dispatch order.
func Type(ctx *Context, argv []string) int {
	f := newFlagSet("type NAME...", "Display how each NAME would be interpreted.")

	return f.run(ctx.Stdio, argv, func(args []string) int {
		if len(args) == 0 {
			ctx.Errorf("type: missing argument\n")
			return 1
		}

		status := 0
		for _, name := range args {
			switch {
			case ctx.Builtins != nil && ctx.Builtins.Find(name) != nil:
				ctx.Printf("%s is a shell builtin\n", name)
			case ctx.Plugins != nil && ctx.Plugins.Find(name) != nil:
				ctx.Printf("%s is a plugin\n", name)
			default:
				path, err := exec.LookPath(name)
				if err != nil {
					ctx.Printf("%s: not found\n", name)
					status = 1
					continue
				}
				ctx.Printf("%s is %s\n", name, path)
			}
		}
		return status
	})
}

func Help(ctx *Context, argv []string) int {
	f := newFlagSet("help", "List the shell's builtins and loaded plugins.")

	return f.run(ctx.Stdio, argv, func([]string) int {
		ctx.Println("Builtins:")
		ctx.Builtins.List(ctx.Out)

		if ctx.Plugins != nil {
			ctx.Println()
			ctx.Println("Plugins:")
			ctx.Plugins.List(ctx.Out)
		}
		return 0
	})
}
