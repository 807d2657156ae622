package builtin

func Plugin(ctx *Context, argv []string) int {
	f := newFlagSet("plugin load PATH... | unload NAME... | list", "Manage dynamically loaded commands.")

	return f.run(ctx.Stdio, argv, func(args []string) int {
		if ctx.Plugins == nil {
			ctx.Errorf("plugin: plugins are not available\n")
			return 1
		}
		if len(args) == 0 {
			f.printHelp(ctx.Err)
			return 2
		}

		status := 0
		switch args[0] {
		case "list":
			ctx.Plugins.List(ctx.Out)
		case "load":
			for _, path := range args[1:] {
				info, err := ctx.Plugins.Load(path)
				if err != nil {
					status = ctx.Fail("plugin", err)
					continue
				}
				ctx.Printf("Loaded plugin: %s v%s\n", info.Name, info.Version)
			}
		case "unload":
			for _, name := range args[1:] {
				if err := ctx.Plugins.Unload(name); err != nil {
					status = ctx.Fail("plugin", err)
					continue
				}
				ctx.Printf("Unloaded plugin: %s\n", name)
			}
		default:
			ctx.Errorf("plugin: unknown subcommand %q\n", args[0])
			f.printHelp(ctx.Err)
			return 2
		}
		return status
	})
}
