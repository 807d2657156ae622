package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"psh/internal/jobs"
)

// jobArg resolves a job spec ("3" or "%3") or, with no spec, the current job.
func jobArg(ctx *Context, name string, args []string) (*jobs.Job, bool) {
	if len(args) == 0 {
		job := ctx.Jobs.Current()
		if job == nil {
			ctx.Errorf("%s: no current job\n", name)
			return nil, false
		}
		return job, true
	}

	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "%"))
	if err != nil {
		ctx.Errorf("%s: %s: no such job\n", name, args[0])
		return nil, false
	}
	job := ctx.Jobs.Find(id)
	if job == nil {
		ctx.Errorf("%s: %s: no such job\n", name, args[0])
		return nil, false
	}
	return job, true
}

func Jobs(ctx *Context, argv []string) int {
	f := newFlagSet("jobs [-p] [ID...]", "List jobs, or only the given ones.")
	pgids := f.Bool('p', "print only process group ids")

	return f.run(ctx.Stdio, argv, func(args []string) int {
		ctx.Jobs.Reap()

		var selected []*jobs.Job
		status := 0
		if len(args) == 0 {
			if !*pgids {
				ctx.Jobs.List(ctx.Out)
				return 0
			}
			selected = ctx.Jobs.All()
		}
		for _, arg := range args {
			job, ok := jobArg(ctx, "jobs", []string{arg})
			if !ok {
				status = 1
				continue
			}
			selected = append(selected, job)
		}

		for _, job := range selected {
			if *pgids {
				ctx.Println(job.Pgid)
			} else {
				ctx.Jobs.Write(ctx.Out, job)
			}
		}
		return status
	})
}

// Fg continues a job in the foreground and waits for it. The job's status
// becomes the builtin's status.
func Fg(ctx *Context, argv []string) int {
	if len(argv) > 2 {
		ctx.Errorf("fg: too many arguments\n")
		return 1
	}

	ctx.Jobs.Reap()
	job, ok := jobArg(ctx, "fg", argv[1:])
	if !ok {
		return 1
	}

	ctx.Println(job.Label)
	status, err := ctx.Jobs.Foreground(job)
	if err != nil {
		return ctx.Fail("fg", err)
	}

	switch job.Status {
	case jobs.Stopped:
		ctx.Println()
		ctx.Jobs.Write(ctx.Out, job)
	case jobs.Done:
		ctx.Jobs.Remove(job)
	}
	return status
}

func Bg(ctx *Context, argv []string) int {
	ctx.Jobs.Reap()

	args := argv[1:]
	if len(args) == 0 {
		args = []string{""}
	}

	status := 0
	for _, arg := range args {
		var spec []string
		if arg != "" {
			spec = []string{arg}
		}

		job, ok := jobArg(ctx, "bg", spec)
		if !ok {
			status = 1
			continue
		}
		if err := ctx.Jobs.Background(job, ctx.Out); err != nil {
			status = ctx.Fail("bg", fmt.Errorf("%%%d: %w", job.ID, err))
		}
	}
	return status
}
