package builtin

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psh/internal/env"
	"psh/internal/jobs"
	"psh/internal/plugin"
	"psh/internal/stdio"
)

type testShell struct {
	ctx      *Context
	out, err *bytes.Buffer
	exits    []int
}

func newTestShell(t *testing.T, environ ...string) *testShell {
	t.Helper()

	ts := &testShell{out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	ts.ctx = &Context{
		Stdio:    &stdio.Stdio{In: strings.NewReader(""), Out: ts.out, Err: ts.err},
		Env:      env.NewMapFromList(environ),
		Jobs:     jobs.NewManager(nil),
		Plugins:  plugin.NewRegistry(),
		Builtins: Core(),
		Exit:     func(status int) { ts.exits = append(ts.exits, status) },
	}
	return ts
}

func (ts *testShell) run(argv ...string) int {
	ts.out.Reset()
	ts.err.Reset()
	return ts.ctx.Builtins.Execute(ts.ctx, argv)
}

// chdirTemp moves into a fresh directory for the duration of the test.
func chdirTemp(t *testing.T) string {
	t.Helper()

	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(orig) })

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return dir
}

func TestRegistry(t *testing.T) {
	r := Core()

	assert.Equal(t, []string{"bg", "cd", "exit", "export", "fg", "help", "jobs", "plugin", "pwd", "type", "unset"}, r.Names())
	assert.Nil(t, r.Find("ls"))
	assert.Equal(t, -1, r.Execute(&Context{}, []string{"ls"}))
	assert.Equal(t, -1, r.Execute(&Context{}, nil))

	r.Register("true", func(*Context, []string) int { return 0 }, "Do nothing")
	assert.Equal(t, 0, r.Execute(&Context{}, []string{"true"}))

	var out bytes.Buffer
	r.List(&out)
	assert.Contains(t, out.String(), "cd         Change directory\n")
	assert.Contains(t, out.String(), "true       Do nothing\n")
}

func TestCd(t *testing.T) {
	start := chdirTemp(t)
	home, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	ts := newTestShell(t, "HOME="+home)

	assert.Equal(t, 0, ts.run("cd"))
	cwd, _ := os.Getwd()
	assert.Equal(t, home, cwd)
	assert.Equal(t, home, env.Getenv(ts.ctx.Env, "PWD"))
	assert.Equal(t, start, env.Getenv(ts.ctx.Env, "OLDPWD"))

	assert.Equal(t, 0, ts.run("cd", "-"))
	assert.Equal(t, start+"\n", ts.out.String())
	cwd, _ = os.Getwd()
	assert.Equal(t, start, cwd)

	assert.Equal(t, 1, ts.run("cd", filepath.Join(start, "missing")))
	assert.True(t, strings.HasPrefix(ts.err.String(), "cd: "))

	assert.Equal(t, 1, ts.run("cd", "a", "b"))
	assert.Equal(t, "cd: too many arguments\n", ts.err.String())

	require.NoError(t, ts.ctx.Env.Unset("HOME"))
	assert.Equal(t, 1, ts.run("cd"))
	assert.Equal(t, "cd: HOME not set\n", ts.err.String())
}

func TestExit(t *testing.T) {
	cases := []struct {
		argv      []string
		status    int
		exits     []int
		errOutput string
	}{
		{[]string{"exit"}, 0, []int{0}, ""},
		{[]string{"exit", "3"}, 3, []int{3}, ""},
		{[]string{"exit", "256"}, 0, []int{0}, ""},
		{[]string{"exit", "x"}, 2, []int{2}, "exit: x: numeric argument required\n"},
		{[]string{"exit", "1", "2"}, 1, nil, "exit: too many arguments\n"},
	}

	for _, tc := range cases {
		t.Run(strings.Join(tc.argv, " "), func(t *testing.T) {
			ts := newTestShell(t)
			assert.Equal(t, tc.status, ts.run(tc.argv...))
			assert.Equal(t, tc.exits, ts.exits)
			assert.Equal(t, tc.errOutput, ts.err.String())
		})
	}
}

func TestExportAndUnset(t *testing.T) {
	ts := newTestShell(t, "Z=last")

	assert.Equal(t, 0, ts.run("export", "A=1", "B=x=y", "C="))
	assert.Equal(t, "1", env.Getenv(ts.ctx.Env, "A"))
	assert.Equal(t, "x=y", env.Getenv(ts.ctx.Env, "B"))

	assert.Equal(t, 0, ts.run("export"))
	assert.Equal(t, "A=1\nB=x=y\nC=\nZ=last\n", ts.out.String())

	assert.Equal(t, 0, ts.run("export", "Z"))
	assert.Equal(t, 1, ts.run("export", "1bad=x"))
	assert.Equal(t, 1, ts.run("export", "bad-name"))

	assert.Equal(t, 0, ts.run("unset", "A", "B"))
	_, ok := ts.ctx.Env.Get("A")
	assert.False(t, ok)

	assert.Equal(t, 1, ts.run("unset"))
	assert.Equal(t, "unset: missing variable name\n", ts.err.String())
}

func TestPwd(t *testing.T) {
	dir := chdirTemp(t)
	ts := newTestShell(t)

	assert.Equal(t, 0, ts.run("pwd"))
	assert.Equal(t, dir+"\n", ts.out.String())

	assert.Equal(t, 0, ts.run("pwd", "-P"))
	assert.Equal(t, dir+"\n", ts.out.String())
}

func TestFlagHelpAndErrors(t *testing.T) {
	ts := newTestShell(t)

	assert.Equal(t, 0, ts.run("pwd", "--help"))
	assert.True(t, strings.HasPrefix(ts.out.String(), "usage: pwd [-P]\n"))
	assert.Contains(t, ts.out.String(), "Flags:")

	assert.Equal(t, 2, ts.run("pwd", "-Z"))
	assert.True(t, strings.HasPrefix(ts.err.String(), "pwd: "))
	assert.Contains(t, ts.err.String(), "usage: pwd [-P]")
}

type fakePlugin struct{ name string }

func (f fakePlugin) Info() plugin.Info {
	return plugin.Info{Name: f.name, Version: "1.0.0", Description: "test plugin"}
}
func (fakePlugin) Init() error { return nil }
func (fakePlugin) Execute(*stdio.Stdio, []string) (int, error) {
	return 0, nil
}
func (fakePlugin) Cleanup() {}

func TestType(t *testing.T) {
	ts := newTestShell(t)
	require.NoError(t, ts.ctx.Plugins.Register(fakePlugin{name: "hello"}))

	assert.Equal(t, 0, ts.run("type", "cd", "hello"))
	assert.Equal(t, "cd is a shell builtin\nhello is a plugin\n", ts.out.String())

	shPath, err := exec.LookPath("sh")
	require.NoError(t, err)
	assert.Equal(t, 0, ts.run("type", "sh"))
	assert.Equal(t, "sh is "+shPath+"\n", ts.out.String())

	assert.Equal(t, 1, ts.run("type", "psh-no-such-command"))
	assert.Equal(t, "psh-no-such-command: not found\n", ts.out.String())

	assert.Equal(t, 1, ts.run("type"))
}

func TestHelp(t *testing.T) {
	ts := newTestShell(t)
	require.NoError(t, ts.ctx.Plugins.Register(fakePlugin{name: "hello"}))

	assert.Equal(t, 0, ts.run("help"))
	out := ts.out.String()
	assert.True(t, strings.HasPrefix(out, "Builtins:\nbg         Put job in background\n"))
	assert.Contains(t, out, "\nPlugins:\nhello           v1.0.0    test plugin\n")
}

func TestPluginBuiltin(t *testing.T) {
	ts := newTestShell(t)
	require.NoError(t, ts.ctx.Plugins.Register(fakePlugin{name: "hello"}))

	assert.Equal(t, 0, ts.run("plugin", "list"))
	assert.Equal(t, "hello           v1.0.0    test plugin\n", ts.out.String())

	assert.Equal(t, 0, ts.run("plugin", "unload", "hello"))
	assert.Equal(t, "Unloaded plugin: hello\n", ts.out.String())

	assert.Equal(t, 1, ts.run("plugin", "unload", "hello"))
	assert.Equal(t, "plugin: plugin hello not found\n", ts.err.String())

	assert.Equal(t, 1, ts.run("plugin", "load", filepath.Join(t.TempDir(), "none.so")))
	assert.True(t, strings.HasPrefix(ts.err.String(), "plugin: cannot load plugin "))

	assert.Equal(t, 2, ts.run("plugin", "frobnicate"))
	assert.Equal(t, 2, ts.run("plugin"))
}

// startGroup runs a command in its own process group, as the executor would
// for a background job.
func startGroup(t *testing.T, name string, args ...string) int {
	t.Helper()

	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())

	pid := cmd.Process.Pid
	t.Cleanup(func() {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		var ws syscall.WaitStatus
		_, _ = syscall.Wait4(-pid, &ws, syscall.WNOHANG, nil)
	})
	return pid
}

func waitForStatus(t *testing.T, jm *jobs.Manager, job *jobs.Job, status jobs.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		jm.Reap()
		return job.Status == status
	}, 5*time.Second, 10*time.Millisecond)
}

func TestJobsBuiltin(t *testing.T) {
	ts := newTestShell(t)
	pid := startGroup(t, "sleep", "30")
	ts.ctx.Jobs.Create(pid, "sleep 30", pid)

	assert.Equal(t, 0, ts.run("jobs"))
	assert.Equal(t, "[1]+    Running    sleep 30\n", ts.out.String())

	assert.Equal(t, 0, ts.run("jobs", "-p"))
	assert.Equal(t, strconv.Itoa(pid)+"\n", ts.out.String())

	assert.Equal(t, 0, ts.run("jobs", "%1"))
	assert.Equal(t, "[1]+    Running    sleep 30\n", ts.out.String())

	assert.Equal(t, 1, ts.run("jobs", "7"))
	assert.Equal(t, "jobs: 7: no such job\n", ts.err.String())
}

func TestFgBuiltin(t *testing.T) {
	ts := newTestShell(t)

	assert.Equal(t, 1, ts.run("fg"))
	assert.Equal(t, "fg: no current job\n", ts.err.String())

	pid := startGroup(t, "sh", "-c", "kill -STOP $$; exit 4")
	job := ts.ctx.Jobs.Create(pid, "stopper", pid)
	waitForStatus(t, ts.ctx.Jobs, job, jobs.Stopped)

	assert.Equal(t, 4, ts.run("fg", "%1"))
	assert.Equal(t, "stopper\n", ts.out.String())
	assert.Equal(t, jobs.Done, job.Status)
	assert.Nil(t, ts.ctx.Jobs.Find(job.ID))

	var notified bytes.Buffer
	ts.ctx.Jobs.NotifyDone(&notified)
	assert.Empty(t, notified.String())
}

func TestBgBuiltin(t *testing.T) {
	ts := newTestShell(t)
	pid := startGroup(t, "sleep", "30")
	job := ts.ctx.Jobs.Create(pid, "sleep 30", pid)

	require.NoError(t, syscall.Kill(-pid, syscall.SIGSTOP))
	waitForStatus(t, ts.ctx.Jobs, job, jobs.Stopped)

	assert.Equal(t, 0, ts.run("bg"))
	assert.Equal(t, "[1]+    sleep 30 &\n", ts.out.String())

	assert.Equal(t, 1, ts.run("bg", "1"))
	assert.Equal(t, "bg: %1: job 1 already in background\n", ts.err.String())

	assert.Equal(t, 1, ts.run("bg", "9"))
}
