package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the test read what the consumer goroutine wrote.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLoggerFormatAndLevels(t *testing.T) {
	var out syncBuffer
	l := New(&out, Info)

	l.Errorf("spawn failed: %s", "ls")
	l.Infof("started %d", 42)
	l.Debugf("hidden")
	l.Tracef("hidden")
	l.Close()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{3} \[ERROR\] spawn failed: ls$`), lines[0])
	assert.Regexp(t, regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{3} \[INFO\] started 42$`), lines[1])
}

func TestLoggerKeepsOrder(t *testing.T) {
	var out syncBuffer
	l := New(&out, Trace)

	for i := 0; i < 500; i++ {
		l.Tracef("%d", i)
	}
	l.Close()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.LessOrEqual(t, len(lines), 500)
	require.Equal(t, uint64(500-len(lines)), l.Dropped())
	assert.True(t, strings.HasSuffix(lines[len(lines)-1], " 499"))
}

func TestLoggerDropsOldest(t *testing.T) {
	// Hold the consumer off by filling the queue under the lock.
	var out syncBuffer
	l := New(&out, Trace)

	l.mu.Lock()
	for i := 0; i < QueueSize+10; i++ {
		if len(l.queue) == QueueSize {
			copy(l.queue, l.queue[1:])
			l.queue = l.queue[:QueueSize-1]
			l.dropped++
		}
		l.queue = append(l.queue, entry{level: Trace, msg: "x"})
	}
	l.mu.Unlock()

	l.Tracef("last")
	l.Close()

	assert.GreaterOrEqual(t, l.Dropped(), uint64(10))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out.String()), "[TRACE] last"))
}

func TestLoggerAfterClose(t *testing.T) {
	var out syncBuffer
	l := New(&out, Trace)
	l.Close()
	l.Errorf("ignored")
	l.Close()

	assert.Empty(t, out.String())
}

func TestParseLevel(t *testing.T) {
	for i, name := range []string{"off", "Error", "WARN", "info", "debug", "trace"} {
		lvl, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, Level(i), lvl)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "Level(9)", Level(9).String())
}

func TestPackageLogger(t *testing.T) {
	t.Setenv(DisableEnv, "")
	path := filepath.Join(t.TempDir(), "psh.log")

	require.NoError(t, Init(Options{Level: Warn, File: path}))
	require.NoError(t, Init(Options{Level: Trace}), "second Init is a no-op")

	Warnf("pipeline truncated to %d stages", 16)
	Infof("not recorded")
	Shutdown()
	Shutdown()
	Errorf("after shutdown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), "[WARN] pipeline truncated to 16 stages")
}

func TestPackageLoggerDisabled(t *testing.T) {
	t.Setenv(DisableEnv, "1")
	path := filepath.Join(t.TempDir(), "psh.log")

	require.NoError(t, Init(Options{Level: Trace, File: path}))
	Errorf("nothing")
	Shutdown()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
