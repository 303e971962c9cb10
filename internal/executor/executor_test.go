//go:build !windows

package executor

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunResults(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		timeout  time.Duration
		result   Result
		exitCode int
	}{
		{name: "success", args: []string{"true"}, timeout: 5 * time.Second, result: ResultSuccess, exitCode: 0},
		{name: "non-zero exit", args: []string{"sh", "-c", "exit 3"}, timeout: 5 * time.Second, result: ResultError, exitCode: 3},
		{name: "missing binary", args: []string{"/nonexistent/docconv-tool"}, timeout: 5 * time.Second, result: ResultError, exitCode: -1},
		{name: "empty command", args: nil, result: ResultError, exitCode: -1},
		{name: "timeout", args: []string{"sleep", "30"}, timeout: 200 * time.Millisecond, result: ResultTimeout, exitCode: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := New().Run(context.Background(), Command{Args: tt.args, Timeout: tt.timeout, JobID: "test"})
			assert.Equal(t, tt.result, out.Result)
			assert.Equal(t, tt.exitCode, out.ExitCode)
			if tt.result == ResultSuccess {
				assert.NoError(t, out.Err)
			} else {
				assert.Error(t, out.Err)
			}
		})
	}
}

func TestRunTimeoutKillsDescendants(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	start := time.Now()

	out := New().Run(context.Background(), Command{
		Args:    []string{"sh", "-c", "sleep 30 & echo $!; wait"},
		Timeout: 300 * time.Millisecond,
		OnOutput: func(line string) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, line)
		},
	})

	require.Equal(t, ResultTimeout, out.Result)
	assert.Less(t, time.Since(start), 10*time.Second)

	mu.Lock()
	require.Len(t, lines, 1)
	childPID, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	mu.Unlock()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return processGone(int32(childPID))
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRunParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	out := New().Run(ctx, Command{Args: []string{"sleep", "30"}, Timeout: time.Minute})
	assert.Equal(t, ResultError, out.Result)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestRunStreamsOutputLines(t *testing.T) {
	var lines []string
	out := New().Run(context.Background(), Command{
		Args:     []string{"sh", "-c", "echo 'page 1'; echo; printf 'page 2'"},
		Timeout:  5 * time.Second,
		OnOutput: func(line string) { lines = append(lines, line) },
	})

	require.Equal(t, ResultSuccess, out.Result)
	assert.Equal(t, []string{"page 1", "page 2"}, lines)
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	out := New().Run(context.Background(), Command{
		Args:     []string{"pwd"},
		Dir:      dir,
		Timeout:  5 * time.Second,
		OnOutput: func(line string) { lines = append(lines, line) },
	})

	require.Equal(t, ResultSuccess, out.Result)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], dir[strings.LastIndex(dir, "/"):]))
}

func TestRunMemoryLimit(t *testing.T) {
	e := &Executor{memoryPollInterval: 20 * time.Millisecond}
	// a 1 MB ceiling is below what any shell needs resident
	out := e.Run(context.Background(), Command{
		Args:          []string{"sh", "-c", "sleep 30"},
		Timeout:       10 * time.Second,
		MemoryLimitMB: 1,
	})

	assert.Equal(t, ResultError, out.Result)
	assert.ErrorIs(t, out.Err, ErrMemoryLimit)
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := newLineWriter(func(s string) { lines = append(lines, s) })

	_, _ = w.Write([]byte("pa"))
	_, _ = w.Write([]byte("ge 1\r\npage"))
	assert.Equal(t, []string{"page 1"}, lines)

	w.Flush()
	assert.Equal(t, []string{"page 1", "page"}, lines)
}

func TestLineWriterSplitsLongLines(t *testing.T) {
	var lines []string
	w := newLineWriter(func(s string) { lines = append(lines, s) })

	chunk := bytes.Repeat([]byte("x"), 1000)
	for i := 0; i < 200; i++ {
		_, _ = w.Write(chunk)
		assert.Less(t, w.buf.Len(), maxLineLength)
	}
	_, _ = w.Write([]byte("\npage 2\n"))

	require.Len(t, lines, 5)
	for _, line := range lines[:3] {
		assert.Len(t, line, maxLineLength)
	}
	assert.Len(t, lines[3], 200*1000-3*maxLineLength)
	assert.Equal(t, "page 2", lines[4])
}

func processGone(pid int32) bool {
	exists, err := process.PidExists(pid)
	if err != nil || !exists {
		return true
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		return true
	}
	status, err := p.Status()
	if err != nil {
		return true
	}
	for _, s := range status {
		if s == process.Zombie {
			return true
		}
	}
	return false
}

func TestRunInheritGroup(t *testing.T) {
	out := New().Run(context.Background(), Command{Args: []string{"true"}, InheritGroup: true, Timeout: 5 * time.Second})
	assert.Equal(t, ResultSuccess, out.Result)

	out = New().Run(context.Background(), Command{Args: []string{"sleep", "30"}, InheritGroup: true, Timeout: 100 * time.Millisecond})
	assert.Equal(t, ResultTimeout, out.Result)
}
