// Package executor runs external commands with a hard wall-clock limit
package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/celestiaorg/docconv/internal/logger"
)

// waitDelay bounds how long Wait keeps copying output after the process is gone
const waitDelay = 2 * time.Second

// Result is the tri-state outcome of running a command
type Result int

const (
	// ResultSuccess means the command exited with status 0
	ResultSuccess Result = iota
	// ResultTimeout means the command was killed after its time limit
	ResultTimeout
	// ResultError means the command failed to start, exited non-zero or was killed for another reason
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// ErrMemoryLimit is reported when the watchdog killed the command
var ErrMemoryLimit = errors.New("memory limit exceeded")

// Command describes one invocation
type Command struct {
	Args    []string
	Dir     string
	JobID   string
	Label   string
	Timeout time.Duration
	Env     []string
	// MemoryLimitMB kills the process group once its resident memory exceeds the limit. Zero disables the check.
	MemoryLimitMB uint64
	// OnOutput receives every stdout line
	OnOutput func(line string)
	// InheritGroup keeps the command in the caller's process group, so whoever
	// kills the caller's group also kills the command
	InheritGroup bool
}

// Outcome is what Run returns
type Outcome struct {
	Result   Result
	ExitCode int
	Err      error
	Duration time.Duration
}

// Executor runs commands in their own process group
type Executor struct {
	memoryPollInterval time.Duration
}

// New creates an executor
func New() *Executor {
	return &Executor{memoryPollInterval: 500 * time.Millisecond}
}

// Run starts the command and blocks until it exits, its timeout elapses or ctx is done.
// The process group is always killed and reaped before Run returns.
func (e *Executor) Run(ctx context.Context, cmd Command) Outcome {
	start := time.Now()
	log := logger.WithJob(cmd.JobID).WithField("label", cmd.Label)

	if len(cmd.Args) == 0 {
		return Outcome{Result: ResultError, ExitCode: -1, Err: errors.New("empty command")}
	}

	log.WithFields(map[string]interface{}{
		"command": strings.Join(cmd.Args, " "),
		"dir":     cmd.Dir,
		"timeout": cmd.Timeout.String(),
	}).Info("Running command")

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	stdout := newLineWriter(cmd.OnOutput)
	stderr := newLineWriter(func(line string) {
		log.WithField("stream", "stderr").Debug(line)
	})

	c := exec.Command(cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = waitDelay
	if !cmd.InheritGroup {
		setProcessGroup(c)
	}

	if err := c.Start(); err != nil {
		log.Errorf("Failed to start command: %v", err)
		return Outcome{Result: ResultError, ExitCode: -1, Err: fmt.Errorf("failed to start %s: %w", cmd.Args[0], err), Duration: time.Since(start)}
	}
	pid := c.Process.Pid
	kill := func() { _ = c.Process.Kill() }
	if !cmd.InheritGroup {
		kill = func() { killGroup(pid) }
		// leftover members of the group go with the leader on every path
		defer killGroup(pid)
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- c.Wait()
	}()

	var memCh <-chan uint64
	if cmd.MemoryLimitMB > 0 {
		watchCtx, stopWatch := context.WithCancel(runCtx)
		defer stopWatch()
		memCh = watchMemory(watchCtx, pid, cmd.MemoryLimitMB*1024*1024, e.memoryPollInterval)
	}

	var out Outcome
	select {
	case err := <-waitCh:
		out = exitOutcome(err)
	case <-runCtx.Done():
		kill()
		<-waitCh
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			out = Outcome{Result: ResultTimeout, ExitCode: -1, Err: fmt.Errorf("killed after %s", cmd.Timeout)}
		} else {
			out = Outcome{Result: ResultError, ExitCode: -1, Err: runCtx.Err()}
		}
	case rss := <-memCh:
		kill()
		<-waitCh
		out = Outcome{Result: ResultError, ExitCode: -1, Err: fmt.Errorf("%w: %d MB resident, limit %d MB", ErrMemoryLimit, rss/1024/1024, cmd.MemoryLimitMB)}
	}

	stdout.Flush()
	stderr.Flush()
	out.Duration = time.Since(start)

	fields := map[string]interface{}{
		"result":    out.Result.String(),
		"exit_code": out.ExitCode,
		"duration":  out.Duration.String(),
	}
	if out.Err != nil {
		fields["error"] = out.Err.Error()
	}
	if out.Result == ResultSuccess {
		log.WithFields(fields).Info("Command finished")
	} else {
		log.WithFields(fields).Warn("Command failed")
	}
	return out
}

func exitOutcome(err error) Outcome {
	// a detached descendant still holding stdout after a clean exit
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return Outcome{Result: ResultSuccess}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Outcome{Result: ResultError, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return Outcome{Result: ResultError, ExitCode: -1, Err: err}
}
