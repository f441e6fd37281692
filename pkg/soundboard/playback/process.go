package playback

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// diagnosticsLimit caps how much player stderr is retained per process.
	diagnosticsLimit = 4096

	// pipeWaitDelay bounds how long Wait blocks on stderr after the player exits.
	pipeWaitDelay = time.Second
)

// Process is a handle to a spawned player.
type Process interface {
	// Pid returns the OS process id.
	Pid() int

	// Alive reports whether the process has not been observed to exit.
	Alive() bool

	// Terminate asks the process to exit.
	Terminate() error

	// Kill forcibly stops the process.
	Kill() error

	// Wait blocks until the process exits. Safe to call from several goroutines.
	Wait() error

	// Done is closed once the process has exited.
	Done() <-chan struct{}

	// Diagnostics returns the captured tail of the process' error output.
	Diagnostics() string
}

// Spawner starts player processes.
type Spawner interface {
	Spawn(ctx context.Context, path string, args []string) (Process, error)
}

// ExecSpawner spawns real OS processes with os/exec.
type ExecSpawner struct {
	logger *zap.SugaredLogger
}

// NewExecSpawner creates a spawner for real player processes.
func NewExecSpawner(logger *zap.SugaredLogger) *ExecSpawner {
	return &ExecSpawner{logger: logger.Named("spawner")}
}

// Spawn starts the player detached from ctx: the context only guards the start
// itself, the player keeps running after the caller's request completes.
func (es *ExecSpawner) Spawn(ctx context.Context, path string, args []string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stderr := newTailBuffer(diagnosticsLimit)

	cmd := exec.Command(path, args...)
	cmd.Stderr = stderr
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = pipeWaitDelay

	if err := cmd.Start(); err != nil {
		es.logger.Warnw("Failed to start player process", "path", path, "error", err)
		return nil, fmt.Errorf("start player process: %w", err)
	}

	p := &execProcess{
		cmd:    cmd,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go p.wait()

	es.logger.Debugw("Started player process", "path", path, "pid", p.Pid(), "args", args)
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	done   chan struct{}
	err    error
}

func (p *execProcess) wait() {
	p.err = p.cmd.Wait()
	close(p.done)
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Terminate() error {
	return terminate(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Diagnostics() string {
	return strings.TrimSpace(p.stderr.String())
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	lock  sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}

	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()

	return string(b.buf)
}
