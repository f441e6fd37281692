package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

var (
	errTerminated = errors.New("signal: terminated")
	errKilled     = errors.New("signal: killed")
)

// fakeProcess is a controllable stand-in for a player process.
type fakeProcess struct {
	pid  int
	path string
	args []string

	lock            sync.Mutex
	ignoreTerminate bool
	ignoreKill      bool
	exitOnAlive     bool
	terminated      int
	killed          int
	exitErr         error
	diagnostics     string

	done chan struct{}
	once sync.Once
}

func newFakeProcess(pid int, path string, args []string) *fakeProcess {
	return &fakeProcess{
		pid:  pid,
		path: path,
		args: args,
		done: make(chan struct{}),
	}
}

func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.lock.Lock()
		p.exitErr = err
		p.lock.Unlock()
		close(p.done)
	})
}

func (p *fakeProcess) source() string {
	return p.args[len(p.args)-1]
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
	}

	// exitOnAlive reports the process alive once, then exits it
	p.lock.Lock()
	exitNow := p.exitOnAlive
	p.exitOnAlive = false
	p.lock.Unlock()

	if exitNow {
		p.exit(nil)
	}
	return true
}

func (p *fakeProcess) Terminate() error {
	p.lock.Lock()
	p.terminated++
	ignore := p.ignoreTerminate
	p.lock.Unlock()

	if !ignore {
		p.exit(errTerminated)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.lock.Lock()
	p.killed++
	ignore := p.ignoreKill
	p.lock.Unlock()

	if !ignore {
		p.exit(errKilled)
	}
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.done

	p.lock.Lock()
	defer p.lock.Unlock()
	return p.exitErr
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Diagnostics() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.diagnostics
}

func (p *fakeProcess) terminateCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.terminated
}

func (p *fakeProcess) killCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.killed
}

// fakeSpawner hands out fakeProcesses with increasing pids.
type fakeSpawner struct {
	lock      sync.Mutex
	nextPid   int
	processes []*fakeProcess
	err       error
	configure func(p *fakeProcess)
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{nextPid: 1000}
}

func (fs *fakeSpawner) Spawn(_ context.Context, path string, args []string) (Process, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.err != nil {
		return nil, fs.err
	}

	fs.nextPid++
	p := newFakeProcess(fs.nextPid, path, args)
	if fs.configure != nil {
		fs.configure(p)
	}
	fs.processes = append(fs.processes, p)

	return p, nil
}

func (fs *fakeSpawner) spawned() []*fakeProcess {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return append([]*fakeProcess(nil), fs.processes...)
}

func (fs *fakeSpawner) last() *fakeProcess {
	all := fs.spawned()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// aliveFor counts live processes started for source.
func (fs *fakeSpawner) aliveFor(source string) int {
	count := 0
	for _, p := range fs.spawned() {
		if p.source() == source && p.Alive() {
			count++
		}
	}
	return count
}

func (fs *fakeSpawner) aliveTotal() int {
	count := 0
	for _, p := range fs.spawned() {
		if p.Alive() {
			count++
		}
	}
	return count
}

// recordingListener records lifecycle callbacks.
type recordingListener struct {
	lock    sync.Mutex
	started []NowPlaying
	ended   []NowPlaying
}

func (l *recordingListener) SessionStarted(session NowPlaying) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.started = append(l.started, session)
}

func (l *recordingListener) SessionEnded(session NowPlaying) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.ended = append(l.ended, session)
}

func (l *recordingListener) counts() (started, ended int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.started), len(l.ended)
}

// orderingListener counts sessions that ended before their start was
// recorded. Starts are slow, like a database insert.
type orderingListener struct {
	lock       sync.Mutex
	started    map[int]bool
	ended      int
	outOfOrder int
}

func newOrderingListener() *orderingListener {
	return &orderingListener{started: make(map[int]bool)}
}

func (l *orderingListener) SessionStarted(session NowPlaying) {
	time.Sleep(200 * time.Microsecond)

	l.lock.Lock()
	defer l.lock.Unlock()
	l.started[session.ProcessID] = true
}

func (l *orderingListener) SessionEnded(session NowPlaying) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.ended++
	if !l.started[session.ProcessID] {
		l.outOfOrder++
	}
}

func (l *orderingListener) results() (ended, outOfOrder int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.ended, l.outOfOrder
}

func newTestSupervisor(t testing.TB, spawner Spawner, opts ...Option) *Supervisor {
	t.Helper()

	opts = append([]Option{
		WithStopTimeout(50 * time.Millisecond),
		WithStartupGrace(5 * time.Millisecond),
	}, opts...)

	s := NewSupervisor(zaptest.NewLogger(t).Sugar(), spawner, opts...)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func testSound(name string) catalog.Sound {
	return catalog.Sound{
		ID:         uuid.New(),
		Name:       name,
		SourceType: catalog.SourceLocalFile,
		LocalPath:  "/sounds/" + name + ".mp3",
	}
}

// overlapping lets several sounds play at once.
var overlapping = catalog.Settings{StopPreviousOnPlay: true, AllowOverlapping: true}

// exclusive stops everything else on play.
var exclusive = catalog.Settings{StopPreviousOnPlay: true, AllowOverlapping: false}

func tableLen(s *Supervisor) int {
	s.tableLock.Lock()
	defer s.tableLock.Unlock()
	return len(s.sessions)
}

func zapNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
