package soundboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
	"github.com/omriharel/soundboard/pkg/soundboard/playback"
)

// fakeProcess exits as soon as it's asked to.
type fakeProcess struct {
	pid  int
	args []string
	done chan struct{}
	once sync.Once
}

func (p *fakeProcess) exit() { p.once.Do(func() { close(p.done) }) }
func (p *fakeProcess) Pid() int { return p.pid }
func (p *fakeProcess) Terminate() error { p.exit(); return nil }
func (p *fakeProcess) Kill() error { p.exit(); return nil }
func (p *fakeProcess) Wait() error { <-p.done; return nil }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Diagnostics() string { return "" }
func (p *fakeProcess) source() string { return p.args[len(p.args)-1] }
func (p *fakeProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

type fakeSpawner struct {
	lock      sync.Mutex
	nextPid   int
	processes []*fakeProcess
	err       error
}

func (fs *fakeSpawner) Spawn(_ context.Context, _ string, args []string) (playback.Process, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.err != nil {
		return nil, fs.err
	}

	fs.nextPid++
	p := &fakeProcess{pid: 5000 + fs.nextPid, args: args, done: make(chan struct{})}
	fs.processes = append(fs.processes, p)

	return p, nil
}

func (fs *fakeSpawner) spawned() []*fakeProcess {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return append([]*fakeProcess(nil), fs.processes...)
}

func (fs *fakeSpawner) setErr(err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.err = err
}

// fakeCatalog serves sounds, settings and shortcuts from memory.
type fakeCatalog struct {
	lock          sync.Mutex
	sounds        map[uuid.UUID]catalog.Sound
	settings      catalog.Settings
	settingsReads int
	shortcuts     []catalog.Shortcut
}

func newFakeCatalog(settings catalog.Settings) *fakeCatalog {
	return &fakeCatalog{
		sounds:   make(map[uuid.UUID]catalog.Sound),
		settings: settings,
	}
}

func (c *fakeCatalog) add(sound catalog.Sound) catalog.Sound {
	c.lock.Lock()
	defer c.lock.Unlock()

	if sound.ID == uuid.Nil {
		sound.ID = uuid.New()
	}
	c.sounds[sound.ID] = sound
	return sound
}

func (c *fakeCatalog) bind(sound catalog.Sound, hotkey string, action catalog.Action) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.shortcuts = append(c.shortcuts, catalog.Shortcut{
		ID:      uuid.New(),
		SoundID: sound.ID,
		Hotkey:  catalog.NormalizeHotkey(hotkey),
		Action:  action,
		Enabled: true,
	})
}

func (c *fakeCatalog) Sound(_ context.Context, id uuid.UUID) (catalog.Sound, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	sound, ok := c.sounds[id]
	if !ok {
		return catalog.Sound{}, &catalog.SoundNotFoundError{ID: id}
	}
	return sound, nil
}

func (c *fakeCatalog) IncrementPlayCount(_ context.Context, id uuid.UUID) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	sound, ok := c.sounds[id]
	if !ok {
		return &catalog.SoundNotFoundError{ID: id}
	}
	sound.PlayCount++
	c.sounds[id] = sound
	return nil
}

func (c *fakeCatalog) Settings(context.Context) (catalog.Settings, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.settingsReads++
	return c.settings, nil
}

func (c *fakeCatalog) Shortcuts(context.Context) ([]catalog.Shortcut, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]catalog.Shortcut(nil), c.shortcuts...), nil
}

func (c *fakeCatalog) playCount(id uuid.UUID) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.sounds[id].PlayCount
}

func (c *fakeCatalog) reads() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.settingsReads
}

// recordingNotifier collects notification titles.
type recordingNotifier struct {
	lock   sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, _ string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) notified() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string(nil), n.titles...)
}

func newTestSupervisor(t *testing.T, spawner playback.Spawner) *playback.Supervisor {
	t.Helper()

	s := playback.NewSupervisor(zaptest.NewLogger(t).Sugar(), spawner,
		playback.WithStartupGrace(0),
		playback.WithStopTimeout(50*time.Millisecond))
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func localSound(name string) catalog.Sound {
	return catalog.Sound{
		Name:       name,
		SourceType: catalog.SourceLocalFile,
		LocalPath:  "/sounds/" + name + ".mp3",
	}
}

var overlapping = catalog.Settings{StopPreviousOnPlay: true, AllowOverlapping: true, PlayerPath: "mpv"}
