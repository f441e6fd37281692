// Package playback supervises external media player processes, one per sound,
// and keeps the table of what is currently playing.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

const (
	// DefaultPlayerPath is used when the settings don't name a player executable.
	DefaultPlayerPath = "mpv"

	// DefaultStopTimeout is how long a player gets to exit after a terminate request.
	DefaultStopTimeout = 5 * time.Second

	// DefaultStartupGrace is how long a fresh player must survive to count as started.
	DefaultStartupGrace = 250 * time.Millisecond
)

// Listener is notified about session lifecycle. Exactly one SessionEnded call
// follows every SessionStarted call. Calls happen outside the table lock and
// may come from several goroutines at once.
type Listener interface {
	SessionStarted(session NowPlaying)
	SessionEnded(session NowPlaying)
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStopTimeout sets the grace window between terminate and kill.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.stopTimeout = d
	}
}

// WithStartupGrace sets how long a new player must stay alive before Play
// reports success. Zero disables the check.
func WithStartupGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		s.startupGrace = d
	}
}

// WithDefaults sets the application-level device and volume fallbacks.
func WithDefaults(defaults CommandDefaults) Option {
	return func(s *Supervisor) {
		s.defaults = defaults
	}
}

// WithPlayerPath sets the executable used when the settings don't name one.
func WithPlayerPath(path string) Option {
	return func(s *Supervisor) {
		s.playerPath = path
	}
}

// WithListener registers a lifecycle listener.
func WithListener(l Listener) Option {
	return func(s *Supervisor) {
		s.listeners = append(s.listeners, l)
	}
}

// WithClock overrides the session start-time source.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		s.now = now
	}
}

// Supervisor owns the session table and every player process in it.
//
// opLock serializes play/stop/stop-all/toggle/restart end to end, so the whole
// check-stop-spawn-insert sequence is atomic with respect to other mutations.
// tableLock only guards the map, so reapers and queries never wait on a slow stop.
type Supervisor struct {
	logger  *zap.SugaredLogger
	spawner Spawner

	opLock    sync.Mutex
	tableLock sync.Mutex
	sessions  map[uuid.UUID]*Session
	closed    bool
	reapers   sync.WaitGroup

	playerPath   string
	defaults     CommandDefaults
	stopTimeout  time.Duration
	startupGrace time.Duration
	listeners    []Listener
	now          func() time.Time
}

// NewSupervisor creates a supervisor that starts players with spawner.
func NewSupervisor(logger *zap.SugaredLogger, spawner Spawner, opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:       logger.Named("playback"),
		spawner:      spawner,
		sessions:     make(map[uuid.UUID]*Session),
		playerPath:   DefaultPlayerPath,
		stopTimeout:  DefaultStopTimeout,
		startupGrace: DefaultStartupGrace,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debugw("Created supervisor instance",
		"playerPath", s.playerPath,
		"stopTimeout", s.stopTimeout,
		"startupGrace", s.startupGrace)

	return s
}

// Play starts sound unless it is already playing. With restart set, a live
// session for the sound is stopped first and a new player is spawned.
func (s *Supervisor) Play(ctx context.Context, sound catalog.Sound, settings catalog.Settings, restart bool) (*Session, error) {
	s.opLock.Lock()
	defer s.opLock.Unlock()

	return s.play(ctx, sound, settings, restart)
}

// Restart is Play with restart set.
func (s *Supervisor) Restart(ctx context.Context, sound catalog.Sound, settings catalog.Settings) (*Session, error) {
	return s.Play(ctx, sound, settings, true)
}

// Toggle stops sound if it is playing and plays it otherwise. It returns the
// new session, or nil when the sound was stopped.
func (s *Supervisor) Toggle(ctx context.Context, sound catalog.Sound, settings catalog.Settings) (*Session, error) {
	s.opLock.Lock()
	defer s.opLock.Unlock()

	if _, ok := s.live(sound.ID); ok {
		_, err := s.stop(sound.ID)
		return nil, err
	}

	return s.play(ctx, sound, settings, false)
}

// Stop stops the session for soundID. It reports whether a live session was
// found. The entry is removed even when terminating the player fails.
func (s *Supervisor) Stop(soundID uuid.UUID) (bool, error) {
	s.opLock.Lock()
	defer s.opLock.Unlock()

	return s.stop(soundID)
}

// StopAll stops every session and leaves the table empty. A player that fails
// to stop does not prevent stopping the others.
func (s *Supervisor) StopAll() error {
	s.opLock.Lock()
	defer s.opLock.Unlock()

	return s.stopAll()
}

// IsPlaying reports whether soundID has a live session.
func (s *Supervisor) IsPlaying(soundID uuid.UUID) bool {
	_, ok := s.live(soundID)
	return ok
}

// NowPlaying returns a snapshot of live sessions in no particular order.
// Sessions found dead during the scan are purged.
func (s *Supervisor) NowPlaying() []NowPlaying {
	var playing []NowPlaying
	var ended []*Session

	s.tableLock.Lock()
	for id, session := range s.sessions {
		if session.IsRunning() {
			playing = append(playing, session.Snapshot())
			continue
		}

		delete(s.sessions, id)
		ended = append(ended, session)
	}
	s.tableLock.Unlock()

	for _, session := range ended {
		s.logger.Debugw("Purged finished session", "session", session)
		s.notifyEnded(session)
	}

	return playing
}

// Close stops everything and refuses further plays. It waits up to the stop
// timeout for reapers, so a player that survives a kill can't hang shutdown.
func (s *Supervisor) Close() error {
	s.opLock.Lock()
	s.closed = true
	err := s.stopAll()
	s.opLock.Unlock()

	reaped := make(chan struct{})
	go func() {
		s.reapers.Wait()
		close(reaped)
	}()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-reaped:
		s.logger.Debug("Supervisor closed")
	case <-timer.C:
		s.logger.Warnw("Supervisor closed with players that wouldn't exit", "timeout", s.stopTimeout)
	}

	return err
}

func (s *Supervisor) play(ctx context.Context, sound catalog.Sound, settings catalog.Settings, restart bool) (*Session, error) {
	if s.closed {
		return nil, ErrClosed
	}

	source, ok := sound.PlayableSource()
	if !ok {
		s.logger.Warnw("Sound has no playable source", "sound", sound)
		return nil, &NoSourceError{SoundID: sound.ID}
	}

	if existing, ok := s.live(sound.ID); ok {
		if !restart {
			s.logger.Debugw("Sound already playing", "session", existing)
			return existing, nil
		}

		s.logger.Debugw("Restarting sound", "session", existing)
		if _, err := s.stop(sound.ID); err != nil {
			s.logger.Warnw("Failed to stop previous session cleanly", "sound", sound, "error", err)
		}
	}

	if settings.Exclusive() {
		if err := s.stopAll(); err != nil {
			s.logger.Warnw("Failed to stop other sounds cleanly", "error", err)
		}
	}

	path := settings.PlayerPath
	if path == "" {
		path = s.playerPath
	}

	args := BuildArgs(CommandOptions{
		Source:       source,
		OutputDevice: firstNonEmpty(sound.OutputDevice, settings.DefaultOutputDevice),
		Volume:       firstNonNil(sound.Volume, settings.DefaultVolume),
		TrimStart:    sound.TrimStart,
		TrimEnd:      sound.TrimEnd,
	}, s.defaults)

	s.logger.Infow("Playing sound", "sound", sound, "path", path, "args", args)

	process, err := s.spawner.Spawn(ctx, path, args)
	if err != nil {
		return nil, &SpawnFailedError{SoundID: sound.ID, Executable: path, Err: err}
	}

	session := newSession(sound.ID, sound.Name, process, s.now())

	finished, err := s.awaitStartup(ctx, process)
	if err != nil {
		return nil, &SpawnFailedError{
			SoundID:     sound.ID,
			Executable:  path,
			Diagnostics: process.Diagnostics(),
			Err:         err,
		}
	}

	if finished {
		s.logger.Debugw("Player finished during startup grace period", "session", session)
		s.notifyStarted(session)
		s.notifyEnded(session)
		return session, nil
	}

	// listeners hear about the start before the reaper or a purge can end it
	s.notifyStarted(session)

	s.tableLock.Lock()
	s.sessions[sound.ID] = session
	s.tableLock.Unlock()

	s.reapers.Add(1)
	go s.reap(session)

	return session, nil
}

// awaitStartup waits out the startup grace period. finished is set when the
// player exited cleanly before it ended; a non-zero exit is an error.
func (s *Supervisor) awaitStartup(ctx context.Context, process Process) (finished bool, err error) {
	if s.startupGrace <= 0 {
		return !process.Alive(), nil
	}

	timer := time.NewTimer(s.startupGrace)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false, nil
	case <-process.Done():
		if err := process.Wait(); err != nil {
			return false, fmt.Errorf("player exited during startup: %w", err)
		}
		return true, nil
	case <-ctx.Done():
		if err := s.terminate(process); err != nil {
			s.logger.Warnw("Failed to stop player after cancelled start", "pid", process.Pid(), "error", err)
		}
		return false, ctx.Err()
	}
}

// reap waits for the session's player to exit and removes the entry if it is
// still the current one for its sound.
func (s *Supervisor) reap(session *Session) {
	defer s.reapers.Done()

	err := session.process.Wait()

	if !s.remove(session) {
		return
	}

	if err != nil {
		s.logger.Debugw("Player exited with error", "session", session, "error", err)
	} else {
		s.logger.Debugw("Sound finished", "session", session)
	}

	s.notifyEnded(session)
}

func (s *Supervisor) stop(soundID uuid.UUID) (bool, error) {
	s.tableLock.Lock()
	session, ok := s.sessions[soundID]
	if ok {
		delete(s.sessions, soundID)
	}
	s.tableLock.Unlock()

	if !ok {
		return false, nil
	}

	defer s.notifyEnded(session)

	if !session.IsRunning() {
		s.logger.Debugw("Session already finished", "session", session)
		return false, nil
	}

	s.logger.Infow("Stopping sound", "session", session)

	if err := s.terminate(session.process); err != nil {
		s.logger.Warnw("Failed to stop player", "session", session, "error", err)
		return true, fmt.Errorf("stop sound %s: %w", soundID, err)
	}

	return true, nil
}

func (s *Supervisor) stopAll() error {
	s.tableLock.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.tableLock.Unlock()

	if len(sessions) == 0 {
		return nil
	}

	s.logger.Infow("Stopping all sounds", "count", len(sessions))

	p := pool.New().WithErrors()
	for _, session := range sessions {
		p.Go(func() error {
			defer s.notifyEnded(session)

			if err := s.terminate(session.process); err != nil {
				s.logger.Warnw("Failed to stop player", "session", session, "error", err)
				return fmt.Errorf("stop sound %s: %w", session.soundID, err)
			}
			return nil
		})
	}

	return p.Wait()
}

// terminate asks the player to exit, then kills it once the stop timeout passes.
func (s *Supervisor) terminate(process Process) error {
	if !process.Alive() {
		return nil
	}

	if err := process.Terminate(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debugw("Terminate request failed, killing", "pid", process.Pid(), "error", err)
		return s.kill(process)
	}

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-process.Done():
		return nil
	case <-timer.C:
	}

	s.logger.Warnw("Player ignored terminate request, killing", "pid", process.Pid(), "timeout", s.stopTimeout)
	return s.kill(process)
}

func (s *Supervisor) kill(process Process) error {
	if err := process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill player process %d: %w", process.Pid(), err)
	}

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-process.Done():
		return nil
	case <-timer.C:
		return fmt.Errorf("player process %d still running after kill", process.Pid())
	}
}

// live returns the entry for soundID if its process is alive, purging it otherwise.
func (s *Supervisor) live(soundID uuid.UUID) (*Session, bool) {
	s.tableLock.Lock()
	session, ok := s.sessions[soundID]
	if !ok {
		s.tableLock.Unlock()
		return nil, false
	}

	if session.IsRunning() {
		s.tableLock.Unlock()
		return session, true
	}

	delete(s.sessions, soundID)
	s.tableLock.Unlock()

	s.logger.Debugw("Purged finished session", "session", session)
	s.notifyEnded(session)

	return nil, false
}

// remove deletes session only if it is still the table's entry for its sound.
func (s *Supervisor) remove(session *Session) bool {
	s.tableLock.Lock()
	defer s.tableLock.Unlock()

	if current, ok := s.sessions[session.soundID]; ok && current == session {
		delete(s.sessions, session.soundID)
		return true
	}

	return false
}

func (s *Supervisor) notifyStarted(session *Session) {
	snapshot := session.Snapshot()
	for _, l := range s.listeners {
		l.SessionStarted(snapshot)
	}
}

func (s *Supervisor) notifyEnded(session *Session) {
	snapshot := session.Snapshot()
	for _, l := range s.listeners {
		l.SessionEnded(snapshot)
	}
}

// String returns a human-readable summary of the table.
func (s *Supervisor) String() string {
	s.tableLock.Lock()
	defer s.tableLock.Unlock()

	return fmt.Sprintf("<%d playback sessions>", len(s.sessions))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
