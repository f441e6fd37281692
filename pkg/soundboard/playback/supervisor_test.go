package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

func TestIsPlaying_NoSession(t *testing.T) {
	s := newTestSupervisor(t, newFakeSpawner())

	require.False(t, s.IsPlaying(uuid.New()))
	require.Empty(t, s.NowPlaying())
}

func TestPlay_StartsSession(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := testSound("airhorn")

	session, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)
	require.Equal(t, sound.ID, session.SoundID())
	require.Equal(t, "airhorn", session.SoundName())
	require.Equal(t, spawner.last().pid, session.ProcessID())
	require.True(t, s.IsPlaying(sound.ID))

	p := spawner.last()
	require.Equal(t, DefaultPlayerPath, p.path)
	require.Equal(t, "--no-video", p.args[0])
	require.Equal(t, sound.LocalPath, p.source())
}

func TestPlay_AlreadyPlayingReturnsSameSession(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := testSound("drumroll")

	first, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)

	second, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Len(t, spawner.spawned(), 1)
}

func TestPlay_RestartReplacesProcess(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := testSound("rimshot")

	first, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)
	oldProcess := spawner.last()

	second, err := s.Restart(context.Background(), sound, overlapping)
	require.NoError(t, err)

	require.NotEqual(t, first.ProcessID(), second.ProcessID())
	require.Equal(t, 1, oldProcess.terminateCount())
	require.False(t, oldProcess.Alive())
	require.True(t, s.IsPlaying(sound.ID))

	playing := s.NowPlaying()
	require.Len(t, playing, 1)
	require.Equal(t, second.ProcessID(), playing[0].ProcessID)
}

func TestStop_NotPlaying(t *testing.T) {
	s := newTestSupervisor(t, newFakeSpawner())

	stopped, err := s.Stop(uuid.New())
	require.NoError(t, err)
	require.False(t, stopped)
}

func TestStop_Playing(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := testSound("sad-trombone")

	_, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)

	stopped, err := s.Stop(sound.ID)
	require.NoError(t, err)
	require.True(t, stopped)
	require.False(t, s.IsPlaying(sound.ID))
	require.Equal(t, 1, spawner.last().terminateCount())
	require.Zero(t, spawner.last().killCount())

	stopped, err = s.Stop(sound.ID)
	require.NoError(t, err)
	require.False(t, stopped)
}

func TestStop_ForceKillsUnresponsivePlayer(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.configure = func(p *fakeProcess) { p.ignoreTerminate = true }
	s := newTestSupervisor(t, spawner)
	sound := testSound("stubborn")

	_, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)

	stopped, err := s.Stop(sound.ID)
	require.NoError(t, err)
	require.True(t, stopped)
	require.Equal(t, 1, spawner.last().killCount())
	require.Zero(t, tableLen(s))
}

func TestStopAll_EmptiesTable(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)

	var stubborn *fakeProcess
	spawner.configure = func(p *fakeProcess) {
		if stubborn == nil {
			p.ignoreTerminate = true
			stubborn = p
		}
	}

	for i := 0; i < 4; i++ {
		_, err := s.Play(context.Background(), testSound(fmt.Sprintf("sound-%d", i)), overlapping, false)
		require.NoError(t, err)
	}
	require.Len(t, s.NowPlaying(), 4)

	require.NoError(t, s.StopAll())

	require.Empty(t, s.NowPlaying())
	require.Zero(t, tableLen(s))
	require.Zero(t, spawner.aliveTotal())
	require.Equal(t, 1, stubborn.killCount())
}

func TestStopAll_NothingPlaying(t *testing.T) {
	s := newTestSupervisor(t, newFakeSpawner())
	require.NoError(t, s.StopAll())
}

func TestPlay_ExclusiveStopsOthers(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	a, b := testSound("a"), testSound("b")

	_, err := s.Play(context.Background(), a, exclusive, false)
	require.NoError(t, err)
	processA := spawner.last()

	_, err = s.Play(context.Background(), b, exclusive, false)
	require.NoError(t, err)

	require.False(t, processA.Alive())
	playing := s.NowPlaying()
	require.Len(t, playing, 1)
	require.Equal(t, b.ID, playing[0].SoundID)
}

func TestPlay_OverlapAllowed(t *testing.T) {
	tests := []struct {
		name     string
		settings catalog.Settings
	}{
		{name: "allow overlapping overrides stop previous", settings: overlapping},
		{name: "stop previous disabled", settings: catalog.Settings{}},
		{name: "overlapping without stop previous", settings: catalog.Settings{AllowOverlapping: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSupervisor(t, newFakeSpawner())
			a, b := testSound("a"), testSound("b")

			_, err := s.Play(context.Background(), a, tt.settings, false)
			require.NoError(t, err)
			_, err = s.Play(context.Background(), b, tt.settings, false)
			require.NoError(t, err)

			require.Len(t, s.NowPlaying(), 2)
			require.True(t, s.IsPlaying(a.ID))
			require.True(t, s.IsPlaying(b.ID))
		})
	}
}

func TestToggle(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := testSound("bell")

	session, err := s.Toggle(context.Background(), sound, overlapping)
	require.NoError(t, err)
	require.NotNil(t, session)
	require.True(t, s.IsPlaying(sound.ID))

	session, err = s.Toggle(context.Background(), sound, overlapping)
	require.NoError(t, err)
	require.Nil(t, session)
	require.False(t, s.IsPlaying(sound.ID))
	require.Len(t, spawner.spawned(), 1)
}

func TestToggle_AppliesExclusivePolicy(t *testing.T) {
	s := newTestSupervisor(t, newFakeSpawner())
	a, b := testSound("a"), testSound("b")

	_, err := s.Toggle(context.Background(), a, exclusive)
	require.NoError(t, err)
	_, err = s.Toggle(context.Background(), b, exclusive)
	require.NoError(t, err)

	require.False(t, s.IsPlaying(a.ID))
	require.True(t, s.IsPlaying(b.ID))
}

func TestPlay_NoSource(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := catalog.Sound{ID: uuid.New(), Name: "empty", SourceType: catalog.SourceDirectURL}

	_, err := s.Play(context.Background(), sound, overlapping, false)

	var noSource *NoSourceError
	require.True(t, errors.As(err, &noSource))
	require.Equal(t, sound.ID, noSource.SoundID)
	require.Empty(t, spawner.spawned())
}

func TestPlay_NoSourceDoesNotStopOthers(t *testing.T) {
	s := newTestSupervisor(t, newFakeSpawner())
	a := testSound("a")

	_, err := s.Play(context.Background(), a, exclusive, false)
	require.NoError(t, err)

	_, err = s.Play(context.Background(), catalog.Sound{ID: uuid.New(), SourceType: catalog.SourceLocalFile}, exclusive, false)
	require.Error(t, err)
	require.True(t, s.IsPlaying(a.ID))
}

func TestPlay_SpawnError(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.err = errors.New(`exec: "mpv": executable file not found in $PATH`)
	s := newTestSupervisor(t, spawner)
	sound := testSound("missing")

	_, err := s.Play(context.Background(), sound, overlapping, false)

	var spawnErr *SpawnFailedError
	require.True(t, errors.As(err, &spawnErr))
	require.Equal(t, DefaultPlayerPath, spawnErr.Executable)
	require.ErrorIs(t, err, spawner.err)
	require.False(t, s.IsPlaying(sound.ID))
	require.Zero(t, tableLen(s))
}

func TestPlay_ExitDuringStartupIsSpawnFailure(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.configure = func(p *fakeProcess) {
		p.diagnostics = "Failed to recognize file format."
		p.exit(errors.New("exit status 2"))
	}
	listener := &recordingListener{}
	s := newTestSupervisor(t, spawner, WithListener(listener))
	sound := testSound("corrupt")

	_, err := s.Play(context.Background(), sound, overlapping, false)

	var spawnErr *SpawnFailedError
	require.True(t, errors.As(err, &spawnErr))
	require.Equal(t, "Failed to recognize file format.", spawnErr.Diagnostics)
	require.Contains(t, err.Error(), "exit status 2")
	require.False(t, s.IsPlaying(sound.ID))
	require.Zero(t, tableLen(s))

	started, ended := listener.counts()
	require.Zero(t, started)
	require.Zero(t, ended)
}

func TestPlay_CleanExitDuringStartup(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.configure = func(p *fakeProcess) { p.exit(nil) }
	listener := &recordingListener{}
	s := newTestSupervisor(t, spawner, WithListener(listener))
	sound := testSound("blip")

	session, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)
	require.Equal(t, sound.ID, session.SoundID())
	require.False(t, s.IsPlaying(sound.ID))

	started, ended := listener.counts()
	require.Equal(t, 1, started)
	require.Equal(t, 1, ended)
}

func TestPlay_CancelledDuringStartup(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner, WithStartupGrace(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := s.Play(ctx, testSound("slow"), overlapping, false)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, spawner.last().Alive())
	require.Zero(t, tableLen(s))
}

func TestPlay_ResolvesDeviceAndVolume(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner, WithDefaults(CommandDefaults{
		OutputDevice: "pulse/fallback",
		Volume:       catalog.IntPtr(50),
	}))

	settings := catalog.Settings{
		AllowOverlapping:    true,
		DefaultOutputDevice: "pulse/settings",
		DefaultVolume:       catalog.IntPtr(70),
		PlayerPath:          "/usr/local/bin/mpv",
	}

	withOverrides := testSound("override")
	withOverrides.OutputDevice = "pulse/sound"
	withOverrides.Volume = catalog.IntPtr(0)

	_, err := s.Play(context.Background(), withOverrides, settings, false)
	require.NoError(t, err)
	p := spawner.last()
	require.Equal(t, "/usr/local/bin/mpv", p.path)
	require.Contains(t, p.args, "--audio-device=pulse/sound")
	require.Contains(t, p.args, "--volume=0")

	_, err = s.Play(context.Background(), testSound("settings"), settings, false)
	require.NoError(t, err)
	p = spawner.last()
	require.Contains(t, p.args, "--audio-device=pulse/settings")
	require.Contains(t, p.args, "--volume=70")

	_, err = s.Play(context.Background(), testSound("fallback"), overlapping, false)
	require.NoError(t, err)
	p = spawner.last()
	require.Equal(t, DefaultPlayerPath, p.path)
	require.Contains(t, p.args, "--audio-device=pulse/fallback")
	require.Contains(t, p.args, "--volume=50")
}

func TestReaper_RemovesFinishedSession(t *testing.T) {
	spawner := newFakeSpawner()
	listener := &recordingListener{}
	s := newTestSupervisor(t, spawner, WithListener(listener))
	sound := testSound("short")

	_, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)

	spawner.last().exit(nil)

	require.Eventually(t, func() bool { return tableLen(s) == 0 }, time.Second, 5*time.Millisecond)
	require.False(t, s.IsPlaying(sound.ID))

	started, ended := listener.counts()
	require.Equal(t, 1, started)
	require.Equal(t, 1, ended)
}

func TestReaper_KeepsNewerSession(t *testing.T) {
	spawner := newFakeSpawner()
	listener := &recordingListener{}
	s := newTestSupervisor(t, spawner, WithListener(listener))
	sound := testSound("loop")

	_, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)

	second, err := s.Restart(context.Background(), sound, overlapping)
	require.NoError(t, err)

	// give the first session's reaper a chance to run
	time.Sleep(20 * time.Millisecond)

	require.True(t, s.IsPlaying(sound.ID))
	playing := s.NowPlaying()
	require.Len(t, playing, 1)
	require.Equal(t, second.ProcessID(), playing[0].ProcessID)

	started, ended := listener.counts()
	require.Equal(t, 2, started)
	require.Equal(t, 1, ended)
}

func TestNowPlaying_PurgesDeadSessions(t *testing.T) {
	spawner := newFakeSpawner()
	listener := &recordingListener{}
	s := newTestSupervisor(t, spawner, WithListener(listener))
	a, b := testSound("a"), testSound("b")

	_, err := s.Play(context.Background(), a, overlapping, false)
	require.NoError(t, err)
	_, err = s.Play(context.Background(), b, overlapping, false)
	require.NoError(t, err)

	spawner.spawned()[0].exit(nil)

	playing := s.NowPlaying()
	require.Len(t, playing, 1)
	require.Equal(t, b.ID, playing[0].SoundID)

	require.Eventually(t, func() bool {
		_, ended := listener.counts()
		return ended == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClose_RefusesPlay(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := testSound("last-call")

	_, err := s.Play(context.Background(), sound, overlapping, false)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.Zero(t, spawner.aliveTotal())

	_, err = s.Play(context.Background(), sound, overlapping, false)
	require.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentPlay_SingleSession(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := testSound("race")

	const callers = 32
	sessions := make([]*Session, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := s.Play(context.Background(), sound, overlapping, false)
			if err == nil {
				sessions[i] = session
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, spawner.spawned(), 1)
	for _, session := range sessions {
		require.Same(t, sessions[0], session)
	}
	require.Equal(t, 1, tableLen(s))
}

func TestConcurrentMixedOperations(t *testing.T) {
	spawner := newFakeSpawner()
	s := newTestSupervisor(t, spawner)
	sound := testSound("chaos")

	var wg sync.WaitGroup
	for i := 0; i < 48; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			switch i % 4 {
			case 0:
				_, _ = s.Play(ctx, sound, overlapping, false)
			case 1:
				_, _ = s.Restart(ctx, sound, overlapping)
			case 2:
				_, _ = s.Stop(sound.ID)
			case 3:
				_, _ = s.Toggle(ctx, sound, overlapping)
			}
			assert.LessOrEqual(t, spawner.aliveFor(sound.LocalPath), 1)
		}(i)
	}
	wg.Wait()

	require.LessOrEqual(t, spawner.aliveFor(sound.LocalPath), 1)
	require.LessOrEqual(t, tableLen(s), 1)
	require.Equal(t, tableLen(s), spawner.aliveFor(sound.LocalPath))
}

func TestSupervisor_OperationSequenceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		spawner := newFakeSpawner()
		s := NewSupervisor(zapNop(), spawner,
			WithStopTimeout(10*time.Millisecond),
			WithStartupGrace(0))
		defer func() { _ = s.Close() }()

		sounds := []catalog.Sound{testSound("p0"), testSound("p1"), testSound("p2")}
		settings := catalog.Settings{
			StopPreviousOnPlay: rapid.Bool().Draw(rt, "stopPrevious"),
			AllowOverlapping:   rapid.Bool().Draw(rt, "allowOverlapping"),
		}

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			sound := sounds[rapid.IntRange(0, len(sounds)-1).Draw(rt, fmt.Sprintf("sound-%d", i))]
			ctx := context.Background()

			switch rapid.IntRange(0, 5).Draw(rt, fmt.Sprintf("op-%d", i)) {
			case 0:
				_, _ = s.Play(ctx, sound, settings, false)
			case 1:
				_, _ = s.Restart(ctx, sound, settings)
			case 2:
				_, _ = s.Stop(sound.ID)
			case 3:
				_, _ = s.Toggle(ctx, sound, settings)
			case 4:
				_ = s.StopAll()
			case 5:
				if p := spawner.last(); p != nil {
					p.exit(nil)
				}
			}

			for _, snd := range sounds {
				if n := spawner.aliveFor(snd.LocalPath); n > 1 {
					rt.Fatalf("sound %s has %d live players", snd.Name, n)
				}
			}
			if settings.Exclusive() && spawner.aliveTotal() > 1 {
				rt.Fatalf("exclusive mode has %d live players", spawner.aliveTotal())
			}
			for _, np := range s.NowPlaying() {
				if !s.IsPlaying(np.SoundID) {
					rt.Fatalf("now playing lists %s but it is not playing", np.SoundName)
				}
			}
		}

		if err := s.StopAll(); err != nil {
			rt.Fatalf("stop all: %v", err)
		}
		if len(s.NowPlaying()) != 0 || tableLen(s) != 0 {
			rt.Fatalf("table not empty after stop all")
		}
	})
}

func TestListener_StartPrecedesEndForShortPlayers(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.configure = func(p *fakeProcess) { p.exitOnAlive = true }

	listener := newOrderingListener()
	s := newTestSupervisor(t, spawner, WithStartupGrace(0), WithListener(listener))

	const plays = 100
	for i := 0; i < plays; i++ {
		_, err := s.Play(context.Background(), testSound(fmt.Sprintf("blip-%d", i)), overlapping, false)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		ended, _ := listener.results()
		return ended == plays
	}, 2*time.Second, 5*time.Millisecond)

	_, outOfOrder := listener.results()
	require.Zero(t, outOfOrder, "every SessionEnded must follow its SessionStarted")
}

func TestClose_DoesNotHangOnUnkillablePlayer(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.configure = func(p *fakeProcess) {
		p.ignoreTerminate = true
		p.ignoreKill = true
	}
	s := newTestSupervisor(t, spawner)

	_, err := s.Play(context.Background(), testSound("zombie"), overlapping, false)
	require.NoError(t, err)

	started := time.Now()
	err = s.Close()
	require.ErrorContains(t, err, "still running after kill")
	require.Less(t, time.Since(started), time.Second)

	p := spawner.last()
	require.Equal(t, 1, p.terminateCount())
	require.Equal(t, 1, p.killCount())

	// let the reaper go
	p.exit(nil)
}
