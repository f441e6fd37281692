package soundboard

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard/playback"
	"github.com/omriharel/soundboard/pkg/soundboard/store"
	"github.com/omriharel/soundboard/pkg/soundboard/util"
)

const historyWriteTimeout = 2 * time.Second

// HistoryStore is the part of the play history repository the recorder uses.
type HistoryStore interface {
	RecordStart(ctx context.Context, soundID uuid.UUID, soundName string, pid int, startedAt time.Time) error
	RecordEnd(ctx context.Context, soundID uuid.UUID, pid int, endedAt time.Time) error
	Unfinished(ctx context.Context) ([]store.HistoryEntry, error)
	CloseUnfinished(ctx context.Context, at time.Time) (int64, error)
}

// HistoryRecorder writes session lifecycle into the play history.
type HistoryRecorder struct {
	logger  *zap.SugaredLogger
	history HistoryStore
}

var _ playback.Listener = (*HistoryRecorder)(nil)

// NewHistoryRecorder creates a playback listener backed by history.
func NewHistoryRecorder(logger *zap.SugaredLogger, history HistoryStore) *HistoryRecorder {
	return &HistoryRecorder{
		logger:  logger.Named("history"),
		history: history,
	}
}

func (r *HistoryRecorder) SessionStarted(session playback.NowPlaying) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := r.history.RecordStart(ctx, session.SoundID, session.SoundName, session.ProcessID, session.StartedAt); err != nil {
		r.logger.Warnw("Failed to record session start", "session", session, "error", err)
	}
}

func (r *HistoryRecorder) SessionEnded(session playback.NowPlaying) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := r.history.RecordEnd(ctx, session.SoundID, session.ProcessID, time.Now()); err != nil {
		r.logger.Warnw("Failed to record session end", "session", session, "error", err)
	}
}

// processKiller looks up and kills processes by pid.
type processKiller interface {
	Executable(pid int) (executable string, found bool, err error)
	Kill(pid int) error
}

type osProcessKiller struct{}

func (osProcessKiller) Executable(pid int) (string, bool, error) {
	return util.ProcessExecutable(pid)
}

func (osProcessKiller) Kill(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Kill()
}

// sweepOrphans kills players left behind by a previous run that didn't shut
// down cleanly, then closes their history entries. A pid only counts as an
// orphan while it still runs the player executable.
func (r *HistoryRecorder) sweepOrphans(ctx context.Context, playerPath string, killer processKiller) (int, error) {
	entries, err := r.history.Unfinished(ctx)
	if err != nil {
		return 0, err
	}

	if len(entries) == 0 {
		return 0, nil
	}

	r.logger.Debugw("Found unfinished play history", "count", len(entries))

	killed := 0
	for _, entry := range entries {
		executable, found, err := killer.Executable(entry.PID)
		if err != nil {
			r.logger.Warnw("Failed to inspect leftover player", "pid", entry.PID, "error", err)
			continue
		}

		if !found || !util.ExecutableMatches(executable, playerPath) {
			continue
		}

		if err := killer.Kill(entry.PID); err != nil {
			r.logger.Warnw("Failed to kill leftover player", "pid", entry.PID, "sound", entry.SoundName, "error", err)
			continue
		}

		r.logger.Infow("Killed leftover player", "pid", entry.PID, "sound", entry.SoundName)
		killed++
	}

	closed, err := r.history.CloseUnfinished(ctx, time.Now())
	if err != nil {
		return killed, err
	}

	r.logger.Debugw("Closed unfinished play history", "count", closed)

	return killed, nil
}
