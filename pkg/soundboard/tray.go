package soundboard

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/omriharel/soundboard/pkg/soundboard/icon"
	"github.com/omriharel/soundboard/pkg/soundboard/util"
)

const (
	stopAllTitle           = "Stop all sounds"
	stopAllTooltip         = "Stop every sound that is currently playing"
	reloadShortcutsTitle   = "Reload shortcuts"
	reloadShortcutsTooltip = "Re-read hotkey shortcuts from the database"
	editConfigTitle        = "Edit configuration"
	editConfigTooltip      = "Open config file for editing"
	quitTitle              = "Quit"
	quitTooltip            = "Stop all sounds and quit"

	nowPlayingRefreshInterval = time.Second
)

func (sb *Soundboard) initializeTray(onDone func()) {
	logger := sb.logger.Named("tray")

	onReady := func() {
		logger.Debug("Tray instance ready")

		if util.Windows() {
			systray.SetIcon(icon.LogoICO)
		} else {
			systray.SetTemplateIcon(icon.Logo, icon.Logo)
		}
		systray.SetTitle("soundboard")
		systray.SetTooltip("soundboard")

		nowPlaying := systray.AddMenuItem(nowPlayingTitle(0), "")
		nowPlaying.Disable()

		systray.AddSeparator()

		stopAll := systray.AddMenuItem(stopAllTitle, stopAllTooltip)
		stopAll.SetIcon(icon.StopAll)

		reloadShortcuts := systray.AddMenuItem(reloadShortcutsTitle, reloadShortcutsTooltip)
		reloadShortcuts.SetIcon(icon.ReloadShortcuts)

		editConfig := systray.AddMenuItem(editConfigTitle, editConfigTooltip)
		editConfig.SetIcon(icon.EditConfig)

		if sb.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(sb.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()
		quit := systray.AddMenuItem(quitTitle, quitTooltip)

		go sb.handleTrayActions(logger, nowPlaying, stopAll, reloadShortcuts, editConfig, quit)

		// tray has to own the main thread, so the rest of the app runs beside it
		go onDone()
	}

	onExit := func() {
		logger.Debug("Tray exited")
	}

	logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func (sb *Soundboard) handleTrayActions(logger *zap.SugaredLogger, nowPlaying, stopAll, reloadShortcuts, editConfig, quit *systray.MenuItem) {
	defer sb.recoverFromPanic()

	ticker := time.NewTicker(nowPlayingRefreshInterval)
	defer ticker.Stop()

	lastCount := 0

	for {
		select {
		case <-ticker.C:
			if count := len(sb.supervisor.NowPlaying()); count != lastCount {
				nowPlaying.SetTitle(nowPlayingTitle(count))
				lastCount = count
			}

		case <-stopAll.ClickedCh:
			logger.Info("Stop all menu item clicked, stopping every sound")
			if err := sb.supervisor.StopAll(); err != nil {
				logger.Warnw("Failed to stop all sounds", "error", err)
			}

		case <-reloadShortcuts.ClickedCh:
			logger.Info("Reload shortcuts menu item clicked, re-reading shortcuts")
			sb.refreshBindings(true)

		case <-editConfig.ClickedCh:
			logger.Info("Edit config menu item clicked, opening config for editing")

			if err := util.OpenExternal(logger, getEditor(), sb.config.Path()); err != nil {
				logger.Warnw("Failed to open config file for editing", "error", err)
			}

		case <-quit.ClickedCh:
			logger.Info("Quit menu item clicked, stopping")
			sb.signalStop()
			return
		}
	}
}

func nowPlayingTitle(count int) string {
	switch count {
	case 0:
		return "Nothing playing"
	case 1:
		return "Playing 1 sound"
	default:
		return fmt.Sprintf("Playing %d sounds", count)
	}
}

func getEditor() string {
	switch runtime.GOOS {
	case "windows":
		return "notepad.exe"
	case "darwin":
		return "open"
	default:
		return "xdg-open"
	}
}

func (sb *Soundboard) stopTray() {
	sb.logger.Debug("Quitting tray")
	systray.Quit()
}
