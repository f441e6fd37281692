// Package icon embeds the tray and notification artwork.
package icon

import (
	_ "embed"
)

var (
	// Logo is the tray icon on macOS and Linux.
	//go:embed logo.png
	Logo []byte

	// LogoICO is the tray and notification icon on Windows.
	//go:embed logo.ico
	LogoICO []byte

	// StopAll is the "Stop all sounds" menu icon.
	//go:embed stop.png
	StopAll []byte

	// EditConfig is the "Edit configuration" menu icon.
	//go:embed edit.png
	EditConfig []byte

	// ReloadShortcuts is the "Reload shortcuts" menu icon.
	//go:embed refresh.png
	ReloadShortcuts []byte
)
