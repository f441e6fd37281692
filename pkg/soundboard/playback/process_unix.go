//go:build !windows

package playback

import (
	"os"
	"syscall"
)

// players get their own process group so a Ctrl+C aimed at the soundboard
// doesn't reach them before we get to stop them ourselves
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
