package playback

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// windows has no SIGTERM for console-less children
func terminate(p *os.Process) error {
	return p.Kill()
}
