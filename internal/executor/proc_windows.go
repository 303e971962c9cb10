//go:build windows

package executor

import (
	"os"
	"os/exec"
)

func setProcessGroup(_ *exec.Cmd) {}

func killGroup(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}
