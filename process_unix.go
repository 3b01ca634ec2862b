//go:build unix

package main

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(pid int) {
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		Logger.Debugf("failed to kill process group %v: %v", pid, err)
	}
}
