//go:build unix

package sys

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// SetNewProcessGroup arranges for cmd to start in its own process group, so
// that KillGroup can reach its descendants.
func SetNewProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// SetControllingTerminal arranges for cmd to start in a new session whose
// controlling terminal is the child's stdin, which must be a terminal. The
// child leads a new process group.
func SetControllingTerminal(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
	cmd.SysProcAttr.Setctty = true
}

// KillGroup sends SIGKILL to the process group led by pid.
func KillGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGKILL)
}

// TerminateGroup sends SIGTERM to the process group led by pid.
func TerminateGroup(pid int) error {
	return unix.Kill(-pid, unix.SIGTERM)
}

// SignalName returns the conventional name of a signal number, such as
// "SIGINT".
func SignalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return sig.String()
}
