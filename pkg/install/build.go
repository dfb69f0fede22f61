package install

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
	"src.swiftkernel.dev/pkg/sys"
)

// Size of the build's terminal. Wide enough that progress lines are not
// wrapped.
var buildWinsize = pty.Winsize{Rows: 50, Cols: 250}

// How long to wait for the rest of the output after the build exits.
const outputGrace = 2 * time.Second

// Runs swift-build under a pseudo-terminal, so that it produces the same
// progress output as in a terminal, and streams its output line by line.
func (p *Pipeline) runBuild(ctx context.Context, dir string, environ, flags []string, progress Progress) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctrl, tty, err := pty.Open()
	if err != nil {
		return &Error{Step: StepBuild, Msg: "Install Error: cannot open a pseudo-terminal.", Err: err}
	}
	defer ctrl.Close()
	if err := pty.Setsize(ctrl, &buildWinsize); err != nil {
		logger.Debugw("cannot set build terminal size", "err", err)
	}

	cmd := exec.Command(p.SwiftBuildPath, flags...)
	cmd.Dir, cmd.Env = dir, environ
	cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty
	sys.SetControllingTerminal(cmd)
	err = cmd.Start()
	tty.Close()
	if err != nil {
		return &Error{Step: StepBuild, Msg: "Install Error: cannot start swift-build.", Err: err}
	}
	logger.Infow("started build", "path", p.SwiftBuildPath, "pid", cmd.Process.Pid, "flags", flags)

	streamed := make(chan struct{})
	go func() {
		defer close(streamed)
		scanner := bufio.NewScanner(ctrl)
		for scanner.Scan() {
			progress(strings.TrimSuffix(scanner.Text(), "\r") + "\n")
		}
	}()
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-exited:
	case <-ctx.Done():
		logger.Warnw("killing build", "pid", cmd.Process.Pid, "err", ctx.Err())
		sys.KillGroup(cmd.Process.Pid)
		<-exited
		ctrl.Close()
		<-streamed
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{Step: StepBuild, Msg: fmt.Sprintf(msgTimeout, int(timeout.Seconds()))}
		}
		return &Error{Step: StepBuild, Msg: "Install Error: build canceled.", Err: ctx.Err()}
	}

	select {
	case <-streamed:
	case <-time.After(outputGrace):
		ctrl.Close()
		<-streamed
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &Error{Step: StepBuild, Msg: fmt.Sprintf(msgBuildFailed, exitErr.ExitCode())}
		}
		return &Error{Step: StepBuild, Msg: "Install Error: swift-build failed.", Err: waitErr}
	}
	return nil
}
