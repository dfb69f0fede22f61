// Package shell is the interactive console of the Swift kernel.
package shell

import (
	"context"
	"os"

	"src.swiftkernel.dev/pkg/config"
	"src.swiftkernel.dev/pkg/kernel"
	"src.swiftkernel.dev/pkg/logutil"
	"src.swiftkernel.dev/pkg/prog"
)

var logger = logutil.GetLogger("[shell] ")

// Program is the console subprogram. It runs when no other subprogram does.
type Program struct {
	// If not nil, called to adjust the options of the kernel before it is
	// created.
	Customize func(*kernel.Options)
}

// Run runs the console until stdin is exhausted.
func (p *Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if len(args) > 0 {
		return prog.BadUsage("arguments are not supported")
	}
	cfg, err := config.Load(f.Config)
	if err != nil {
		return err
	}
	// SIGINT interrupts the running evaluation instead of killing the
	// console.
	opts := kernel.Options{Config: cfg, InterruptSignals: []os.Signal{os.Interrupt}}
	if p.Customize != nil {
		p.Customize(&opts)
	}
	k, err := kernel.New(opts)
	if err != nil {
		return err
	}
	logger.Infow("console started", "session", k.SessionID())
	interactErr := Interact(context.Background(), fds, k)
	if err := k.Shutdown(false); err != nil {
		logger.Warnw("error shutting down kernel", "err", err)
	}
	return interactErr
}
