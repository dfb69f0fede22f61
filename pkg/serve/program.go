package serve

import (
	"context"
	"os"

	"src.swiftkernel.dev/pkg/config"
	"src.swiftkernel.dev/pkg/kernel"
	"src.swiftkernel.dev/pkg/prog"
)

// Program is the JSON-RPC server subprogram, run with --serve.
type Program struct {
	// If not nil, called to adjust the options of the kernel before it is
	// created.
	Customize func(*kernel.Options)
}

// Run serves requests on stdin and stdout until stdin is closed or the kernel
// is shut down.
func (p *Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if !f.Serve {
		return prog.ErrNotSuitable
	}
	if len(args) > 0 {
		return prog.BadUsage("arguments are not allowed with --serve")
	}
	cfg, err := config.Load(f.Config)
	if err != nil {
		return err
	}
	opts := kernel.Options{Config: cfg}
	if p.Customize != nil {
		p.Customize(&opts)
	}
	k, err := kernel.New(opts)
	if err != nil {
		return err
	}
	logger.Infow("serving", "session", k.SessionID(), "scratch", k.ScratchDir())
	return Serve(context.Background(), k, transport{fds[0], fds[1]})
}

type transport struct{ in, out *os.File }

func (c transport) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c transport) Write(p []byte) (int, error) { return c.out.Write(p) }

func (c transport) Close() error {
	if err := c.in.Close(); err != nil {
		c.out.Close()
		return err
	}
	return c.out.Close()
}
