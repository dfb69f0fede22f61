package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	"src.swiftkernel.dev/pkg/kernel"
	"src.swiftkernel.dev/pkg/sys"
)

// Terminator is a line that ends a submission.
const Terminator = ";;"

// Kernel is the part of *kernel.Kernel used by the console.
type Kernel interface {
	Execute(ctx context.Context, code string, sink kernel.Sink) *kernel.Outcome
}

// Interact reads submissions from fds[0] and executes them. A submission ends
// with a line consisting of Terminator, or at the end of input. Output of the
// kernel goes to fds[1] and fds[2]. Prompts are shown when fds[0] is a
// terminal.
func Interact(ctx context.Context, fds [3]*os.File, k Kernel) error {
	c := &console{
		k:      k,
		out:    fds[1],
		err:    fds[2],
		prompt: sys.IsFileATTY(fds[0]),
		clear:  sys.IsFileATTY(fds[1]),
		next:   1,
	}
	submissions := make(chan string)
	// Prompts are written by the reader, after the previous submission is
	// done, so that they don't interleave with output.
	ready := make(chan struct{}, 1)
	ready <- struct{}{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(submissions)
		return c.read(ctx, fds[0], submissions, ready)
	})
	g.Go(func() error {
		for code := range submissions {
			c.execute(ctx, code)
			select {
			case ready <- struct{}{}:
			default:
			}
		}
		return nil
	})
	return g.Wait()
}

type console struct {
	k        Kernel
	out, err io.Writer
	// Whether to show prompts.
	prompt bool
	// Whether to clear the terminal when the kernel asks to.
	clear bool
	// The execution count of the next submission. Only shown in prompts.
	next int
}

func (c *console) read(ctx context.Context, in io.Reader, submissions chan<- string, ready <-chan struct{}) error {
	r := bufio.NewReader(in)
	var lines []string
	send := func() error {
		code := strings.Join(lines, "\n")
		lines = nil
		select {
		case submissions <- code:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		if c.prompt {
			if len(lines) == 0 {
				select {
				case <-ready:
				case <-ctx.Done():
					return ctx.Err()
				}
				fmt.Fprintf(c.out, "In [%d]: ", c.next)
			} else {
				fmt.Fprint(c.out, "   ...: ")
			}
		}
		line, err := r.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if line == Terminator {
				if err := send(); err != nil {
					return err
				}
			} else {
				lines = append(lines, line)
			}
		}
		if err == io.EOF {
			if len(lines) > 0 {
				return send()
			}
			return nil
		} else if err != nil {
			return err
		}
	}
}

func (c *console) execute(ctx context.Context, code string) {
	out := c.k.Execute(ctx, code, c.show)
	if out.ExecutionCount > 0 {
		c.next = out.ExecutionCount + 1
	}
	switch {
	case out.Kind == kernel.Value && out.Display != nil:
		fmt.Fprintf(c.out, "Out[%d]: %s\n", out.ExecutionCount, out.Display.Text)
		if out.Display.Table != "" {
			fmt.Fprint(c.out, out.Display.Table)
			if !strings.HasSuffix(out.Display.Table, "\n") {
				fmt.Fprintln(c.out)
			}
		}
	case out.IsError():
		for _, line := range out.Traceback {
			fmt.Fprintln(c.err, line)
		}
		logger.Debugw("submission failed", "kind", out.Kind, "err", out.Err)
	}
}

func (c *console) show(e kernel.Event) {
	switch {
	case e.Clear:
		if c.clear {
			fmt.Fprint(c.out, "\033[H\033[2J")
		}
	case e.Stream == kernel.Stderr:
		fmt.Fprint(c.err, e.Text)
	default:
		fmt.Fprint(c.out, e.Text)
	}
}
