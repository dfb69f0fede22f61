package relay

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"src.swiftkernel.dev/pkg/repl"
)

// Target is what interrupts are delivered to.
type Target interface {
	Interrupt() error
}

// Reply is the result of delivering an interrupt.
type Reply struct {
	OK  bool
	Err error
}

type request struct {
	reply chan Reply
}

// Relay delivers interrupts from OS signals and explicit requests to the
// current target. Both sources go through the same path, so they cannot race
// with each other.
type Relay struct {
	mu     sync.Mutex
	target Target
	count  int

	sigCh    chan os.Signal
	requests chan request
	stopOnce sync.Once
	stop     chan struct{}
	stopped  chan struct{}
}

// Start starts a Relay. When signals are given, receiving any of them counts
// as an interrupt.
func Start(signals ...os.Signal) *Relay {
	r := &Relay{
		requests: make(chan request),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if len(signals) > 0 {
		r.sigCh = make(chan os.Signal, 1)
		signal.Notify(r.sigCh, signals...)
	}
	go r.run()
	return r
}

func (r *Relay) run() {
	defer close(r.stopped)
	for {
		select {
		case sig := <-r.sigCh:
			if err := r.deliver("signal " + sig.String()); err != nil {
				logger.Warnw("cannot relay signal", "signal", sig, "err", err)
			}
		case req := <-r.requests:
			err := r.deliver("request")
			req.reply <- Reply{OK: err == nil, Err: err}
		case <-r.stop:
			return
		}
	}
}

// SetTarget sets the target of future interrupts. A nil target turns
// interrupts into no-ops.
func (r *Relay) SetTarget(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = t
}

// Request delivers an interrupt and waits for the result.
func (r *Relay) Request(ctx context.Context) Reply {
	req := request{make(chan Reply, 1)}
	select {
	case r.requests <- req:
	case <-r.stopped:
		return Reply{Err: repl.ErrNoProcess}
	case <-ctx.Done():
		return Reply{Err: ctx.Err()}
	}
	select {
	case reply := <-req.reply:
		return reply
	case <-ctx.Done():
		return Reply{Err: ctx.Err()}
	}
}

// Count returns the number of interrupts received so far.
func (r *Relay) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Relay) deliver(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	logger.Infow("interrupt received", "source", source, "count", r.count)
	if r.target == nil {
		logger.Warnw("no process to interrupt")
		return repl.ErrNoProcess
	}
	if err := r.target.Interrupt(); err != nil {
		return err
	}
	logger.Infow("sent async interrupt")
	return nil
}

// Stop stops the relay and waits for its goroutine to exit.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		if r.sigCh != nil {
			signal.Stop(r.sigCh)
		}
		close(r.stop)
	})
	<-r.stopped
}
