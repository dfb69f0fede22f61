// Package relay moves output and interrupts between the kernel and the REPL
// process while an evaluation runs.
package relay

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"src.swiftkernel.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[relay] ")

// ClearSequence is the terminal escape sequence that clears the screen.
const ClearSequence = "\033[2J"

// Source is the captured output of a process.
type Source interface {
	// ReadStdout returns at most max bytes, or no bytes when the buffer is
	// empty.
	ReadStdout(max int) ([]byte, error)
}

// EventKind is the kind of an Event.
type EventKind int

// Kinds of events.
const (
	EventText EventKind = iota
	EventClear
)

// Event is a piece of output.
type Event struct {
	Kind EventKind
	// Only set for EventText.
	Text string
}

// Sink receives events. It is called from the drain goroutine only.
type Sink func(Event)

// DrainConfig configures a Drain.
type DrainConfig struct {
	Interval time.Duration
	ReadSize int
}

// DefaultDrainConfig is used for zero fields of a DrainConfig.
var DefaultDrainConfig = DrainConfig{Interval: 100 * time.Millisecond, ReadSize: 1000}

// Drain polls a Source and sends what it reads to a Sink.
type Drain struct {
	src  Source
	cfg  DrainConfig
	sink Sink

	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	hadOutput atomic.Bool

	// Owned by the drain goroutine.
	tail  []byte
	carry string
}

// StartDrain starts polling src. The caller must call Stop once the
// evaluation has returned.
func StartDrain(src Source, cfg DrainConfig, sink Sink) *Drain {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultDrainConfig.Interval
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = DefaultDrainConfig.ReadSize
	}
	d := &Drain{src: src, cfg: cfg, sink: sink,
		stop: make(chan struct{}), done: make(chan struct{})}
	go d.run()
	return d
}

func (d *Drain) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.drain(false)
		case <-d.stop:
			d.drain(true)
			return
		}
	}
}

// Stop stops polling after one final drain, and waits until the final drain
// has been delivered. It is safe to call Stop more than once.
func (d *Drain) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
}

// HadOutput reports whether any event has been sent to the sink.
func (d *Drain) HadOutput() bool { return d.hadOutput.Load() }

func (d *Drain) drain(final bool) {
	buf := d.tail
	d.tail = nil
	for {
		chunk, err := d.src.ReadStdout(d.cfg.ReadSize)
		if err != nil {
			logger.Warnw("cannot read stdout", "err", err)
			break
		}
		if len(chunk) == 0 {
			break
		}
		buf = append(buf, chunk...)
	}
	if !final {
		buf, d.tail = splitIncomplete(buf)
	}
	d.send(d.carry+strings.ToValidUTF8(string(buf), "\uFFFD"), final)
}

// Splits off an incomplete UTF-8 sequence at the end of b.
func splitIncomplete(b []byte) (complete, tail []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i], append([]byte(nil), b[i:]...)
			}
			break
		}
	}
	return b, nil
}

func (d *Drain) send(text string, final bool) {
	d.carry = ""
	for {
		i := strings.Index(text, ClearSequence)
		if i == -1 {
			break
		}
		d.emitText(text[:i])
		d.emit(Event{Kind: EventClear})
		text = text[i+len(ClearSequence):]
	}
	if !final {
		if n := partialClearSuffix(text); n > 0 {
			d.carry = text[len(text)-n:]
			text = text[:len(text)-n]
		}
	}
	d.emitText(text)
}

// Returns the length of the longest proper prefix of ClearSequence that s
// ends with.
func partialClearSuffix(s string) int {
	for n := len(ClearSequence) - 1; n > 0; n-- {
		if strings.HasSuffix(s, ClearSequence[:n]) {
			return n
		}
	}
	return 0
}

func (d *Drain) emitText(s string) {
	if s != "" {
		d.emit(Event{Kind: EventText, Text: s})
	}
}

func (d *Drain) emit(e Event) {
	d.hadOutput.Store(true)
	d.sink(e)
}
