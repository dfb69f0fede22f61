package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu    sync.Mutex
	buf   []byte
	reads []int
	err   error
}

func (s *fakeSource) write(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, data...)
}

func (s *fakeSource) ReadStdout(max int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	n := min(max, len(s.buf))
	s.reads = append(s.reads, n)
	out := append([]byte(nil), s.buf[:n]...)
	s.buf = s.buf[n:]
	return out, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) sink(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) get() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func text(s string) Event { return Event{Kind: EventText, Text: s} }

var clearEvent = Event{Kind: EventClear}

var drainTests = []struct {
	name  string
	polls []string
	want  []Event
}{
	{"plain", []string{"hello\n"}, []Event{text("hello\n")}},
	{"empty", []string{"", ""}, nil},
	{"clear in the middle", []string{"a\033[2Jb"}, []Event{text("a"), clearEvent, text("b")}},
	{"clear only", []string{"\033[2J\033[2J"}, []Event{clearEvent, clearEvent}},
	{"clear split across polls", []string{"a\033[", "2Jb"}, []Event{text("a"), clearEvent, text("b")}},
	{"escape prefix that is not a clear", []string{"a\033[", "0m"}, []Event{text("a"), text("\033[0m")}},
	{"rune split across polls", []string{"x\xe2\x82", "\xac"}, []Event{text("x"), text("€")}},
	{"invalid bytes", []string{"a\xffb"}, []Event{text("a\uFFFDb")}},
	{"incomplete rune at the end", []string{"a\xe2\x82"}, []Event{text("a"), text("\uFFFD")}},
	{"escape prefix at the end", []string{"a\033["}, []Event{text("a"), text("\033[")}},
}

func TestDrain(t *testing.T) {
	for _, tc := range drainTests {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{}
			var rec recorder
			d := &Drain{src: src, cfg: DrainConfig{ReadSize: 3}, sink: rec.sink}
			for _, p := range tc.polls {
				src.write(p)
				d.drain(false)
			}
			d.drain(true)
			if diff := cmp.Diff(tc.want, rec.get()); diff != "" {
				t.Errorf("events (-want +got):\n%s", diff)
			}
			if d.HadOutput() != (len(tc.want) > 0) {
				t.Errorf("HadOutput() = %v", d.HadOutput())
			}
		})
	}
}

func TestDrain_ReadsUntilEmpty(t *testing.T) {
	src := &fakeSource{}
	src.write("0123456789")
	var rec recorder
	d := &Drain{src: src, cfg: DrainConfig{ReadSize: 4}, sink: rec.sink}

	d.drain(false)

	if diff := cmp.Diff([]int{4, 4, 2, 0}, src.reads); diff != "" {
		t.Errorf("read sizes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Event{text("0123456789")}, rec.get()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestDrain_ReadError(t *testing.T) {
	src := &fakeSource{err: errors.New("gone")}
	var rec recorder
	d := &Drain{src: src, cfg: DrainConfig{ReadSize: 4}, sink: rec.sink}

	d.drain(true)

	if len(rec.get()) != 0 || d.HadOutput() {
		t.Errorf("got events %v after read error", rec.get())
	}
}

func TestStartDrain_PollsAndDrainsOnStop(t *testing.T) {
	src := &fakeSource{}
	var rec recorder
	d := StartDrain(src, DrainConfig{Interval: time.Millisecond}, rec.sink)

	src.write("first")
	deadline := time.Now().Add(5 * time.Second)
	for len(rec.get()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	src.write("last")
	d.Stop()
	d.Stop()

	got := ""
	for _, e := range rec.get() {
		got += e.Text
	}
	if got != "firstlast" {
		t.Errorf("got text %q, want %q", got, "firstlast")
	}
}

func TestStartDrain_FinalDrainWithLongInterval(t *testing.T) {
	src := &fakeSource{}
	src.write("out")
	var rec recorder
	d := StartDrain(src, DrainConfig{Interval: time.Hour}, rec.sink)

	d.Stop()

	if diff := cmp.Diff([]Event{text("out")}, rec.get()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if !d.HadOutput() {
		t.Errorf("HadOutput() = false")
	}
}

func TestStartDrain_DefaultConfig(t *testing.T) {
	d := StartDrain(&fakeSource{}, DrainConfig{}, func(Event) {})
	defer d.Stop()
	if d.cfg != DefaultDrainConfig {
		t.Errorf("cfg = %+v, want %+v", d.cfg, DefaultDrainConfig)
	}
}
