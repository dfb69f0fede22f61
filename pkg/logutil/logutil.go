// Package logutil provides logging utilities.
//
// All loggers returned by GetLogger share one process-wide output and level,
// so packages can create their loggers at initialization time and still
// follow later calls to SetOutput and SetLevel.
package logutil

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type output struct {
	core   zapcore.Core
	closer io.Closer
}

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	current atomic.Pointer[output]
)

func init() {
	current.Store(&output{core: zapcore.NewNopCore()})
}

// GetLogger gets a logger with a prefix such as "[repl] ". The prefix becomes
// the name of the logger.
func GetLogger(prefix string) *zap.SugaredLogger {
	name := strings.Trim(prefix, "[] ")
	return zap.New(dynamicCore{}).Named(name).Sugar()
}

// SetOutput redirects the output of all loggers obtained with GetLogger to the
// given io.Writer. If the writer is a terminal, a human-readable encoding is
// used; otherwise, each entry is written as one JSON object per line.
func SetOutput(w io.Writer) {
	setOutput(w, nil)
}

// SetOutputFile redirects the output of all loggers obtained with GetLogger to
// the named file, which is created if necessary and appended to otherwise. If
// the filename is empty, logs are discarded.
func SetOutputFile(fname string) error {
	if fname == "" {
		setOutput(io.Discard, nil)
		return nil
	}
	file, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	setOutput(file, file)
	return nil
}

// SetLevel sets the minimal level of entries that are written. It accepts the
// level names understood by zap ("debug", "info", "warn", "error").
func SetLevel(name string) error {
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

func setOutput(w io.Writer, closer io.Closer) {
	var enc zapcore.Encoder
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	old := current.Swap(&output{core, closer})
	if old.closer != nil {
		old.core.Sync()
		old.closer.Close()
	}
}

// dynamicCore forwards every entry to the core installed by the most recent
// call to SetOutput.
type dynamicCore struct {
	fields []zapcore.Field
}

func (c dynamicCore) Enabled(l zapcore.Level) bool { return level.Enabled(l) }

func (c dynamicCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	return dynamicCore{append(merged, fields...)}
}

func (c dynamicCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c dynamicCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	core := current.Load().core
	if len(c.fields) > 0 {
		core = core.With(c.fields)
	}
	return core.Write(e, fields)
}

func (c dynamicCore) Sync() error { return current.Load().core.Sync() }

// Printf adapts l to interfaces that log with a single Printf method, such as
// the logger option of jsonrpc2 connections. Messages are logged at debug
// level.
func Printf(l *zap.SugaredLogger) PrintfLogger { return PrintfLogger{l} }

// PrintfLogger is returned by Printf.
type PrintfLogger struct{ l *zap.SugaredLogger }

// Printf logs a formatted message at debug level.
func (p PrintfLogger) Printf(format string, args ...any) {
	p.l.Debugf(strings.TrimSuffix(format, "\n"), args...)
}
