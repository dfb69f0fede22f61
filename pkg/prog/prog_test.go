package prog_test

import (
	"os"
	"path/filepath"
	"testing"

	"src.swiftkernel.dev/pkg/logutil"
	. "src.swiftkernel.dev/pkg/prog"
	"src.swiftkernel.dev/pkg/prog/progtest"
	"src.swiftkernel.dev/pkg/testutil"
)

var (
	Test       = progtest.Test
	ThatKernel = progtest.ThatKernel
)

func TestCommonFlagHandling(t *testing.T) {
	dir := testutil.InTempDir(t)
	t.Cleanup(func() {
		logutil.SetOutputFile("")
		logutil.SetLevel("info")
	})

	Test(t, testProgram{},
		ThatKernel("--bad-flag").
			ExitsWith(2).
			WritesStderrContaining("unknown flag: --bad-flag\nUsage:"),

		ThatKernel("--help").
			WritesStdoutContaining("Usage: swift-kernel [flags]"),

		ThatKernel("--log", "log.txt").DoesNothing(),
		ThatKernel("--log-level", "debug").DoesNothing(),
		ThatKernel("--log-level", "loud").
			ExitsWith(2).
			WritesStderrContaining("Usage:"),
	)

	if _, err := os.Stat(filepath.Join(dir, "log.txt")); err != nil {
		t.Errorf("log file does not exist: %v", err)
	}
}

func TestFlagsArePassed(t *testing.T) {
	var got Flags
	p := flagsProgram{&got}
	Test(t, p,
		ThatKernel("--serve", "--config", "c.yaml", "--json").DoesNothing(),
	)
	want := Flags{Serve: true, Config: "c.yaml", JSON: true}
	if got != want {
		t.Errorf("got flags %+v, want %+v", got, want)
	}
}

func TestComposite(t *testing.T) {
	skip := testProgram{notSuitable: true}
	tests := []struct {
		name string
		p    Program
		c    progtest.Case
	}{
		{"single unsuitable", skip,
			ThatKernel().ExitsWith(2).WritesStderr("internal error: no suitable subprogram\n")},
		{"all unsuitable", Composite(skip, skip),
			ThatKernel().ExitsWith(2).WritesStderr("internal error: no suitable subprogram\n")},
		{"skips unsuitable", Composite(skip, testProgram{writeOut: "serve"}),
			ThatKernel().WritesStdout("serve")},
		{"first suitable wins",
			Composite(testProgram{writeOut: "buildinfo"}, testProgram{writeOut: "shell"}),
			ThatKernel().WritesStdout("buildinfo")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) { Test(t, test.p, test.c) })
	}
}

func TestSpecialErrors(t *testing.T) {
	Test(t, testProgram{returnErr: BadUsage("no such cell")},
		ThatKernel().ExitsWith(2).WritesStderrContaining("no such cell\nUsage:"))
	Test(t, testProgram{returnErr: Exit(3)}, ThatKernel().ExitsWith(3))
	Test(t, testProgram{returnErr: Exit(0)}, ThatKernel().ExitsWith(0))
}

type testProgram struct {
	notSuitable bool
	writeOut    string
	returnErr   error
}

func (p testProgram) Run(fds [3]*os.File, _ *Flags, args []string) error {
	if p.notSuitable {
		return ErrNotSuitable
	}
	fds[1].WriteString(p.writeOut)
	return p.returnErr
}

type flagsProgram struct{ got *Flags }

func (p flagsProgram) Run(_ [3]*os.File, f *Flags, _ []string) error {
	*p.got = *f
	return nil
}
