package logutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetLogger_FollowsSetOutput(t *testing.T) {
	logger := GetLogger("[test] ")
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutputFile("") })

	logger.Infow("hello", "n", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output %q is not JSON: %v", buf.String(), err)
	}
	if entry["logger"] != "test" || entry["msg"] != "hello" || entry["n"] != float64(42) {
		t.Errorf("got entry %v", entry)
	}
}

func TestSetLevel(t *testing.T) {
	logger := GetLogger("[test] ")
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutputFile("")
		SetLevel("info")
	})

	logger.Debug("invisible")
	if buf.Len() != 0 {
		t.Errorf("debug entry written at info level: %q", buf.String())
	}
	if err := SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug entry not written at debug level: %q", buf.String())
	}
	if err := SetLevel("bogus"); err == nil {
		t.Errorf("SetLevel(bogus) -> nil error")
	}
}

func TestSetOutputFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "log")
	if err := SetOutputFile(fname); err != nil {
		t.Fatal(err)
	}
	GetLogger("[file] ").Warn("to file")
	SetOutputFile("")

	content, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "to file") {
		t.Errorf("log file content %q", content)
	}
}
