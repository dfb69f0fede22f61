package lspclient

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

var readFrameTests = []struct {
	name    string
	input   string
	want    string
	wantErr bool
}{
	{name: "plain", input: "Content-Length: 2\r\n\r\n{}", want: "{}"},
	{name: "extra header",
		input: "Content-Length: 4\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\nnull",
		want:  "null"},
	{name: "missing length", input: "Content-Type: x\r\n\r\n{}", wantErr: true},
	{name: "bad length", input: "Content-Length: x\r\n\r\n{}", wantErr: true},
	{name: "short body", input: "Content-Length: 10\r\n\r\n{}", wantErr: true},
}

func TestReadFrame(t *testing.T) {
	for _, tc := range readFrameTests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readFrame(bufio.NewReader(strings.NewReader(tc.input)))
			if tc.wantErr {
				if err == nil {
					t.Errorf("readFrame -> nil error, want error")
				}
				return
			}
			if err != nil || string(got) != tc.want {
				t.Errorf("readFrame -> (%q, %v), want (%q, nil)", got, err, tc.want)
			}
		})
	}
}

func TestReadFrame_EOF(t *testing.T) {
	_, err := readFrame(bufio.NewReader(strings.NewReader("")))
	if err != io.EOF {
		t.Errorf("readFrame on empty input -> %v, want io.EOF", err)
	}
}

func TestAppendFrame_RoundTrip(t *testing.T) {
	frame := appendFrame(nil, []byte(`{"a":"é"}`))
	r := bufio.NewReader(strings.NewReader(string(frame) + string(frame)))
	for i := 0; i < 2; i++ {
		got, err := readFrame(r)
		if err != nil || string(got) != `{"a":"é"}` {
			t.Errorf("readFrame #%d -> (%q, %v)", i, got, err)
		}
	}
}
