package lspclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/textproto"
	"strconv"

	"github.com/sourcegraph/jsonrpc2"
)

// Header lines are read until a blank line. Only Content-Length is
// interpreted.
func readFrame(r *bufio.Reader) ([]byte, error) {
	header, err := textproto.NewReader(r).ReadMIMEHeader()
	if err != nil {
		return nil, err
	}
	lengthText := header.Get("Content-Length")
	if lengthText == "" {
		return nil, fmt.Errorf("frame without Content-Length")
	}
	length, err := strconv.ParseUint(lengthText, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad Content-Length %q: %w", lengthText, err)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func appendFrame(buf []byte, body []byte) []byte {
	buf = append(buf, "Content-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(body)), 10)
	buf = append(buf, "\r\n\r\n"...)
	return append(buf, body...)
}

// Any message read from the server. Exactly one of the following holds:
//
//   - Method != "" && ID != nil: a request from the server
//   - Method != "" && ID == nil: a notification
//   - Method == "" && ID != nil: a response
type incoming struct {
	ID     *jsonrpc2.ID    `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *jsonrpc2.Error `json:"error"`
}
