package logging

import (
	"bytes"
	"io"
)

// PrefixWriter decorates every complete line written through it with a fixed
// prefix. Partial lines stay buffered until their newline arrives, so
// interleaved writers never split a prefixed line.
type PrefixWriter struct {
	prefix []byte
	out    io.Writer
	buf    bytes.Buffer
}

// NewPrefixWriter wraps w so each line is prefixed with prefix.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{prefix: []byte(prefix), out: w}
}

func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.buf.Write(p)
	for {
		data := pw.buf.Bytes()
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			return len(p), nil
		}
		if _, err := pw.out.Write(pw.prefix); err != nil {
			return 0, err
		}
		if _, err := pw.out.Write(data[:nl+1]); err != nil {
			return 0, err
		}
		pw.buf.Next(nl + 1)
	}
}
