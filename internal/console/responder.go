package console

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Responder the fastboot info channel
type Responder interface {
	Info(line string)
}

// Lines collects every info line
type Lines struct {
	mu    sync.Mutex
	lines []string
}

func (l *Lines) Info(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

func (l *Lines) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// WriterResponder prints lines the way the fastboot host tool shows them
type WriterResponder struct {
	W io.Writer
}

func (w WriterResponder) Info(line string) {
	fmt.Fprintf(w.W, "(bootloader) %s\n", line)
}

// Discard drops every line
var Discard Responder = discard{}

type discard struct{}

func (discard) Info(string) {}

// infoWriter turns writes into one Info call per line
type infoWriter struct {
	out Responder
	buf bytes.Buffer
}

func (w *infoWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.out.Info(line[:len(line)-1])
	}
	return len(p), nil
}

func (w *infoWriter) Flush() {
	if w.buf.Len() > 0 {
		w.out.Info(w.buf.String())
		w.buf.Reset()
	}
}
