// Package utils holds small helpers shared by the davsync packages and CLI.
package utils

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

// maxPartialLine bounds how much of an unterminated line is buffered before it is flushed anyway.
const maxPartialLine = 1024 * 1024

// LogInterceptor is an io.Writer that prefixes each complete line with a
// sequence number and a timestamp before writing it to target.
type LogInterceptor struct {
	mu     sync.Mutex
	target io.Writer
	seq    uint64
	buf    bytes.Buffer
	now    func() time.Time
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target, now: time.Now}
}

func (i *LogInterceptor) writeLine(line []byte) error {
	i.seq++
	prefix := slog.Uint64("line", i.seq).String() + " " +
		slog.String("time", i.now().Format(time.RFC3339)).String() + " "

	out := make([]byte, 0, len(prefix)+len(line)+1)
	out = append(out, prefix...)
	out = append(out, line...)
	out = append(out, '\n')
	_, err := i.target.Write(out)
	return err
}

// Write buffers p and emits every complete line. The returned count is len(p)
// on success so callers like slog handlers do not see short writes.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.buf.Write(p)
	for {
		data := i.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(data[:idx], []byte{'\r'})
		if err := i.writeLine(line); err != nil {
			return 0, err
		}
		i.buf.Next(idx + 1)
	}

	if i.buf.Len() > maxPartialLine {
		if err := i.writeLine(i.buf.Bytes()); err != nil {
			return 0, err
		}
		i.buf.Reset()
	}
	return len(p), nil
}

// Close flushes a trailing unterminated line.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.buf.Len() == 0 {
		return nil
	}
	err := i.writeLine(i.buf.Bytes())
	i.buf.Reset()
	return err
}
