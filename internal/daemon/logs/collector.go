package logs

import (
	"io"
	"sync"
	"time"
)

// LogCollector receives lines from child process pipes, tags them with
// their source and stores them in a ring buffer. An optional sink receives
// every line in console form ("[stdout] ..."), typically a log file.
type LogCollector struct {
	buffer *RingBuffer
	parser *LogParser

	sinkMu sync.Mutex
	sink   io.Writer
}

// NewLogCollector creates a collector storing into buffer.
func NewLogCollector(buffer *RingBuffer) *LogCollector {
	return &LogCollector{
		buffer: buffer,
		parser: NewLogParser(),
	}
}

// SetSink sets the writer every collected line is copied to.
func (c *LogCollector) SetSink(w io.Writer) {
	c.sinkMu.Lock()
	c.sink = w
	c.sinkMu.Unlock()
}

// Push parses and stores a single line. Blank lines are skipped and
// reported as false.
func (c *LogCollector) Push(source Source, line string) bool {
	entry, err := c.parser.Parse(line)
	if err != nil {
		return false
	}
	entry.Source = source
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	c.sinkMu.Lock()
	if c.sink != nil {
		_, _ = io.WriteString(c.sink, entry.Line()+"\n")
	}
	c.sinkMu.Unlock()

	c.buffer.Add(entry)
	return true
}

// Lines returns the newest n entries in console form.
func (c *LogCollector) Lines(n int) []string {
	entries := c.buffer.Last(n)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Line())
	}
	return out
}

// Subscribe returns a subscription to newly collected entries.
func (c *LogCollector) Subscribe() *Subscription {
	return c.buffer.Subscribe()
}
