package logs

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCollectorPush(t *testing.T) {
	c := NewLogCollector(NewRingBuffer(10))
	var sink bytes.Buffer
	c.SetSink(&sink)

	assert.True(t, c.Push(SourceStdout, "hello"))
	assert.False(t, c.Push(SourceStdout, "   "))
	assert.True(t, c.Push(SourceStderr, "2025-01-15 10:30:00+00:00 [ERROR] oops"))

	assert.Equal(t, "[stdout] hello\n[stderr] 2025-01-15 10:30:00+00:00 [ERROR] oops\n", sink.String())
	assert.Equal(t, []string{"[stdout] hello", "[stderr] 2025-01-15 10:30:00+00:00 [ERROR] oops"}, c.Lines(10))
	assert.Equal(t, []string{"[stderr] 2025-01-15 10:30:00+00:00 [ERROR] oops"}, c.Lines(1))
}

func TestLogCollectorSubscribe(t *testing.T) {
	c := NewLogCollector(NewRingBuffer(10))
	sub := c.Subscribe()
	defer sub.Close()

	c.Push(SourceStderr, "2025-01-15T10:30:00.5Z\tWARN\tstratum\tslow share")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceStderr, e.Source)
	assert.Equal(t, "warn", e.Level)
	assert.Equal(t, "stratum", e.Module)
	assert.False(t, e.Timestamp.IsZero())
}
