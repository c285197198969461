// Package logs provides the console line buffer fed by child processes and
// the parser for node and bridge log lines.
package logs

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Source identifies where a console line came from.
type Source string

const (
	SourceStdout Source = "stdout"
	SourceStderr Source = "stderr"
	SourceDaemon Source = "daemon"
)

// Prefix returns the console prefix of a source, e.g. "[stdout] ".
func (s Source) Prefix() string {
	return "[" + string(s) + "] "
}

// LogEntry is a parsed console line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Source    Source    `json:"source"`
	Module    string    `json:"module,omitempty"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw,omitempty"`
}

// Line returns the console form: source prefix followed by the raw line.
func (e *LogEntry) Line() string {
	return e.Source.Prefix() + e.Raw
}

// LogParser parses node and bridge log lines.
type LogParser struct {
	// nodeRegex matches the node format:
	// "2025-01-15 10:30:00.123+00:00 [INFO ] Accepted block ..."
	nodeRegex *regexp.Regexp
	// bridgeRegex matches the bridge format:
	// "2025-01-15T10:30:00.123Z	INFO	stratum	client connected"
	bridgeRegex *regexp.Regexp
	// moduleRegex extracts a leading "[module]" or "module:" tag.
	moduleRegex *regexp.Regexp
}

// NewLogParser creates a new log parser.
func NewLogParser() *LogParser {
	return &LogParser{
		nodeRegex:   regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d+)?(?:[+-]\d{2}:\d{2})?)\s+\[(TRACE|DEBUG|INFO|WARN|ERROR)\s*\]\s+(.*)$`),
		bridgeRegex: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\S+)\s+(DEBUG|INFO|WARN|ERROR|FATAL)\s+(?:(\S+)\s+)?(.*)$`),
		moduleRegex: regexp.MustCompile(`^([a-z][a-z0-9_-]*)::(\S+)\s+(.*)$`),
	}
}

const nodeTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// Parse parses a log line. Unrecognized lines become info entries carrying
// the whole line as message.
func (p *LogParser) Parse(line string) (*LogEntry, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, fmt.Errorf("empty line")
	}

	if m := p.nodeRegex.FindStringSubmatch(line); m != nil {
		return p.parseNode(line, m), nil
	}
	if m := p.bridgeRegex.FindStringSubmatch(line); m != nil {
		return p.parseBridge(line, m), nil
	}

	return &LogEntry{
		Timestamp: time.Now(),
		Level:     "info",
		Message:   strings.TrimSpace(line),
		Raw:       line,
	}, nil
}

func (p *LogParser) parseNode(line string, m []string) *LogEntry {
	entry := &LogEntry{
		Timestamp: time.Now(),
		Level:     normalizeLevel(m[2]),
		Message:   m[3],
		Raw:       line,
	}
	if ts, err := time.Parse(nodeTimeLayout, m[1]); err == nil {
		entry.Timestamp = ts
	} else if ts, err := time.ParseInLocation("2006-01-02 15:04:05.999999999", m[1], time.Local); err == nil {
		entry.Timestamp = ts
	}
	if mm := p.moduleRegex.FindStringSubmatch(entry.Message); mm != nil {
		entry.Module = mm[1] + "::" + mm[2]
		entry.Message = mm[3]
	}
	return entry
}

func (p *LogParser) parseBridge(line string, m []string) *LogEntry {
	entry := &LogEntry{
		Timestamp: time.Now(),
		Level:     normalizeLevel(m[2]),
		Module:    m[3],
		Message:   m[4],
		Raw:       line,
	}
	if ts, err := time.Parse(time.RFC3339Nano, m[1]); err == nil {
		entry.Timestamp = ts
	}
	return entry
}

func normalizeLevel(level string) string {
	switch strings.ToUpper(level) {
	case "TRACE", "DEBUG":
		return "debug"
	case "INFO":
		return "info"
	case "WARN":
		return "warn"
	case "ERROR", "FATAL":
		return "error"
	default:
		return "info"
	}
}
