// Package output prints supervisor events as colored console lines.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/logs"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// Printer writes one line per notable event. Metric updates are skipped;
// they belong in the status panel.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	verbose bool
	now     func() time.Time

	lastSync types.SyncPhase
}

// NewPrinter creates a printer. Nil writers select stdout and stderr.
func NewPrinter(out, errOut io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Printer{out: out, errOut: errOut, now: time.Now}
}

// SetNoColor disables colored output.
func (p *Printer) SetNoColor(noColor bool) {
	color.NoColor = noColor
}

// SetVerbose also prints metric updates.
func (p *Printer) SetVerbose(verbose bool) {
	p.verbose = verbose
}

// Write prints raw text under the printer lock so panels and event lines
// do not interleave.
func (p *Printer) Write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, s)
}

// Event prints e and reports whether anything was written.
func (p *Printer) Event(e events.Event) bool {
	line, c, toErr := p.format(e)
	if line == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.out
	if toErr {
		w = p.errOut
	}
	stamp := color.New(color.FgHiBlack).Sprint(p.now().Format("15:04:05"))
	fmt.Fprintf(w, "%s %s\n", stamp, c.Sprint(line))
	return true
}

// Console prints a child process console line tagged with the child's name.
// Warnings and errors are colored by the parsed level.
func (p *Printer) Console(name string, e *logs.LogEntry) {
	c := color.New(color.FgHiBlack)
	switch e.Level {
	case "error":
		c = color.New(color.FgRed)
	case "warn":
		c = color.New(color.FgYellow)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	stamp := color.New(color.FgHiBlack).Sprint(p.now().Format("15:04:05"))
	fmt.Fprintf(p.out, "%s %s %s\n", stamp, name, c.Sprint(e.Line()))
}

func (p *Printer) format(e events.Event) (string, *color.Color, bool) {
	switch ev := e.(type) {
	case events.NodeConnected:
		return fmt.Sprintf("✓ connected to %s (%s)", ev.URL, ev.Network), color.New(color.FgGreen), false
	case events.NodeDisconnected:
		return "disconnected from node", color.New(color.FgYellow), false
	case events.NodeStateChanged:
		return fmt.Sprintf("→ node %s", ev.State), color.New(color.FgCyan), false
	case events.ServerStatus:
		return fmt.Sprintf("node %s on %s (synced: %v)", ev.Version, ev.Network, ev.Synced), color.New(color.Reset), false
	case events.SyncStateChanged:
		// Only phase changes; progress ticks would flood the console.
		p.mu.Lock()
		changed := ev.State.Phase != p.lastSync
		p.lastSync = ev.State.Phase
		p.mu.Unlock()
		if !changed && !p.verbose {
			return "", nil, false
		}
		return fmt.Sprintf("sync: %s", ev.State), color.New(color.FgCyan), false
	case events.BridgeStatus:
		if ev.Running {
			return fmt.Sprintf("bridge running (pid %d)", ev.PID), color.New(color.FgGreen), false
		}
		return fmt.Sprintf("bridge stopped (restarts: %d)", ev.Restarts), color.New(color.FgYellow), false
	case events.Notify:
		return notifyLine(ev), severityColor(ev.Severity), ev.Severity == types.SeverityError
	case events.Exit:
		return "supervisor stopped", color.New(color.Bold), false
	}

	if p.verbose {
		return fmt.Sprintf("[%s] %+v", e.Kind(), e), color.New(color.FgHiBlack), false
	}
	return "", nil, false
}

func notifyLine(n events.Notify) string {
	switch n.Severity {
	case types.SeverityError:
		return "Error: " + n.Message
	case types.SeverityWarning:
		return "Warning: " + n.Message
	case types.SeveritySuccess:
		return "✓ " + n.Message
	}
	return n.Message
}

func severityColor(s types.Severity) *color.Color {
	switch s {
	case types.SeverityError:
		return color.New(color.FgRed)
	case types.SeverityWarning:
		return color.New(color.FgYellow)
	case types.SeveritySuccess:
		return color.New(color.FgGreen)
	}
	return color.New(color.FgCyan)
}

// Separator returns a line of width box-drawing characters.
func Separator(width int) string {
	return strings.Repeat("─", width)
}
