package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/controller"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/events"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/subsidy"
	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

// DefaultPanelWidth is used when the terminal width is unknown.
const DefaultPanelWidth = 64

// Panel is the data shown in the status panel.
type Panel struct {
	Title    string
	Kind     types.NodeKind
	Snapshot types.NodeSnapshot
	// Bridge is the last bridge status; nil hides the row.
	Bridge *events.BridgeStatus
	Width  int
}

// Render draws the panel.
func (p Panel) Render() string {
	width := p.Width
	if width <= 0 {
		width = DefaultPanelWidth
	}
	snap := p.Snapshot

	var rows []string
	row := func(label, value string) {
		rows = append(rows, LabelStyle.Render(label)+ValueStyle.Render(value))
	}

	state := lipgloss.NewStyle().Foreground(StateColor(snap.State)).Render(string(snap.State))
	row("node", fmt.Sprintf("%s (%s)", p.Kind, state))
	if p.Kind == types.NodeKindDisabled {
		return p.frame(width, rows)
	}

	if snap.IsConnected {
		row("endpoint", fmt.Sprintf("%s %s", snap.URL, snap.NetworkID))
	} else {
		row("endpoint", "not connected")
	}
	if snap.ServerVersion != "" {
		row("version", snap.ServerVersion)
	}
	row("sync", syncLine(snap))
	row("daa score", humanize.Comma(int64(snap.DaaScore)))
	row("peers", fmt.Sprintf("%d", snap.PeerCount))
	row("mempool", fmt.Sprintf("%d", snap.MempoolSize))
	row("tps", fmt.Sprintf("%.2f", snap.NetworkTPS))
	row("hashrate", humanize.SIWithDigits(float64(snap.Hashrate), 2, "H/s"))
	row("difficulty", humanize.SIWithDigits(float64(snap.Difficulty), 2, ""))
	row("block reward", controller.FormatSompi(snap.BlockReward)+" WALA")
	if snap.MaxSupply > 0 {
		row("supply", fmt.Sprintf("%s / %s WALA",
			humanize.Comma(int64(snap.CirculatingSupply/subsidy.SompiPerCoin)),
			humanize.Comma(int64(snap.MaxSupply/subsidy.SompiPerCoin))))
	}
	if snap.Storage.Path != "" {
		row("storage", fmt.Sprintf("%s (%s)", snap.Storage.Human, snap.Storage.Path))
	}
	if snap.IsOpen {
		row("balance", fmt.Sprintf("%s WALA (+%s pending)",
			controller.FormatSompi(snap.Balance.Mature),
			controller.FormatSompi(snap.Balance.Pending)))
	}
	if p.Bridge != nil {
		row("bridge", bridgeLine(*p.Bridge))
	}
	if snap.Error != "" {
		row("error", lipgloss.NewStyle().Foreground(ColorError).Render(snap.Error))
	}

	return p.frame(width, rows)
}

func (p Panel) frame(width int, rows []string) string {
	title := p.Title
	if title == "" {
		title = "waglayla supervisor"
	}
	body := TitleStyle(title).String() + "\n" + strings.Join(rows, "\n")
	return boxFor(p.Snapshot).Width(width).Render(body)
}

func syncLine(snap types.NodeSnapshot) string {
	if snap.IsSynced {
		return lipgloss.NewStyle().Foreground(ColorSuccess).Render("synced")
	}
	return snap.SyncState.String()
}

func bridgeLine(st events.BridgeStatus) string {
	if st.Running {
		return fmt.Sprintf("running (pid %d, %d restarts)", st.PID, st.Restarts)
	}
	return lipgloss.NewStyle().Foreground(ColorWarning).
		Render(fmt.Sprintf("stopped (%d restarts)", st.Restarts))
}
