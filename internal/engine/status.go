package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// printStartupSummary renders the effective configuration to the console.
// Everything after startup goes to the log file; the console stays quiet.
func (e *Engine) printStartupSummary() {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("EMA Futures Engine")
	t.SetStyle(table.StyleLight)
	t.Style().Title.Align = text.AlignCenter

	t.AppendRows([]table.Row{
		{"Mode", string(e.cfg.Mode)},
		{"Exchange", e.client.GetName()},
		{"Strategy", e.strategy.GetName()},
		{"Symbols", strings.Join(e.cfg.Symbols, ", ")},
		{"Leverage", fmt.Sprintf("%dx", e.cfg.Leverage)},
		{"Position size", fmt.Sprintf("%.1f%% of equity", e.cfg.PositionSizePct*100)},
		{"Initial equity", fmt.Sprintf("$%.2f", e.portfolio.InitialEquity())},
		{"Daily loss limit", fmt.Sprintf("%.1f%%", e.cfg.DailyLossLimitPct*100)},
		{"Max consecutive losses", e.cfg.MaxConsecutiveLosses},
		{"Cooldown", e.cfg.Cooldown().String()},
		{"Poll interval", e.cfg.PollInterval().String()},
	})
	t.Render()

	fmt.Printf("📝 Engine log: %s\n\n", e.log.GetLogPath())
}
