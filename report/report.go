// Package report renders the tables the CLI prints.
package report

import (
	"fmt"
	"io"
	"os"

	"nbahighlights/nba"
	"nbahighlights/utils"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if isTerminal(w) {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
		t.Style().Options.DrawBorder = false
		t.Style().Options.SeparateColumns = false
	}
	return t
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func Games(w io.Writer, games []nba.GameLogEntry) {
	if len(games) == 0 {
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Matchup", "Result", "PTS", "REB", "AST"})
	for _, g := range games {
		t.AppendRow(table.Row{g.Date.Format("2006-01-02"), g.Matchup, g.Result, g.Points, g.Rebounds, g.Assists})
	}
	t.Render()
}

func Dependencies(w io.Writer, statuses []utils.Status) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Tool", "Command", "Status", "Used for"})
	for _, s := range statuses {
		state := "ok"
		if !s.Available {
			state = "MISSING"
		}
		cmd := s.Command
		if s.Path != "" {
			cmd = s.Path
		}
		if s.Detail != "" {
			state = fmt.Sprintf("%s (%s)", state, s.Detail)
		}
		t.AppendRow(table.Row{s.Name, cmd, state, s.Description})
	}
	t.Render()
}
