package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Summary is the end-of-run report.
type Summary struct {
	Operation string        `yaml:"operation"`
	Duration  time.Duration `yaml:"duration"`
	Loaded    int64         `yaml:"loaded"`
	Compared  int64         `yaml:"compared"`
	Rows      int64         `yaml:"rows"`
	Skipped   int64         `yaml:"skipped"`
	Failed    int64         `yaml:"failed"`
	Entries   []Entry       `yaml:"entries,omitempty"`
}

// Summary snapshots the counters for operation op.
func (d *Diagnostics) Summary(op string, elapsed time.Duration) Summary {
	return Summary{
		Operation: op,
		Duration:  elapsed,
		Loaded:    d.Loaded(),
		Compared:  d.Compared(),
		Rows:      d.Rows(),
		Skipped:   d.Skipped(),
		Failed:    d.Failed(),
		Entries:   d.Entries(),
	}
}

// WriteTable renders the summary as a borderless table. Non-zero skip and
// failure counts are highlighted unless colour is disabled globally.
func WriteTable(w io.Writer, s Summary) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateHeader = false

	tbl.SetTitle(s.Operation)
	tbl.AppendRows([]table.Row{
		{"duration", s.Duration.Round(time.Millisecond).String()},
		{"loaded", humanize.Comma(s.Loaded)},
		{"compared", humanize.Comma(s.Compared)},
		{"rows", humanize.Comma(s.Rows)},
		{"skipped", highlight(s.Skipped, color.FgYellow)},
		{"failed", highlight(s.Failed, color.FgRed)},
	})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if len(s.Entries) == 0 {
		return nil
	}

	entries := table.NewWriter()
	entries.SetStyle(table.StyleLight)
	entries.Style().Options.DrawBorder = false
	entries.Style().Options.SeparateColumns = false
	entries.AppendHeader(table.Row{"kind", "location", "reason"})

	for _, e := range s.Entries {
		entries.AppendRow(table.Row{string(e.Kind), e.Location, e.Reason})
	}

	_, err = fmt.Fprintln(w, entries.Render())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func highlight(n int64, attr color.Attribute) string {
	text := humanize.Comma(n)
	if n == 0 {
		return text
	}

	return color.New(attr).Sprint(text)
}

// WriteYAML writes the summary to path as YAML.
func WriteYAML(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}

	return nil
}
