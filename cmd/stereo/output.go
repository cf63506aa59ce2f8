package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// printer writes status lines; colors follow fatih/color's NO_COLOR and
// terminal detection.
type printer struct {
	out io.Writer
	err io.Writer
}

func newPrinter(out, err io.Writer) *printer {
	return &printer{out: out, err: err}
}

func (p *printer) Info(format string, args ...any) {
	color.New(color.FgCyan).Fprintf(p.out, format+"\n", args...)
}

func (p *printer) Success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
}

func (p *printer) Warning(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
}

func (p *printer) Error(format string, args ...any) {
	color.New(color.FgRed).Fprintf(p.err, "✗ "+format+"\n", args...)
}

func (p *printer) Print(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Table renders rows under header with left-aligned, unwrapped cells.
func (p *printer) Table(header []string, rows [][]string) error {
	table := tablewriter.NewTable(p.out,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
