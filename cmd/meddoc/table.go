package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// pathColumnWidth wraps long relative paths instead of stretching the table.
const pathColumnWidth = 64

type tableColumn struct {
	Header   string
	Right    bool
	MaxWidth int
}

func col(header string) tableColumn { return tableColumn{Header: header} }

func numCol(header string) tableColumn { return tableColumn{Header: header, Right: true} }

func pathCol(header string) tableColumn {
	return tableColumn{Header: header, MaxWidth: pathColumnWidth}
}

func renderTable(columns []tableColumn, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.Header
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.Right {
			configs[i].Align = text.AlignRight
		}
		if c.MaxWidth > 0 {
			configs[i].WidthMax = c.MaxWidth
			configs[i].WidthMaxEnforcer = text.WrapHard
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// renderCounts renders label/count pairs with a right-aligned count column.
func renderCounts(label string, rows [][]string) string {
	return renderTable([]tableColumn{col(label), numCol("Count")}, rows)
}
