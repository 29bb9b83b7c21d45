package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"clipsight/internal/runstore"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// statusHeader marks the column whose cells get outcome coloring.
const statusHeader = "STATUS"

// renderTable renders the video and run tables. Cells under a STATUS
// header are colored by outcome when colorize is set: green for ok, red
// for failures, yellow for anything in between.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment, colorize bool) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, name := range headers {
		header[i] = name
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, len(headers))
	for i, name := range headers {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if i < len(aligns) && aligns[i] == alignRight {
			cfg.Align = text.AlignRight
		}
		if colorize && name == statusHeader {
			cfg.Transformer = colorizeStatusCell
		}
		columnConfigs = append(columnConfigs, cfg)
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func colorizeStatusCell(val interface{}) string {
	cell := fmt.Sprint(val)
	switch {
	case cell == "ok" || cell == string(runstore.RunCompleted):
		return text.FgGreen.Sprint(cell)
	case strings.HasPrefix(cell, "failed"):
		return text.FgRed.Sprint(cell)
	case cell == "":
		return cell
	default:
		return text.FgYellow.Sprint(cell)
	}
}
