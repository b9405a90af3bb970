// Package report renders human readable summaries of runs and input lists.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/processor"
	"github.com/ZacxDev/clip-stitcher/internal/reference"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// Summary writes the processed and skipped clips of result followed by the
// outcome line. runErr is the error Run returned, if any.
func Summary(w io.Writer, result *processor.Result, runErr error) error {
	if result == nil {
		result = &processor.Result{}
	}

	if len(result.Clips) > 0 {
		rows := make([][]string, 0, len(result.Clips))
		for _, c := range result.Clips {
			rows = append(rows, []string{
				strconv.Itoa(c.Index),
				strconv.Itoa(c.Line),
				c.ContentID,
				formatDuration(c.StartOffset),
				formatDuration(c.Duration),
				transitionAfter(result, c.Index),
			})
		}
		fmt.Fprintln(w, "Processed clips")
		fmt.Fprintln(w, renderTable(
			[]string{"Clip", "Line", "Content ID", "Start", "Length", "Blend"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignRight},
		))
	}

	if len(result.Skipped) > 0 {
		rows := make([][]string, 0, len(result.Skipped))
		for _, s := range result.Skipped {
			rows = append(rows, []string{
				strconv.Itoa(s.Index),
				strconv.Itoa(s.Line),
				s.Stage,
				s.Reason,
				text.Trim(s.Input, 60),
			})
		}
		fmt.Fprintln(w, "Skipped inputs")
		fmt.Fprintln(w, renderTable(
			[]string{"Clip", "Line", "Stage", "Reason", "Input"},
			rows,
			[]columnAlignment{alignRight, alignRight},
		))
	}

	switch {
	case runErr != nil:
		_, err := fmt.Fprintf(w, "Failed: %v\n", runErr)
		if result.RetainedWorkspace != "" {
			fmt.Fprintf(w, "Workspace kept at %s\n", result.RetainedWorkspace)
		}
		return err
	case result.Succeeded():
		_, err := fmt.Fprintf(w, "Output: %s (%d clips, %d skipped, ~%s)\n",
			result.Output, len(result.Clips), len(result.Skipped), formatDuration(result.ExpectedDuration))
		if result.RetainedWorkspace != "" {
			fmt.Fprintf(w, "Workspace kept at %s\n", result.RetainedWorkspace)
		}
		return err
	default:
		_, err := fmt.Fprintln(w, "No output produced")
		return err
	}
}

// ParseListing shows how every input line parses without fetching anything
func ParseListing(w io.Writer, lines []reference.Line) error {
	rows := make([][]string, 0, len(lines))
	for i, line := range lines {
		row := []string{strconv.Itoa(i + 1), strconv.Itoa(line.Number)}
		ref, err := reference.Parse(line.Text)
		if err != nil {
			row = append(row, "", "", "skip: "+err.Error())
		} else {
			row = append(row, ref.ContentID, formatDuration(ref.StartOffset), "ok")
		}
		rows = append(rows, row)
	}

	_, err := fmt.Fprintln(w, renderTable(
		[]string{"Clip", "Line", "Content ID", "Start", "Status"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight},
	))
	return err
}

func transitionAfter(result *processor.Result, index int) string {
	for _, t := range result.Transitions {
		if t.LeftIndex == index {
			return formatDuration(t.Overlap)
		}
	}
	return "-"
}

func formatDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return d.String()
	}
	return d.Round(time.Millisecond).String()
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
