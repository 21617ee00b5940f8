package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jeffypooo/apptop/internal/apps"
	"github.com/jeffypooo/apptop/internal/web"
)

func printSummaryTable(w io.Writer, summaries []apps.DisplaySummary) {
	headers := []string{"APPLICATION", "ID", "PROCS", "MEMORY", "CPU", "GPU", "READ", "WRITE"}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.DisplayName,
			web.Key(s),
			fmt.Sprint(s.ProcessesAmount),
			web.FormatBytes(s.MemoryUsage),
			web.FormatPercent(s.CPUTimeRatio),
			web.FormatPercent(s.GPUUsage),
			web.FormatSpeed(s.ReadSpeed),
			web.FormatSpeed(s.WriteSpeed),
		})
	}
	printTable(w, headers, rows)
}

// printInfo prints the application header followed by one row per member.
func printInfo(w io.Writer, info apps.Info) {
	fmt.Fprintf(w, "%s (%s): %d processes, %s, CPU %s\n",
		info.DisplayName, web.Key(info.DisplaySummary), info.ProcessesAmount,
		web.FormatBytes(info.MemoryUsage), web.FormatPercent(info.CPUTimeRatio))

	headers := []string{"PID", "NAME", "MEMORY", "CPU", "GPU", "ENC", "DEC", "READ", "WRITE", "STARTED", "COMMAND"}
	rows := make([][]string, 0, len(info.Processes))
	for _, p := range info.Processes {
		rows = append(rows, []string{
			fmt.Sprint(p.PID),
			p.Name,
			web.FormatBytes(p.MemoryUsage),
			web.FormatPercent(p.CPUTimeRatio),
			web.FormatPercent(p.GPUUsage),
			web.FormatPercent(p.EncUsage),
			web.FormatPercent(p.DecUsage),
			web.FormatOptionalSpeed(p.ReadSpeed),
			web.FormatOptionalSpeed(p.WriteSpeed),
			web.FormatTime(p.RunningSince),
			p.Cmdline,
		})
	}
	printTable(w, headers, rows)
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	// Determine column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	seps := make([]string, len(widths))
	for i, wd := range widths {
		seps[i] = strings.Repeat("-", wd)
	}
	sep := "+-" + strings.Join(seps, "-+-") + "-+\n"

	fmt.Fprint(w, sep)
	fmt.Fprint(w, formatRow(headers, widths))
	fmt.Fprint(w, sep)
	for _, row := range rows {
		fmt.Fprint(w, formatRow(row, widths))
	}
	fmt.Fprint(w, sep)
}

func formatRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = pad(c, widths[i])
	}
	return "| " + strings.Join(padded, " | ") + " |\n"
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
