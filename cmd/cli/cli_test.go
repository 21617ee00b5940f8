package main

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jeffypooo/apptop/internal/apps"
)

func TestCommandTree(t *testing.T) {
	var names []string
	for _, c := range NewRootCmd().Commands() {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	want := []string{"continue", "end", "halt", "info", "kill", "list"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

func TestCommandsRequireAnID(t *testing.T) {
	for _, name := range []string{"kill", "info"} {
		root := NewRootCmd()
		root.SetArgs([]string{name})
		if err := root.Execute(); err == nil {
			t.Fatalf("%s: expected an argument error", name)
		}
	}
}

func TestPrintSummaryTable(t *testing.T) {
	var b strings.Builder
	printSummaryTable(&b, []apps.DisplaySummary{
		{ID: "org.mozilla.firefox", DisplayName: "Firefox", MemoryUsage: 300 << 20, CPUTimeRatio: 0.3, ProcessesAmount: 2},
		{System: true, DisplayName: apps.SystemName, ProcessesAmount: 120},
	})
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), b.String())
	}
	for _, l := range lines {
		if len(l) != len(lines[0]) {
			t.Fatalf("rows are not aligned:\n%s", b.String())
		}
	}
	if !strings.Contains(lines[3], "| Firefox ") || !strings.Contains(lines[3], "300.0 MiB") || !strings.Contains(lines[3], "30.0%") {
		t.Fatalf("unexpected row %q", lines[3])
	}
	if !strings.Contains(lines[4], "@system") {
		t.Fatalf("system bucket should be addressable, got %q", lines[4])
	}
}

func TestPrintSummariesJSON(t *testing.T) {
	var b strings.Builder
	if err := printSummaries(&b, []apps.DisplaySummary{{ID: "a", DisplayName: "A", ProcessesAmount: 1}}, true); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(b.String(), `"display_name": "A"`) {
		t.Fatalf("unexpected json %s", b.String())
	}
}

func TestPrintInfo(t *testing.T) {
	write := 512.0
	var b strings.Builder
	printInfo(&b, apps.Info{
		DisplaySummary: apps.DisplaySummary{ID: "org.mozilla.firefox", DisplayName: "Firefox", MemoryUsage: 300 << 20, ProcessesAmount: 2},
		Processes: []apps.ProcessInfo{
			{PID: 3, Name: "firefox", Cmdline: "/usr/lib/firefox/firefox", RunningSince: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), DecUsage: 0.125},
			{PID: 9, Name: "firefox-bin", Cmdline: "/usr/lib/firefox/firefox-bin -contentproc", WriteSpeed: &write},
		},
	})
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if lines[0] != "Firefox (org.mozilla.firefox): 2 processes, 300.0 MiB, CPU 0.0%" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d:\n%s", len(lines), b.String())
	}
	for _, want := range []string{"| 3 ", "12.5%", "2026-01-02 03:04:05", "| N/A "} {
		if !strings.Contains(lines[4], want) {
			t.Fatalf("%q missing from %q", want, lines[4])
		}
	}
	if !strings.Contains(lines[5], "512 B/s") || !strings.Contains(lines[5], "-contentproc") {
		t.Fatalf("unexpected row %q", lines[5])
	}
}
