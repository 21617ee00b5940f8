// Package web renders the application table, the detail view and the host
// header. The markup lives in the .templ files; run `mage generate` after
// editing them.
package web

import (
	"embed"
	"fmt"
	"net/url"
	"time"

	"github.com/jeffypooo/apptop/internal/action"
	"github.com/jeffypooo/apptop/internal/apps"
)

// Static holds the stylesheet and script served under /static.
//
//go:embed static
var Static embed.FS

// SystemKey addresses the system bucket in URLs. Application identities
// never contain '@'.
const SystemKey = "@system"

// Key is the URL form of a summary's identity.
func Key(s apps.DisplaySummary) string {
	if s.System {
		return SystemKey
	}
	return s.ID
}

// IDFromKey reverses Key.
func IDFromKey(key string) string {
	if key == SystemKey {
		return ""
	}
	return key
}

// streamURL is the SSE endpoint, carrying the selection so the server can
// mark the row and send its details.
func streamURL(selected string) string {
	if selected == "" {
		return "/api/apps/sse"
	}
	return "/api/apps/sse?selected=" + url.QueryEscape(selected)
}

// ActionVerb is the word used for an action in URLs and on buttons.
func ActionVerb(a action.Action) string {
	switch a {
	case action.Terminate:
		return "end"
	case action.Stop:
		return "halt"
	case action.Continue:
		return "continue"
	}
	return "kill"
}

// ConfirmPrompt is the question asked before a destructive action. Continue
// needs no confirmation and gets "".
func ConfirmPrompt(a action.Action, name string) string {
	switch a {
	case action.Terminate:
		return fmt.Sprintf("End %s? Unsaved work might be lost.", name)
	case action.Kill:
		return fmt.Sprintf("Kill %s? Killing an application can come with serious risks such as losing data and security implications. Use with caution.", name)
	case action.Stop:
		return fmt.Sprintf("Halt %s? Halting an application can come with serious risks such as losing data and security implications. Use with caution.", name)
	}
	return ""
}

func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatPercent formats a 0..1 ratio.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	return FormatBytes(uint64(bytesPerSecond)) + "/s"
}

// FormatOptionalSpeed shows "N/A" for processes without I/O accounting.
func FormatOptionalSpeed(bytesPerSecond *float64) string {
	if bytesPerSecond == nil {
		return "N/A"
	}
	return FormatSpeed(*bytesPerSecond)
}

func FormatTime(t time.Time) string {
	return t.Format(time.DateTime)
}
