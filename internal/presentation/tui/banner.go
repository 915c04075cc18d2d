package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the flowdeck banner.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	s1 := out.String("  ___ _              _         _   ").Foreground(out.Color("#818cf8"))
	s2 := out.String(" | __| |_____ __ __ | |___ __| |__").Foreground(out.Color("#a78bfa"))
	s3 := out.String(" | _|| / _ \\ V  V // _` / -_) _| / /").Foreground(out.Color("#c084fc"))
	s4 := out.String(" |_| |_\\___/\\_/\\_/ \\__,_\\___\\__|_\\_\\").Foreground(out.Color("#e879f9"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, s1)
	fmt.Fprintln(w, s2)
	fmt.Fprintln(w, s3)
	fmt.Fprintln(w, s4)
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}

// statusColors follow the canvas palette.
var statusColors = map[string]string{
	string(domain.RunCompleted): "#4caf50",
	string(domain.RunRunning):   "#2196f3",
	string(domain.RunPending):   "#9e9e9e",
	string(domain.RunFailed):    "#f44336",
	string(domain.RunPollError): "#ff9800",
	string(domain.RunStopped):   "#ff9800",
	string(domain.RunCancelled): "#9e9e9e",
	string(domain.NodeSkipped):  "#bdbdbd",
}

// Status colors a run or node status for w. Writers that are not terminals get plain text.
func Status(w io.Writer, status string) string {
	out := termenv.NewOutput(w)
	hex, ok := statusColors[status]
	if !ok {
		return status
	}
	return out.String(status).Foreground(out.Color(hex)).Bold().String()
}
