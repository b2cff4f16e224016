package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"  _",
	" | |_ ___ _ __ ___  _ __   ___",
	" | __/ _ \\ '_ ` _ \\| '_ \\ / _ \\",
	" | ||  __/ | | | | | |_) | (_) |",
	"  \\__\\___|_| |_| |_| .__/ \\___/",
	"                   |_|",
}

// Indigo to rose, one shade per line.
var bannerShades = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6", "#fb7185"}

// PrintBanner writes the tempo banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, p.String(line).Foreground(p.Color(bannerShades[i])))
	}
	fmt.Fprintln(w, p.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
