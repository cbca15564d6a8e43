package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const ellipsis = "…"

// fitCells shortens s to at most width terminal cells, ending it with tail
// when something was cut.
func fitCells(s string, width int, tail string) string {
	switch {
	case width <= 0:
		return ""
	case runewidth.StringWidth(s) <= width:
		return s
	}
	tw := runewidth.StringWidth(tail)
	if tw > width {
		return runewidth.Truncate(tail, width, "")
	}
	return runewidth.Truncate(s, width-tw, "") + tail
}

func truncate(s string, width int) string {
	return fitCells(s, width, ellipsis)
}

// singleLine folds newlines and tabs so a label renders on one row.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
