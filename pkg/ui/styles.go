package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
)

// Palette: adaptive colors for light and dark terminals.
var (
	ColorText      = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorDanger    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}

	// depthColors follow the depth bands used by the renderers.
	depthColors = [mindmap.DepthBands]lipgloss.AdaptiveColor{
		{Light: "#0057B8", Dark: "#8BE9FD"},
		{Light: "#007700", Dark: "#50FA7B"},
		{Light: "#B06800", Dark: "#FFB86C"},
		{Light: "#B0306A", Dark: "#FF79C6"},
		{Light: "#555555", Dark: "#BFBFBF"},
	}
)

// Styles bundles the lipgloss styles the viewer renders with. Built once per
// model rather than per frame.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Muted    lipgloss.Style
	Tree     lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Status   lipgloss.Style
	Pinned   lipgloss.Style
	Depth    [mindmap.DepthBands]lipgloss.Style
}

// DefaultStyles returns the standard viewer styles.
func DefaultStyles() Styles {
	s := Styles{
		Title:    lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true),
		Header:   lipgloss.NewStyle().Foreground(ColorText).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
		Tree:     lipgloss.NewStyle().Foreground(ColorMuted),
		Selected: lipgloss.NewStyle().Background(ColorHighlight).Bold(true),
		Error:    lipgloss.NewStyle().Foreground(ColorDanger).Bold(true),
		Status:   lipgloss.NewStyle().Foreground(ColorWarning),
		Pinned:   lipgloss.NewStyle().Foreground(ColorWarning),
	}
	for i, c := range depthColors {
		s.Depth[i] = lipgloss.NewStyle().Foreground(c)
	}
	s.Depth[0] = s.Depth[0].Bold(true)
	return s
}

// ForDepth returns the label style for a node depth.
func (s Styles) ForDepth(depth int) lipgloss.Style {
	switch {
	case depth < 0:
		depth = 0
	case depth >= mindmap.DepthBands:
		depth = mindmap.DepthBands - 1
	}
	return s.Depth[depth]
}
