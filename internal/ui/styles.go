package ui

import (
	"time"

	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/olivoil/onewordstory/internal/story"
)

var (
	ColorGreen  = lipgloss.Color(T.Green)
	ColorRed    = lipgloss.Color(T.Red)
	ColorYellow = lipgloss.Color(T.Yellow)
	ColorBlue   = lipgloss.Color(T.Blue)
	ColorDim    = lipgloss.Color(T.Dim)
	ColorBorder = lipgloss.Color(T.Border)
	ColorAccent = lipgloss.Color(T.Accent)
	ColorHeader = lipgloss.Color(T.Header)

	StyleHeader   lipgloss.Style
	StyleActive   lipgloss.Style
	StyleInactive lipgloss.Style
	StyleDim      lipgloss.Style
	StyleAccent   lipgloss.Style
	StyleError    lipgloss.Style
	StyleWord     lipgloss.Style
	StyleBanner   lipgloss.Style
	StyleStoryBox lipgloss.Style
)

func init() {
	buildStyles()
}

func buildStyles() {
	ColorGreen = lipgloss.Color(T.Green)
	ColorRed = lipgloss.Color(T.Red)
	ColorYellow = lipgloss.Color(T.Yellow)
	ColorBlue = lipgloss.Color(T.Blue)
	ColorDim = lipgloss.Color(T.Dim)
	ColorBorder = lipgloss.Color(T.Border)
	ColorAccent = lipgloss.Color(T.Accent)
	ColorHeader = lipgloss.Color(T.Header)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorHeader)

	StyleActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorGreen)

	StyleInactive = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorRed)

	StyleDim = lipgloss.NewStyle().
		Foreground(ColorDim)

	StyleAccent = lipgloss.NewStyle().
		Foreground(ColorAccent)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorRed)

	StyleWord = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBlue)

	StyleBanner = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorRed).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorRed).
		PaddingLeft(1)

	StyleStoryBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)
}

// PhaseIcon returns an icon for the synchronizer phase.
func PhaseIcon(p story.Phase) string {
	switch p {
	case story.PhaseIdle:
		return lipgloss.NewStyle().Foreground(ColorGreen).Render("●")
	case story.PhaseLoading:
		return lipgloss.NewStyle().Foreground(ColorYellow).Render("◌")
	case story.PhaseError:
		return lipgloss.NewStyle().Foreground(ColorRed).Render("✗")
	default:
		return " "
	}
}

// FormatTime formats a block timestamp relative to now, falling back to a
// clock time for anything older than a day.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if time.Since(t) < 24*time.Hour {
		return humanize.Time(t)
	}
	t = t.Local()
	if t.Year() == time.Now().Year() {
		return t.Format("Jan 02 15:04")
	}
	return t.Format("Jan 02 2006")
}
