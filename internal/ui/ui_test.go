package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/olivoil/onewordstory/internal/story"
)

func TestThemeMerge(t *testing.T) {
	base := DefaultTheme()
	merged := base.Merge(Theme{Accent: "#ff00ff", Red: "#990000"})

	assert.Equal(t, "#ff00ff", merged.Accent)
	assert.Equal(t, "#990000", merged.Red)
	assert.Equal(t, base.Green, merged.Green)
	assert.Equal(t, base.Border, merged.Border)
}

func TestApplyRebuildsStyles(t *testing.T) {
	t.Cleanup(func() { Apply(DefaultTheme()) })

	Apply(DefaultTheme().Merge(Theme{Red: "#990000"}))
	assert.Equal(t, "#990000", T.Red)
	assert.NotEmpty(t, StyleError.Render("x"))
}

func TestPhaseIcon(t *testing.T) {
	assert.Contains(t, PhaseIcon(story.PhaseIdle), "●")
	assert.Contains(t, PhaseIcon(story.PhaseLoading), "◌")
	assert.Contains(t, PhaseIcon(story.PhaseError), "✗")
}

func TestFormatTime(t *testing.T) {
	assert.Empty(t, FormatTime(time.Time{}))
	assert.Equal(t, "2 minutes ago", FormatTime(time.Now().Add(-2*time.Minute)))

	old := time.Date(2019, 3, 4, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "Mar 04 2019", FormatTime(old))
}
