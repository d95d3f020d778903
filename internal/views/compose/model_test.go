package compose

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
)

func enter() tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: tea.KeyEnter}
}

func TestSubmitTrimsAndSkipsBlank(t *testing.T) {
	m := New()
	m.Focus()

	for _, tc := range []struct {
		value string
		want  *SubmitMsg
	}{
		{value: "", want: nil},
		{value: "   ", want: nil},
		{value: "two words", want: &SubmitMsg{Word: "two words"}},
		{value: "  adventure ", want: &SubmitMsg{Word: "adventure"}},
	} {
		m.input.SetValue(tc.value)
		_, cmd := m.Update(enter())
		if tc.want == nil {
			assert.Nil(t, cmd, "value %q", tc.value)
			continue
		}
		if assert.NotNil(t, cmd, "value %q", tc.value) {
			assert.Equal(t, *tc.want, cmd())
		}
	}
}

func TestDisabledBlocksSubmit(t *testing.T) {
	m := New()
	m.Focus()
	m.input.SetValue("dragon")
	m.SetDisabled(true)

	_, cmd := m.Update(enter())
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Adding word...")
}

func TestViewShowsHint(t *testing.T) {
	m := New()
	assert.Contains(t, m.View(), hint)

	m.input.SetValue("two words")
	assert.Contains(t, m.View(), hint)
}
