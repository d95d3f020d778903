package storyview

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olivoil/onewordstory/internal/backend"
	"github.com/olivoil/onewordstory/internal/failure"
	"github.com/olivoil/onewordstory/internal/story"
)

func render(snap backend.Snapshot) string {
	m := New()
	m.SetSize(80, 12)
	m.SetSnapshot(snap)
	return m.View()
}

func TestEmptyStoryPlaceholder(t *testing.T) {
	out := render(backend.Snapshot{})
	assert.Contains(t, out, "The Story So Far:")
	assert.Contains(t, out, placeholderEmpty)
}

func TestLoadingHidesPlaceholder(t *testing.T) {
	out := render(backend.Snapshot{State: story.State{Phase: story.PhaseLoading}})
	assert.Contains(t, out, placeholderLoading)
	assert.NotContains(t, out, placeholderEmpty)
}

func TestErrorBanner(t *testing.T) {
	err := failure.Wrap(failure.CodeFetchFailed, "Failed to fetch story: boom", errors.New("boom"))
	out := render(backend.Snapshot{
		Story: []string{"Once", "upon"},
		State: story.State{Phase: story.PhaseError, Err: err},
	})
	assert.Contains(t, out, "Failed to fetch story: boom")
	assert.Contains(t, out, "Once")
	assert.NotContains(t, out, placeholderEmpty)
}

func TestWordsRendered(t *testing.T) {
	out := render(backend.Snapshot{Story: []string{"Once", "upon", "a", "time"}})
	for _, w := range []string{"Once", "upon", "time"} {
		assert.Contains(t, out, w)
	}
}

func TestRecoveryHints(t *testing.T) {
	missing := failure.New(failure.CodeProviderUnavailable, "Make sure you have a wallet provider running!")
	out := render(backend.Snapshot{State: story.State{Phase: story.PhaseError, Err: missing}})
	assert.Contains(t, out, "STORY_PROVIDER_URL")

	rejected := failure.New(failure.CodeUserRejected, "Error connecting: the request was rejected in the wallet.")
	out = render(backend.Snapshot{State: story.State{Phase: story.PhaseError, Err: rejected}})
	assert.Contains(t, out, "Press c to ask the wallet again.")

	fetch := failure.New(failure.CodeFetchFailed, "Failed to fetch story: boom")
	out = render(backend.Snapshot{State: story.State{Phase: story.PhaseError, Err: fetch}})
	assert.NotContains(t, out, "Press c")
	assert.NotContains(t, out, "STORY_PROVIDER_URL")
}
