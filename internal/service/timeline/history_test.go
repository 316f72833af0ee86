package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndanilov/cutroom/internal/models"
)

// After N mutations followed by N undos the track list must equal
// its initial state; a further N redos must restore the final state.
func TestUndoRedoRoundTrip(t *testing.T) {
	e := newEngine(t, nil)

	initial := e.Tracks()

	trackID := e.AddTrack(models.TrackMedia)
	elID, _ := e.AddElement(trackID, mediaElement(0, 10))
	e.SplitElement(trackID, elID, 4)

	const mutations = 3

	final := e.Tracks()

	for i := 0; i < mutations; i++ {
		require.True(t, e.Undo(), "undo %d", i)
	}
	assert.Equal(t, initial, e.Tracks())
	assert.False(t, e.CanUndo())

	for i := 0; i < mutations; i++ {
		require.True(t, e.Redo(), "redo %d", i)
	}
	assert.Equal(t, final, e.Tracks())
	assert.False(t, e.CanRedo())
}

func TestUndoOnEmptyHistory(t *testing.T) {
	e := newEngine(t, nil)

	assert.False(t, e.Undo())
	assert.False(t, e.Redo())
}

// A new mutation after an undo drops the redo branch.
func TestMutationInvalidatesRedo(t *testing.T) {
	e := newEngine(t, nil)

	trackID := e.AddTrack(models.TrackMedia)
	e.AddElement(trackID, mediaElement(0, 10))

	require.True(t, e.Undo())
	require.True(t, e.CanRedo())

	e.AddElement(trackID, mediaElement(2, 3))

	assert.False(t, e.CanRedo())
}

func TestUndoClearsSelection(t *testing.T) {
	e := newEngine(t, nil)

	trackID := e.AddTrack(models.TrackMedia)
	elID, _ := e.AddElement(trackID, mediaElement(0, 10))
	require.True(t, e.Select(trackID, elID))

	require.True(t, e.Undo())
	assert.Empty(t, e.Selected())

	require.True(t, e.Redo())
	assert.Empty(t, e.Selected())
}

// Rejected operations never reach the history stack.
func TestNoOpsDoNotPush(t *testing.T) {
	e := newEngine(t, nil)

	trackID := e.AddTrack(models.TrackMedia)
	require.True(t, e.Undo())
	require.False(t, e.CanUndo())

	_, ok := e.AddElement(trackID, mediaElement(0, 10))
	assert.False(t, ok, "track was undone away")
	assert.False(t, e.CanUndo())

	assert.False(t, e.RemoveTrack(trackID))
	assert.False(t, e.CanUndo())
}

func TestCloneTracksIsDeep(t *testing.T) {
	src := []models.TimelineTrack{
		{ID: "t-1", Type: models.TrackMedia, Elements: []models.TimelineElement{
			{ID: "e-1", StartTime: 1, Duration: 5},
		}},
	}

	clone := cloneTracks(src)
	clone[0].Elements[0].StartTime = 42

	assert.InDelta(t, 1, src[0].Elements[0].StartTime, 1e-9)
	assert.Nil(t, cloneTracks(nil))
}
