package service

import "github.com/ndanilov/cutroom/internal/models"

// history keeps pre-mutation snapshots of the track list.
// The live track list and this stack are logically one
// resource: every structural mutation must push before it
// touches the tracks.
//
// The stack is unbounded; an editing session owns it and it
// dies with the engine instance.
type history struct {
	undo [][]models.TimelineTrack
	redo [][]models.TimelineTrack
}

// push records a pre-mutation snapshot and invalidates the
// redo branch.
func (h *history) push(snapshot []models.TimelineTrack) {
	h.undo = append(h.undo, snapshot)
	h.redo = nil
}

// stepBack trades the current state for the latest snapshot.
func (h *history) stepBack(current []models.TimelineTrack) ([]models.TimelineTrack, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}

	snapshot := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)

	return snapshot, true
}

// stepForward trades the current state for the latest undone
// snapshot.
func (h *history) stepForward(current []models.TimelineTrack) ([]models.TimelineTrack, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}

	snapshot := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)

	return snapshot, true
}

func (h *history) canUndo() bool { return len(h.undo) > 0 }
func (h *history) canRedo() bool { return len(h.redo) > 0 }

// cloneTracks deep-copies a track list so snapshots and
// returned views never alias the live structure.
func cloneTracks(tracks []models.TimelineTrack) []models.TimelineTrack {
	if tracks == nil {
		return nil
	}

	out := make([]models.TimelineTrack, len(tracks))
	for i, track := range tracks {
		out[i] = track
		out[i].Elements = make([]models.TimelineElement, len(track.Elements))
		copy(out[i].Elements, track.Elements)
	}

	return out
}
