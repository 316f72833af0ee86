package service

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ndanilov/cutroom/internal/models"
)

// defaultDuplicateGap separates a duplicated element from the
// original's effective end, seconds.
const defaultDuplicateGap = 0.1

// Engine owns a project's track list and is the only writer
// of it. Every public mutation is atomic: it validates, takes
// a pre-mutation snapshot, then applies, so an observer never
// sees a half-applied operation. Invalid requests (driven by
// imprecise UI input) are frequent and expected; they return
// zero values instead of errors and leave both the tracks and
// the history untouched.
type Engine struct {
	log *slog.Logger

	// Guards tracks, history and selection: handlers of one
	// project may run on different goroutines, but a mutation
	// must stay atomic with respect to other engine calls.
	mu sync.Mutex

	tracks    []models.TimelineTrack
	history   history
	selection map[SelectionKey]struct{}

	duplicateGap float64
}

// SelectionKey addresses one selected element. Selection is
// ephemeral and never persisted.
type SelectionKey struct {
	TrackID   string
	ElementID string
}

type Option func(*Engine)

func WithDuplicateGap(gap float64) Option {
	return func(e *Engine) {
		e.duplicateGap = gap
	}
}

// New returns an engine over a copy of the given track list.
func New(log *slog.Logger, tracks []models.TimelineTrack, opts ...Option) *Engine {
	e := &Engine{
		log:          log,
		tracks:       cloneTracks(tracks),
		selection:    make(map[SelectionKey]struct{}),
		duplicateGap: defaultDuplicateGap,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Tracks returns a deep copy of the live track list.
func (e *Engine) Tracks() []models.TimelineTrack {
	e.mu.Lock()
	defer e.mu.Unlock()

	return cloneTracks(e.tracks)
}

// push snapshots the pre-mutation state. Call only after the
// mutation is known to proceed.
func (e *Engine) push() {
	e.history.push(cloneTracks(e.tracks))
}

func (e *Engine) findTrack(trackID string) *models.TimelineTrack {
	for i := range e.tracks {
		if e.tracks[i].ID == trackID {
			return &e.tracks[i]
		}
	}
	return nil
}

func (e *Engine) findElement(trackID, elementID string) (*models.TimelineTrack, int) {
	track := e.findTrack(trackID)
	if track == nil {
		return nil, -1
	}
	for i := range track.Elements {
		if track.Elements[i].ID == elementID {
			return track, i
		}
	}
	return nil, -1
}

// validSpan reports whether an element's timing fields are
// consistent: non-negative start and trims, positive
// effective duration.
func validSpan(el models.TimelineElement) bool {
	return el.StartTime >= 0 &&
		el.TrimStart >= 0 &&
		el.TrimEnd >= 0 &&
		el.EffectiveDuration() > 0
}

// AddTrack appends an empty track and returns its id.
func (e *Engine) AddTrack(trackType models.TrackType) string {
	const op = "Timeline.AddTrack"

	e.mu.Lock()
	defer e.mu.Unlock()

	e.push()

	track := models.TimelineTrack{
		ID:       uuid.NewString(),
		Type:     trackType,
		Elements: make([]models.TimelineElement, 0),
	}
	e.tracks = append(e.tracks, track)

	e.log.Info("added track",
		slog.String("op", op),
		slog.String("id", track.ID),
		slog.String("type", string(trackType)),
	)

	return track.ID
}

// RemoveTrack deletes a track with everything on it.
func (e *Engine) RemoveTrack(trackID string) bool {
	const op = "Timeline.RemoveTrack"

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.tracks {
		if e.tracks[i].ID != trackID {
			continue
		}

		e.push()
		e.tracks = append(e.tracks[:i], e.tracks[i+1:]...)
		e.pruneSelection()

		e.log.Info("removed track", slog.String("op", op), slog.String("id", trackID))
		return true
	}

	return false
}

// AddElement appends an element to a track and returns the
// assigned id. Overlap with neighbours is permitted at this
// layer; an invalid span is not.
func (e *Engine) AddElement(trackID string, el models.TimelineElement) (string, bool) {
	const op = "Timeline.AddElement"

	e.mu.Lock()
	defer e.mu.Unlock()

	track := e.findTrack(trackID)
	if track == nil || !validSpan(el) {
		return "", false
	}

	e.push()

	el.ID = uuid.NewString()
	track.Elements = append(track.Elements, el)

	e.log.Info("added element",
		slog.String("op", op),
		slog.String("trackID", trackID),
		slog.String("id", el.ID),
		slog.Float64("startTime", el.StartTime),
	)

	return el.ID, true
}

// RemoveElement removes an element by id. Removing a missing
// element is a no-op.
func (e *Engine) RemoveElement(trackID, elementID string) bool {
	const op = "Timeline.RemoveElement"

	e.mu.Lock()
	defer e.mu.Unlock()

	track, i := e.findElement(trackID, elementID)
	if track == nil {
		return false
	}

	e.push()

	// Deletion leaves a gap; neighbours are not rippled.
	track.Elements = append(track.Elements[:i], track.Elements[i+1:]...)
	delete(e.selection, SelectionKey{TrackID: trackID, ElementID: elementID})

	e.log.Info("removed element",
		slog.String("op", op),
		slog.String("trackID", trackID),
		slog.String("id", elementID),
	)

	return true
}

// DeleteSelected removes every selected element. Each element
// is handled independently; one miss does not abort the rest.
func (e *Engine) DeleteSelected() int {
	const op = "Timeline.DeleteSelected"

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.selection) == 0 {
		return 0
	}

	e.push()

	removed := 0
	for key := range e.selection {
		track, i := e.findElement(key.TrackID, key.ElementID)
		if track == nil {
			continue
		}
		track.Elements = append(track.Elements[:i], track.Elements[i+1:]...)
		removed++
	}

	e.selection = make(map[SelectionKey]struct{})

	e.log.Info("deleted selected elements", slog.String("op", op), slog.Int("count", removed))

	return removed
}

// splitPoint validates that at lies strictly inside the
// element's effective span and returns the offset from the
// untrimmed start. Exactly-on-boundary is rejected: it would
// produce a zero-length side.
func splitPoint(el models.TimelineElement, at float64) (float64, bool) {
	if at <= el.StartTime || at >= el.End() {
		return 0, false
	}
	return at - el.StartTime, true
}

// SplitElement cuts an element at the given time into two
// elements whose effective spans exactly partition the
// original. Returns the id of the right-hand element.
func (e *Engine) SplitElement(trackID, elementID string, at float64) (string, bool) {
	const op = "Timeline.SplitElement"

	e.mu.Lock()
	defer e.mu.Unlock()

	track, i := e.findElement(trackID, elementID)
	if track == nil {
		return "", false
	}

	el := track.Elements[i]
	rel, ok := splitPoint(el, at)
	if !ok {
		return "", false
	}

	e.push()

	left := el
	left.TrimEnd = el.Duration - el.TrimStart - rel

	right := el
	right.ID = uuid.NewString()
	right.StartTime = at
	right.TrimStart = el.TrimStart + rel

	track.Elements[i] = left
	track.Elements = append(track.Elements, models.TimelineElement{})
	copy(track.Elements[i+2:], track.Elements[i+1:])
	track.Elements[i+1] = right

	e.log.Info("split element",
		slog.String("op", op),
		slog.String("id", elementID),
		slog.String("newID", right.ID),
		slog.Float64("at", at),
	)

	return right.ID, true
}

// SplitAndKeepLeft cuts at the given time and discards the
// right-hand side.
func (e *Engine) SplitAndKeepLeft(trackID, elementID string, at float64) bool {
	const op = "Timeline.SplitAndKeepLeft"

	e.mu.Lock()
	defer e.mu.Unlock()

	track, i := e.findElement(trackID, elementID)
	if track == nil {
		return false
	}

	el := track.Elements[i]
	rel, ok := splitPoint(el, at)
	if !ok {
		return false
	}

	e.push()

	track.Elements[i].TrimEnd = el.Duration - el.TrimStart - rel

	e.log.Info("split element, kept left", slog.String("op", op), slog.String("id", elementID), slog.Float64("at", at))

	return true
}

// SplitAndKeepRight cuts at the given time and discards the
// left-hand side.
func (e *Engine) SplitAndKeepRight(trackID, elementID string, at float64) bool {
	const op = "Timeline.SplitAndKeepRight"

	e.mu.Lock()
	defer e.mu.Unlock()

	track, i := e.findElement(trackID, elementID)
	if track == nil {
		return false
	}

	el := track.Elements[i]
	rel, ok := splitPoint(el, at)
	if !ok {
		return false
	}

	e.push()

	track.Elements[i].StartTime = at
	track.Elements[i].TrimStart = el.TrimStart + rel

	e.log.Info("split element, kept right", slog.String("op", op), slog.String("id", elementID), slog.Float64("at", at))

	return true
}

// DuplicateElement clones an element onto the same track,
// placed right after the original's effective end plus a
// small gap.
func (e *Engine) DuplicateElement(trackID, elementID string) (string, bool) {
	const op = "Timeline.DuplicateElement"

	e.mu.Lock()
	defer e.mu.Unlock()

	track, i := e.findElement(trackID, elementID)
	if track == nil {
		return "", false
	}

	e.push()

	clone := track.Elements[i]
	clone.ID = uuid.NewString()
	clone.StartTime = track.Elements[i].End() + e.duplicateGap
	track.Elements = append(track.Elements, clone)

	e.log.Info("duplicated element",
		slog.String("op", op),
		slog.String("id", elementID),
		slog.String("newID", clone.ID),
	)

	return clone.ID, true
}

// MoveElement re-positions an element on its track. Negative
// targets clamp to the timeline origin.
func (e *Engine) MoveElement(trackID, elementID string, startTime float64) bool {
	const op = "Timeline.MoveElement"

	e.mu.Lock()
	defer e.mu.Unlock()

	track, i := e.findElement(trackID, elementID)
	if track == nil {
		return false
	}

	e.push()

	track.Elements[i].StartTime = max(startTime, 0)

	e.log.Info("moved element",
		slog.String("op", op),
		slog.String("id", elementID),
		slog.Float64("startTime", track.Elements[i].StartTime),
	)

	return true
}

// TrimElement sets both trims, rejected unless the element
// keeps a positive effective duration.
func (e *Engine) TrimElement(trackID, elementID string, trimStart, trimEnd float64) bool {
	const op = "Timeline.TrimElement"

	e.mu.Lock()
	defer e.mu.Unlock()

	track, i := e.findElement(trackID, elementID)
	if track == nil {
		return false
	}

	next := track.Elements[i]
	next.TrimStart = trimStart
	next.TrimEnd = trimEnd
	if !validSpan(next) {
		return false
	}

	e.push()

	track.Elements[i] = next

	e.log.Info("trimmed element",
		slog.String("op", op),
		slog.String("id", elementID),
		slog.Float64("trimStart", trimStart),
		slog.Float64("trimEnd", trimEnd),
	)

	return true
}

// ToggleTrackMute flips the track's muted flag and returns
// the new state.
func (e *Engine) ToggleTrackMute(trackID string) (bool, bool) {
	const op = "Timeline.ToggleTrackMute"

	e.mu.Lock()
	defer e.mu.Unlock()

	track := e.findTrack(trackID)
	if track == nil {
		return false, false
	}

	e.push()

	track.Muted = !track.Muted

	e.log.Info("toggled track mute",
		slog.String("op", op),
		slog.String("id", trackID),
		slog.Bool("muted", track.Muted),
	)

	return track.Muted, true
}

// SeparateAudio extracts an equivalent audio element from a
// media element onto the first audio track, creating one when
// none exists. The new element keeps the original's timing
// and media reference.
func (e *Engine) SeparateAudio(trackID, elementID string) (string, bool) {
	const op = "Timeline.SeparateAudio"

	e.mu.Lock()
	defer e.mu.Unlock()

	track, i := e.findElement(trackID, elementID)
	if track == nil || track.Type != models.TrackMedia {
		return "", false
	}
	if track.Elements[i].Type != models.ElementMedia {
		return "", false
	}

	e.push()

	var audio *models.TimelineTrack
	for j := range e.tracks {
		if e.tracks[j].Type == models.TrackAudio {
			audio = &e.tracks[j]
			break
		}
	}
	if audio == nil {
		e.tracks = append(e.tracks, models.TimelineTrack{
			ID:       uuid.NewString(),
			Type:     models.TrackAudio,
			Elements: make([]models.TimelineElement, 0),
		})
		audio = &e.tracks[len(e.tracks)-1]

		// appending may have moved the slice backing array
		track, i = e.findElement(trackID, elementID)
	}

	el := track.Elements[i]
	el.ID = uuid.NewString()
	el.Name = el.Name + " (audio)"
	audio.Elements = append(audio.Elements, el)

	e.log.Info("separated audio",
		slog.String("op", op),
		slog.String("id", elementID),
		slog.String("newID", el.ID),
		slog.String("audioTrackID", audio.ID),
	)

	return el.ID, true
}

// TotalDuration returns the maximum effective end across all
// elements, zero for an empty timeline.
func (e *Engine) TotalDuration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total float64
	for _, track := range e.tracks {
		for _, el := range track.Elements {
			if end := el.End(); end > total {
				total = end
			}
		}
	}
	return total
}

// Undo replaces the live track list with the latest snapshot.
func (e *Engine) Undo() bool {
	const op = "Timeline.Undo"

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, ok := e.history.stepBack(e.tracks)
	if !ok {
		return false
	}

	e.tracks = snapshot
	e.selection = make(map[SelectionKey]struct{})

	e.log.Info("undo", slog.String("op", op))

	return true
}

// Redo re-applies the latest undone snapshot.
func (e *Engine) Redo() bool {
	const op = "Timeline.Redo"

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, ok := e.history.stepForward(e.tracks)
	if !ok {
		return false
	}

	e.tracks = snapshot
	e.selection = make(map[SelectionKey]struct{})

	e.log.Info("redo", slog.String("op", op))

	return true
}

func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.history.canUndo()
}

func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.history.canRedo()
}

// Select marks an element as selected if it exists.
func (e *Engine) Select(trackID, elementID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if track, _ := e.findElement(trackID, elementID); track == nil {
		return false
	}
	e.selection[SelectionKey{TrackID: trackID, ElementID: elementID}] = struct{}{}
	return true
}

func (e *Engine) Deselect(trackID, elementID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.selection, SelectionKey{TrackID: trackID, ElementID: elementID})
}

func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selection = make(map[SelectionKey]struct{})
}

// Selected returns the current selection set.
func (e *Engine) Selected() []SelectionKey {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]SelectionKey, 0, len(e.selection))
	for key := range e.selection {
		out = append(out, key)
	}
	return out
}

// pruneSelection drops selection entries whose elements are
// gone.
func (e *Engine) pruneSelection() {
	for key := range e.selection {
		if track, _ := e.findElement(key.TrackID, key.ElementID); track == nil {
			delete(e.selection, key)
		}
	}
}
