package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type EditorIn struct {
	Login string `json:"login"`
	Pass  string `json:"pass"`
}

const RootLogin = "root"

// specify custom time marshalling since
// time package is not stable.
const TimeFormat = "2006-01-02T15:04:05.999999999-07:00"

type Project struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Thumbnail  string     `json:"thumbnail,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Background Background `json:"background"`
}

type Background struct {
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
}

func (p Project) MarshalJSON() ([]byte, error) {
	type projectJSON Project

	tmp := struct {
		projectJSON
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
	}{
		projectJSON: projectJSON(p),
		CreatedAt:   p.CreatedAt.Format(TimeFormat),
		UpdatedAt:   p.UpdatedAt.Format(TimeFormat),
	}

	return json.Marshal(tmp)
}

func (p *Project) UnmarshalJSON(data []byte) error {
	type projectJSON Project

	var tmp struct {
		projectJSON
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
	}

	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}

	*p = Project(tmp.projectJSON)

	var err error
	if tmp.CreatedAt != "" {
		if p.CreatedAt, err = time.Parse(TimeFormat, tmp.CreatedAt); err != nil {
			return err
		}
	}
	if tmp.UpdatedAt != "" {
		if p.UpdatedAt, err = time.Parse(TimeFormat, tmp.UpdatedAt); err != nil {
			return err
		}
	}

	return nil
}

type MediaType string

const (
	MediaVideo   MediaType = "video"
	MediaAudio   MediaType = "audio"
	MediaImage   MediaType = "image"
	MediaUnknown MediaType = "unknown"
)

type MediaItem struct {
	ID   string    `json:"id"`
	Type MediaType `json:"type"`
	Name string    `json:"name"`

	// Derived on ingest.
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`

	// Set while the item is produced asynchronously
	// (e.g. AI-generated media).
	Processing bool `json:"processing,omitempty"`

	Thumbnails []string `json:"thumbnails,omitempty"`

	// Ephemeral handle for the item's blob. Regenerated on
	// every load, valid only for the current process.
	URL string `json:"url,omitempty"`
}

// Blob is a binary payload together with the file-level
// metadata that must survive storage round-trips.
type Blob struct {
	Name    string    `json:"name"`
	MIME    string    `json:"mime"`
	ModTime time.Time `json:"modTime"`
	Data    []byte    `json:"data"`
}

type MediaFilter struct {
	Name       string
	Type       MediaType
	MaxRespLen int
}

type TrackType string

const (
	TrackMedia TrackType = "media"
	TrackAudio TrackType = "audio"
	TrackText  TrackType = "text"
)

type ElementType string

const (
	ElementMedia ElementType = "media"
	ElementText  ElementType = "text"
)

type TimelineTrack struct {
	ID       string            `json:"id"`
	Type     TrackType         `json:"type"`
	Name     string            `json:"name"`
	Muted    bool              `json:"muted"`
	Elements []TimelineElement `json:"elements"`
}

type TimelineElement struct {
	ID   string      `json:"id"`
	Type ElementType `json:"type"`
	Name string      `json:"name,omitempty"`

	// Weak reference for media elements: id + lookup, never
	// ownership. A dangling id resolves to missing media.
	MediaID string `json:"mediaId,omitempty"`

	// Text elements only.
	Content    string `json:"content,omitempty"`
	FontFamily string `json:"fontFamily,omitempty"`
	FontSize   int    `json:"fontSize,omitempty"`
	Color      string `json:"color,omitempty"`
	Align      string `json:"align,omitempty"`

	// Timing, seconds on the track axis.
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	TrimStart float64 `json:"trimStart"`
	TrimEnd   float64 `json:"trimEnd"`
}

// EffectiveDuration returns the element's on-timeline length
// after trimming.
func (e TimelineElement) EffectiveDuration() float64 {
	return e.Duration - e.TrimStart - e.TrimEnd
}

// End returns the element's effective end on the track axis.
func (e TimelineElement) End() float64 {
	return e.StartTime + e.EffectiveDuration()
}

type ThumbnailData struct {
	MediaID      string    `json:"mediaId"`
	Position     float64   `json:"position"`
	URL          string    `json:"url"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// StoredThumbnail mirrors ThumbnailData into the persistent
// tier. Image bytes ride inline (base64 via encoding/json)
// since in-memory handles are not valid across sessions.
type StoredThumbnail struct {
	MediaID      string    `json:"mediaId"`
	Position     float64   `json:"position"`
	Image        []byte    `json:"image"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// ThumbnailKey builds the cache key for a media id and a time
// position, rounded to a fixed 2-decimal precision.
func ThumbnailKey(mediaID string, position float64) string {
	return fmt.Sprintf("%s_%.2f", mediaID, position)
}
