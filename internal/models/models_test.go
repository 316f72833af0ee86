package models_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndanilov/cutroom/internal/models"
)

func TestProjectMarshal(t *testing.T) {
	ti := time.Now()
	writeFormat := ti.Format(models.TimeFormat)

	testCase := struct {
		p      models.Project
		expect string
	}{
		p: models.Project{
			ID:         "p-1",
			Name:       "demo",
			CreatedAt:  ti,
			UpdatedAt:  ti,
			Background: models.Background{Type: "color", Color: "#000000"},
		},
		expect: fmt.Sprintf(
			`{"id":"p-1","name":"demo","createdAt":"%s","updatedAt":"%s","background":{"type":"color","color":"#000000"}}`,
			writeFormat, writeFormat,
		),
	}

	res, err := json.Marshal(testCase.p)
	require.NoError(t, err)

	require.JSONEq(t, testCase.expect, string(res))
}

func TestProjectRoundTrip(t *testing.T) {
	orig := models.Project{
		ID:        "p-2",
		Name:      "round trip",
		Thumbnail: "m-1",
		CreatedAt: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 3, 2, 9, 15, 0, 0, time.UTC),
		Background: models.Background{
			Type: "blur",
		},
	}

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var got models.Project
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.Thumbnail, got.Thumbnail)
	assert.Equal(t, orig.Background, got.Background)
	assert.True(t, orig.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, orig.UpdatedAt.Equal(got.UpdatedAt))
}

func TestElementSpan(t *testing.T) {
	testCases := []struct {
		desc           string
		el             models.TimelineElement
		expectEffDur   float64
		expectEnd      float64
	}{
		{
			desc:         "untrimmed",
			el:           models.TimelineElement{StartTime: 0, Duration: 10},
			expectEffDur: 10,
			expectEnd:    10,
		},
		{
			desc:         "trimmed both ends",
			el:           models.TimelineElement{StartTime: 2, Duration: 10, TrimStart: 1, TrimEnd: 3},
			expectEffDur: 6,
			expectEnd:    8,
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.InDelta(t, tC.expectEffDur, tC.el.EffectiveDuration(), 1e-9)
			assert.InDelta(t, tC.expectEnd, tC.el.End(), 1e-9)
		})
	}
}

func TestThumbnailKey(t *testing.T) {
	assert.Equal(t, "m-1_2.50", models.ThumbnailKey("m-1", 2.5))
	assert.Equal(t, "m-1_0.00", models.ThumbnailKey("m-1", 0))
	assert.Equal(t, "m-1_9.90", models.ThumbnailKey("m-1", 9.899999))
}
