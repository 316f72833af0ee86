package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndanilov/cutroom/internal/lib/memurl"
	"github.com/ndanilov/cutroom/internal/models"
)

type stubDecoder struct {
	calls  int
	failAt float64
}

func (d *stubDecoder) DecodeFrame(_ context.Context, _ models.Blob, position float64, _, _ int) ([]byte, error) {
	d.calls++
	if d.failAt > 0 && position == d.failAt {
		return nil, errors.New("decode failed")
	}
	return []byte(fmt.Sprintf("frame@%.2f", position)), nil
}

type memAdapter struct {
	items map[string]models.StoredThumbnail
}

func newMemAdapter() *memAdapter {
	return &memAdapter{items: make(map[string]models.StoredThumbnail)}
}

func (a *memAdapter) Get(_ context.Context, key string) (models.StoredThumbnail, bool, error) {
	item, ok := a.items[key]
	return item, ok, nil
}

func (a *memAdapter) Set(_ context.Context, key string, value models.StoredThumbnail) error {
	a.items[key] = value
	return nil
}

func (a *memAdapter) Remove(_ context.Context, key string) error {
	delete(a.items, key)
	return nil
}

func (a *memAdapter) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(a.items))
	for key := range a.items {
		keys = append(keys, key)
	}
	return keys, nil
}

func (a *memAdapter) Clear(_ context.Context) error {
	a.items = make(map[string]models.StoredThumbnail)
	return nil
}

func newCache(t *testing.T, dec *stubDecoder, store *memAdapter, cfg Config) *Cache {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, dec, store, memurl.New(), cfg)
}

func videoItem(duration float64) models.MediaItem {
	return models.MediaItem{
		ID:       "m-1",
		Type:     models.MediaVideo,
		Name:     "clip.mp4",
		Width:    1920,
		Height:   1080,
		Duration: duration,
	}
}

func TestPositions(t *testing.T) {
	testCases := []struct {
		desc     string
		duration float64
		interval float64
		maxCount int
		want     []float64
	}{
		{
			desc:     "even spread with clamped tail",
			duration: 10, interval: 2, maxCount: 20,
			want: []float64{0, 2.5, 5, 7.5, 9.9},
		},
		{
			desc:     "very short media still gets two",
			duration: 0.6, interval: 4, maxCount: 10,
			want: []float64{0, 0.5},
		},
		{
			desc:     "count capped by maxCount",
			duration: 100, interval: 1, maxCount: 3,
			want: []float64{0, 50, 99.9},
		},
		{
			desc:     "zero duration degenerates to origin",
			duration: 0, interval: 2, maxCount: 10,
			want: []float64{0},
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			got := positions(tC.duration, tC.interval, tC.maxCount)
			require.Len(t, got, len(tC.want))
			for i := range tC.want {
				assert.InDelta(t, tC.want[i], got[i], 1e-9, "position %d", i)
			}
		})
	}
}

func TestAdaptedSize(t *testing.T) {
	testCases := []struct {
		desc       string
		srcW, srcH int
		wantW      int
		wantH      int
	}{
		{desc: "standard landscape", srcW: 1920, srcH: 1080, wantW: 160, wantH: 90},
		{desc: "portrait keeps height", srcW: 1080, srcH: 1920, wantW: 51, wantH: 90},
		{desc: "ultra-wide keeps width", srcW: 3840, srcH: 1080, wantW: 160, wantH: 45},
		{desc: "unknown source falls back", srcW: 0, srcH: 0, wantW: 160, wantH: 90},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			w, h := adaptedSize(tC.srcW, tC.srcH, 160, 90)
			assert.Equal(t, tC.wantW, w)
			assert.Equal(t, tC.wantH, h)
		})
	}
}

func TestGenerateAndLookup(t *testing.T) {
	dec := &stubDecoder{}
	cache := newCache(t, dec, newMemAdapter(), Config{})

	item := videoItem(10)
	src := models.Blob{Name: "clip.mp4", Data: []byte("payload")}

	thumbs, err := cache.GenerateThumbnails(context.Background(), item, src)
	require.NoError(t, err)
	require.Len(t, thumbs, 5)
	assert.Equal(t, 5, dec.calls)

	// every exact requested position is resolvable afterwards
	for _, want := range []float64{0, 2.5, 5, 7.5, 9.9} {
		data, ok := cache.GetThumbnailForTime(item.ID, want)
		require.True(t, ok, "position %v", want)
		assert.Equal(t, item.ID, data.MediaID)
		assert.NotEmpty(t, data.URL)
	}

	_, ok := cache.GetThumbnailForTime(item.ID, 3.33)
	assert.False(t, ok, "lookup never triggers generation")
}

func TestGenerateReusesExactHits(t *testing.T) {
	dec := &stubDecoder{}
	cache := newCache(t, dec, newMemAdapter(), Config{})

	item := videoItem(10)
	src := models.Blob{Data: []byte("payload")}

	_, err := cache.GenerateThumbnails(context.Background(), item, src)
	require.NoError(t, err)
	require.Equal(t, 5, dec.calls)

	thumbs, err := cache.GenerateThumbnails(context.Background(), item, src)
	require.NoError(t, err)
	assert.Len(t, thumbs, 5)
	assert.Equal(t, 5, dec.calls, "second batch is served from cache")
}

// Positions half a second apart share one rendered frame.
func TestGenerateReusesNearbyFrame(t *testing.T) {
	dec := &stubDecoder{}
	cache := newCache(t, dec, newMemAdapter(), Config{})

	item := videoItem(0.6) // positions 0 and 0.5
	src := models.Blob{Data: []byte("payload")}

	thumbs, err := cache.GenerateThumbnails(context.Background(), item, src)
	require.NoError(t, err)
	require.Len(t, thumbs, 2)
	assert.Equal(t, 1, dec.calls)

	assert.Equal(t, thumbs[0].URL, thumbs[1].URL)
	assert.InDelta(t, 0.5, thumbs[1].Position, 1e-9)
}

func TestGenerateSkipsFailedFrame(t *testing.T) {
	dec := &stubDecoder{failAt: 5}
	cache := newCache(t, dec, newMemAdapter(), Config{})

	item := videoItem(10)
	src := models.Blob{Data: []byte("payload")}

	thumbs, err := cache.GenerateThumbnails(context.Background(), item, src)
	require.NoError(t, err)
	assert.Len(t, thumbs, 4, "failed position is skipped, batch continues")

	_, ok := cache.GetThumbnailForTime(item.ID, 5)
	assert.False(t, ok)
}

func TestEvictionDropsColdestGlobally(t *testing.T) {
	dec := &stubDecoder{}
	cache := newCache(t, dec, newMemAdapter(), Config{MaxCacheSize: 4})

	item := videoItem(10) // 5 positions against a ceiling of 4
	src := models.Blob{Data: []byte("payload")}

	_, err := cache.GenerateThumbnails(context.Background(), item, src)
	require.NoError(t, err)

	assert.LessOrEqual(t, cache.Size(), 4)

	// the first rendered position is the coldest one
	_, ok := cache.GetThumbnailForTime(item.ID, 0)
	assert.False(t, ok, "coldest entry was evicted")

	_, ok = cache.GetThumbnailForTime(item.ID, 9.9)
	assert.True(t, ok)
}

func TestSweepExpiresOldEntries(t *testing.T) {
	dec := &stubDecoder{}
	store := newMemAdapter()
	cache := newCache(t, dec, store, Config{MaxAge: time.Nanosecond})

	item := videoItem(10)
	src := models.Blob{Data: []byte("payload")}

	_, err := cache.GenerateThumbnails(context.Background(), item, src)
	require.NoError(t, err)
	require.NotZero(t, cache.Size())

	time.Sleep(time.Millisecond)

	require.NoError(t, cache.Sweep(context.Background()))

	assert.Zero(t, cache.Size())
	assert.Empty(t, store.items, "persistent tier swept too")
}

func TestClearMedia(t *testing.T) {
	dec := &stubDecoder{}
	store := newMemAdapter()
	cache := newCache(t, dec, store, Config{})

	src := models.Blob{Data: []byte("payload")}

	first := videoItem(10)
	second := videoItem(10)
	second.ID = "m-2"

	_, err := cache.GenerateThumbnails(context.Background(), first, src)
	require.NoError(t, err)
	_, err = cache.GenerateThumbnails(context.Background(), second, src)
	require.NoError(t, err)

	require.NoError(t, cache.Clear(context.Background(), first.ID))

	_, ok := cache.GetThumbnailForTime(first.ID, 0)
	assert.False(t, ok)
	_, ok = cache.GetThumbnailForTime(second.ID, 0)
	assert.True(t, ok, "other media untouched")
}

func TestInitRestoresFromStore(t *testing.T) {
	dec := &stubDecoder{}
	store := newMemAdapter()

	warm := newCache(t, dec, store, Config{})
	item := videoItem(10)
	_, err := warm.GenerateThumbnails(context.Background(), item, models.Blob{Data: []byte("payload")})
	require.NoError(t, err)

	cold := newCache(t, &stubDecoder{}, store, Config{})
	require.NoError(t, cold.Init(context.Background()))
	defer cold.Dispose()

	assert.Equal(t, warm.Size(), cold.Size())

	data, ok := cold.GetThumbnailForTime(item.ID, 2.5)
	require.True(t, ok)
	assert.NotEmpty(t, data.URL, "handle regenerated on restore")
}

func TestDisposeReleasesHandles(t *testing.T) {
	dec := &stubDecoder{}
	store := newMemAdapter()

	urls := memurl.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := New(log, dec, store, urls, Config{})

	item := videoItem(10)
	_, err := cache.GenerateThumbnails(context.Background(), item, models.Blob{Data: []byte("payload")})
	require.NoError(t, err)
	require.NotZero(t, urls.Len())

	cache.Dispose()

	assert.Zero(t, cache.Size())
	assert.Zero(t, urls.Len())
	assert.NotEmpty(t, store.items, "persistent tier survives dispose")
}

func TestMonitorRecommendation(t *testing.T) {
	testCases := []struct {
		desc    string
		prime   func(m *Monitor)
		current Quality
		want    Quality
	}{
		{
			desc:    "no samples keeps tier",
			prime:   func(m *Monitor) {},
			current: QualityMedium,
			want:    QualityMedium,
		},
		{
			desc: "slow generation steps down",
			prime: func(m *Monitor) {
				m.RecordGeneration(2 * time.Second)
			},
			current: QualityHigh,
			want:    QualityMedium,
		},
		{
			desc: "slow generation bottoms out at low",
			prime: func(m *Monitor) {
				m.RecordGeneration(2 * time.Second)
			},
			current: QualityLow,
			want:    QualityLow,
		},
		{
			desc: "fast generation with warm cache steps up",
			prime: func(m *Monitor) {
				m.RecordGeneration(10 * time.Millisecond)
				for i := 0; i < 9; i++ {
					m.RecordHit()
				}
				m.RecordMiss()
			},
			current: QualityMedium,
			want:    QualityHigh,
		},
		{
			desc: "fast generation with cold cache keeps tier",
			prime: func(m *Monitor) {
				m.RecordGeneration(10 * time.Millisecond)
				m.RecordHit()
				m.RecordMiss()
			},
			current: QualityMedium,
			want:    QualityMedium,
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			m := NewMonitor()
			tC.prime(m)
			assert.Equal(t, tC.want, m.Recommend(tC.current))
		})
	}
}

func TestPresetFor(t *testing.T) {
	assert.Equal(t, presets[QualityLow], PresetFor(QualityLow))
	assert.Equal(t, presets[QualityMedium], PresetFor(Quality("bogus")))
}
