package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ndanilov/cutroom/internal/lib/frame"
	"github.com/ndanilov/cutroom/internal/lib/logger/sl"
	"github.com/ndanilov/cutroom/internal/lib/memurl"
	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/storage"
)

// Config carries the cache tuning knobs. Tolerance and the
// eviction fraction are heuristic values, kept configurable on
// purpose.
type Config struct {
	Quality         Quality
	MaxCacheSize    int
	EvictFraction   float64
	ReuseTolerance  float64
	MaxAge          time.Duration
	SweepInterval   time.Duration
	GenerationDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.Quality == "" {
		c.Quality = QualityMedium
	}
	if c.MaxCacheSize <= 0 {
		c.MaxCacheSize = 100
	}
	if c.EvictFraction <= 0 {
		c.EvictFraction = 0.25
	}
	if c.ReuseTolerance <= 0 {
		c.ReuseTolerance = 0.5
	}
	if c.MaxAge <= 0 {
		c.MaxAge = time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Minute
	}
	if c.GenerationDelay < 0 {
		c.GenerationDelay = 0
	}
}

type entry struct {
	data  models.ThumbnailData
	image []byte
}

// Cache is the two-tier thumbnail cache: a hot in-memory map
// keyed by media id and position, mirrored into a persistent
// adapter so thumbnails survive restarts. Image bytes are
// exposed through ephemeral memurl handles.
type Cache struct {
	log     *slog.Logger
	dec     frame.Decoder
	store   storage.Adapter[models.StoredThumbnail]
	urls    *memurl.Registry
	cfg     Config
	monitor *Monitor
	cron    *cron.Cron

	mu   sync.Mutex
	mem  map[string]map[string]*entry
	size int
}

func New(
	log *slog.Logger,
	dec frame.Decoder,
	store storage.Adapter[models.StoredThumbnail],
	urls *memurl.Registry,
	cfg Config,
) *Cache {
	cfg.setDefaults()

	return &Cache{
		log:     log,
		dec:     dec,
		store:   store,
		urls:    urls,
		cfg:     cfg,
		monitor: NewMonitor(),
		cron:    cron.New(),
		mem:     make(map[string]map[string]*entry),
	}
}

// Monitor exposes the performance monitor for advisory quality
// recommendations.
func (c *Cache) Monitor() *Monitor {
	return c.monitor
}

// Quality returns the active quality tier.
func (c *Cache) Quality() Quality {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cfg.Quality
}

// SetQuality switches the active quality tier. Existing cache
// entries are kept.
func (c *Cache) SetQuality(q Quality) {
	c.mu.Lock()
	c.cfg.Quality = q
	c.mu.Unlock()
}

// Init repopulates the in-memory tier from the persistent store
// and starts the periodic expiry sweep.
func (c *Cache) Init(ctx context.Context) error {
	const op = "ThumbnailCache.Init"

	log := c.log.With(slog.String("op", op))

	keys, err := c.store.Keys(ctx)
	if err != nil {
		log.Error("failed to list stored thumbnails", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	restored := 0
	for _, key := range keys {
		stored, ok, err := c.store.Get(ctx, key)
		if err != nil {
			log.Error("failed to load stored thumbnail", slog.String("key", key), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			continue
		}

		data := models.ThumbnailData{
			MediaID:      stored.MediaID,
			Position:     stored.Position,
			Width:        stored.Width,
			Height:       stored.Height,
			CreatedAt:    stored.CreatedAt,
			LastAccessed: stored.LastAccessed,
			URL:          c.urls.Create(c.imageBlob(key, stored.Image)),
		}

		c.mu.Lock()
		c.put(stored.MediaID, models.ThumbnailKey(stored.MediaID, stored.Position), &entry{
			data:  data,
			image: stored.Image,
		})
		c.mu.Unlock()

		restored++
	}

	if _, err := c.cron.AddFunc("@every "+c.cfg.SweepInterval.String(), func() {
		if err := c.Sweep(context.Background()); err != nil {
			log.Error("expiry sweep failed", sl.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.cron.Start()

	log.Info("thumbnail cache initialized", slog.Int("restored", restored))

	return nil
}

// Dispose stops the sweep and releases all in-memory handles.
// The persistent tier is left intact.
func (c *Cache) Dispose() {
	const op = "ThumbnailCache.Dispose"

	<-c.cron.Stop().Done()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, positions := range c.mem {
		for _, e := range positions {
			c.urls.Revoke(e.data.URL)
		}
	}
	c.mem = make(map[string]map[string]*entry)
	c.size = 0

	c.log.With(slog.String("op", op)).Info("thumbnail cache disposed")
}

// GenerateThumbnails populates the cache for a media item:
// positions are spread evenly across the duration, exact and
// near hits are reused, the rest is rendered sequentially with
// a small delay between frames. A single failed frame is
// skipped, the batch continues.
func (c *Cache) GenerateThumbnails(ctx context.Context, item models.MediaItem, src models.Blob) ([]models.ThumbnailData, error) {
	const op = "ThumbnailCache.GenerateThumbnails"

	log := c.log.With(
		slog.String("op", op),
		slog.String("mediaID", item.ID),
	)

	preset := PresetFor(c.Quality())
	width, height := adaptedSize(item.Width, item.Height, preset.Width, preset.Height)

	targets := positions(item.Duration, preset.Interval, preset.MaxCount)

	log.Info("generating thumbnails",
		slog.Int("positions", len(targets)),
		slog.Int("width", width),
		slog.Int("height", height),
	)

	out := make([]models.ThumbnailData, 0, len(targets))
	generated := false

	for _, pos := range targets {
		key := models.ThumbnailKey(item.ID, pos)

		if data, ok := c.lookup(item.ID, key); ok {
			c.monitor.RecordHit()
			out = append(out, data)
			continue
		}

		if data, ok := c.reuseNearest(ctx, item.ID, pos, key); ok {
			c.monitor.RecordHit()
			out = append(out, data)
			continue
		}

		c.monitor.RecordMiss()

		// spread decode calls out in time
		if generated && c.cfg.GenerationDelay > 0 {
			select {
			case <-time.After(c.cfg.GenerationDelay):
			case <-ctx.Done():
				return out, fmt.Errorf("%s: %w", op, ctx.Err())
			}
		}

		start := time.Now()
		image, err := c.dec.DecodeFrame(ctx, src, pos, width, height)
		c.monitor.RecordGeneration(time.Since(start))
		generated = true

		if err != nil {
			log.Warn("failed to decode frame, skipping position",
				slog.Float64("position", pos),
				sl.Err(err),
			)
			continue
		}

		now := time.Now()
		data := models.ThumbnailData{
			MediaID:      item.ID,
			Position:     pos,
			URL:          c.urls.Create(c.imageBlob(key, image)),
			Width:        width,
			Height:       height,
			CreatedAt:    now,
			LastAccessed: now,
		}

		if err := c.insert(ctx, key, data, image); err != nil {
			return out, fmt.Errorf("%s: %w", op, err)
		}

		out = append(out, data)
	}

	log.Info("generated thumbnails", slog.Int("count", len(out)))

	return out, nil
}

// GetThumbnailForTime is a pure lookup against the in-memory
// tier. It never triggers generation.
func (c *Cache) GetThumbnailForTime(mediaID string, position float64) (models.ThumbnailData, bool) {
	return c.lookup(mediaID, models.ThumbnailKey(mediaID, position))
}

// Clear drops every cached thumbnail of a media item from both
// tiers.
func (c *Cache) Clear(ctx context.Context, mediaID string) error {
	const op = "ThumbnailCache.Clear"

	log := c.log.With(
		slog.String("op", op),
		slog.String("mediaID", mediaID),
	)

	c.mu.Lock()
	positions := c.mem[mediaID]
	delete(c.mem, mediaID)
	c.size -= len(positions)
	c.mu.Unlock()

	for key, e := range positions {
		c.urls.Revoke(e.data.URL)
		if err := c.store.Remove(ctx, key); err != nil {
			log.Error("failed to remove stored thumbnail", slog.String("key", key), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("cleared media thumbnails", slog.Int("count", len(positions)))

	return nil
}

// Sweep removes entries older than the configured max age from
// both tiers, regardless of access pattern.
func (c *Cache) Sweep(ctx context.Context) error {
	const op = "ThumbnailCache.Sweep"

	log := c.log.With(slog.String("op", op))

	cutoff := time.Now().Add(-c.cfg.MaxAge)

	c.mu.Lock()
	var expired []string
	for mediaID, positions := range c.mem {
		for key, e := range positions {
			if e.data.CreatedAt.Before(cutoff) {
				c.urls.Revoke(e.data.URL)
				delete(positions, key)
				c.size--
				expired = append(expired, key)
			}
		}
		if len(positions) == 0 {
			delete(c.mem, mediaID)
		}
	}
	c.mu.Unlock()

	for _, key := range expired {
		if err := c.store.Remove(ctx, key); err != nil {
			log.Error("failed to remove expired thumbnail", slog.String("key", key), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if len(expired) > 0 {
		log.Info("swept expired thumbnails", slog.Int("count", len(expired)))
	}

	return nil
}

// Size reports the number of entries in the in-memory tier.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

func (c *Cache) lookup(mediaID, key string) (models.ThumbnailData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.mem[mediaID][key]
	if !ok {
		return models.ThumbnailData{}, false
	}

	e.data.LastAccessed = time.Now()

	return e.data, true
}

// reuseNearest looks for a cached position of the same media
// within the tolerance and republishes its image under the new
// key. A frame half a second away is indistinguishable at
// thumbnail size.
func (c *Cache) reuseNearest(ctx context.Context, mediaID string, pos float64, key string) (models.ThumbnailData, bool) {
	c.mu.Lock()

	var (
		nearest *entry
		bestGap = c.cfg.ReuseTolerance
	)
	for _, e := range c.mem[mediaID] {
		if gap := math.Abs(e.data.Position - pos); gap <= bestGap {
			nearest = e
			bestGap = gap
		}
	}

	if nearest == nil {
		c.mu.Unlock()
		return models.ThumbnailData{}, false
	}

	now := time.Now()
	nearest.data.LastAccessed = now

	data := nearest.data
	data.Position = pos
	data.CreatedAt = now
	data.LastAccessed = now
	image := nearest.image

	c.mu.Unlock()

	if err := c.insert(ctx, key, data, image); err != nil {
		c.log.Warn("failed to cache reused thumbnail", slog.String("key", key), sl.Err(err))
		return models.ThumbnailData{}, false
	}

	return data, true
}

// insert places an entry into both tiers, evicting the coldest
// fraction first when the ceiling is reached.
func (c *Cache) insert(ctx context.Context, key string, data models.ThumbnailData, image []byte) error {
	c.mu.Lock()
	var evicted []string
	if c.size >= c.cfg.MaxCacheSize {
		evicted = c.evictLocked()
	}
	c.put(data.MediaID, key, &entry{data: data, image: image})
	c.mu.Unlock()

	for _, evictedKey := range evicted {
		if err := c.store.Remove(ctx, evictedKey); err != nil {
			c.log.Warn("failed to remove evicted thumbnail", slog.String("key", evictedKey), sl.Err(err))
		}
	}

	stored := models.StoredThumbnail{
		MediaID:      data.MediaID,
		Position:     data.Position,
		Image:        image,
		Width:        data.Width,
		Height:       data.Height,
		CreatedAt:    data.CreatedAt,
		LastAccessed: data.LastAccessed,
	}

	if err := c.store.Set(ctx, key, stored); err != nil {
		return err
	}

	return nil
}

// put assumes c.mu is held.
func (c *Cache) put(mediaID, key string, e *entry) {
	positions, ok := c.mem[mediaID]
	if !ok {
		positions = make(map[string]*entry)
		c.mem[mediaID] = positions
	}
	if _, exists := positions[key]; !exists {
		c.size++
	}
	positions[key] = e
}

// evictLocked drops the least recently accessed fraction of the
// whole cache, across all media. Assumes c.mu is held. Returns
// the evicted keys for persistent-tier cleanup.
func (c *Cache) evictLocked() []string {
	type victim struct {
		mediaID      string
		key          string
		url          string
		lastAccessed time.Time
	}

	all := make([]victim, 0, c.size)
	for mediaID, positions := range c.mem {
		for key, e := range positions {
			all = append(all, victim{
				mediaID:      mediaID,
				key:          key,
				url:          e.data.URL,
				lastAccessed: e.data.LastAccessed,
			})
		}
	}

	slices.SortFunc(all, func(a, b victim) int {
		return a.lastAccessed.Compare(b.lastAccessed)
	})

	n := int(math.Ceil(c.cfg.EvictFraction * float64(len(all))))
	if n > len(all) {
		n = len(all)
	}

	keys := make([]string, 0, n)
	for _, v := range all[:n] {
		c.urls.Revoke(v.url)
		delete(c.mem[v.mediaID], v.key)
		if len(c.mem[v.mediaID]) == 0 {
			delete(c.mem, v.mediaID)
		}
		c.size--
		keys = append(keys, v.key)
	}

	c.log.Info("evicted cold thumbnails", slog.Int("count", n), slog.Int("size", c.size))

	return keys
}

func (c *Cache) imageBlob(key string, image []byte) models.Blob {
	return models.Blob{
		Name:    key + ".jpg",
		MIME:    "image/jpeg",
		ModTime: time.Now(),
		Data:    image,
	}
}

// positions spreads thumbnail target times evenly across the
// duration. The last position backs off the very end of the
// stream, where a frame often cannot be decoded.
func positions(duration, interval float64, maxCount int) []float64 {
	if duration <= 0 {
		return []float64{0}
	}

	count := int(math.Ceil(duration / interval))
	if count < 2 {
		count = 2
	}
	if count > maxCount {
		count = maxCount
	}

	out := make([]float64, count)
	for i := range out {
		out[i] = duration * float64(i) / float64(count-1)
	}

	if last := duration - 0.1; out[count-1] > last {
		out[count-1] = math.Max(last, 0)
	}

	return out
}
