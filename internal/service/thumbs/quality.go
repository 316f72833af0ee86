package service

import (
	"math"
	"sync"
	"time"
)

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Preset fixes the generation parameters of a quality tier.
type Preset struct {
	Width    int
	Height   int
	Interval float64
	MaxCount int
}

var presets = map[Quality]Preset{
	QualityLow:    {Width: 120, Height: 68, Interval: 4, MaxCount: 10},
	QualityMedium: {Width: 160, Height: 90, Interval: 2, MaxCount: 20},
	QualityHigh:   {Width: 240, Height: 135, Interval: 1, MaxCount: 40},
}

// PresetFor returns the preset of a quality tier, falling back
// to medium for unknown tiers.
func PresetFor(q Quality) Preset {
	if p, ok := presets[q]; ok {
		return p
	}
	return presets[QualityMedium]
}

// adaptedSize adjusts the target thumbnail dimensions to the
// source aspect ratio so portrait and ultra-wide sources do not
// render as mostly letterbox. Pure function of its inputs.
func adaptedSize(srcWidth, srcHeight, defWidth, defHeight int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return defWidth, defHeight
	}

	aspect := float64(srcWidth) / float64(srcHeight)

	switch {
	case aspect < 1: // portrait
		return int(math.Round(float64(defHeight) * aspect)), defHeight
	case aspect > 2: // ultra-wide
		return defWidth, int(math.Round(float64(defWidth) / aspect))
	default:
		return defWidth, defHeight
	}
}

const (
	monitorWindow = 50

	slowGeneration = 500 * time.Millisecond
	fastGeneration = 100 * time.Millisecond
	goodHitRate    = 0.8
)

// Monitor aggregates recent generation timings and hit/miss
// counts and recommends a quality tier. The recommendation is
// advisory, it is never applied automatically.
type Monitor struct {
	mu       sync.Mutex
	genTimes []time.Duration
	hits     int
	misses   int
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) RecordHit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *Monitor) RecordMiss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}

func (m *Monitor) RecordGeneration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.genTimes = append(m.genTimes, d)
	if len(m.genTimes) > monitorWindow {
		m.genTimes = m.genTimes[len(m.genTimes)-monitorWindow:]
	}
}

// Stats returns the average generation time over the recent
// window and the overall hit rate.
func (m *Monitor) Stats() (avgGen time.Duration, hitRate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.genTimes) > 0 {
		var total time.Duration
		for _, d := range m.genTimes {
			total += d
		}
		avgGen = total / time.Duration(len(m.genTimes))
	}

	if lookups := m.hits + m.misses; lookups > 0 {
		hitRate = float64(m.hits) / float64(lookups)
	}

	return avgGen, hitRate
}

// Recommend suggests a quality tier relative to the current
// one: slow generation steps the tier down, consistently fast
// generation with a warm cache steps it up.
func (m *Monitor) Recommend(current Quality) Quality {
	avgGen, hitRate := m.Stats()

	if avgGen == 0 {
		return current
	}

	switch {
	case avgGen > slowGeneration:
		return stepDown(current)
	case avgGen < fastGeneration && hitRate > goodHitRate:
		return stepUp(current)
	default:
		return current
	}
}

func stepDown(q Quality) Quality {
	switch q {
	case QualityHigh:
		return QualityMedium
	case QualityMedium:
		return QualityLow
	default:
		return QualityLow
	}
}

func stepUp(q Quality) Quality {
	switch q {
	case QualityLow:
		return QualityMedium
	case QualityMedium:
		return QualityHigh
	default:
		return QualityHigh
	}
}
