package metrics

import (
	"math"
	"time"
)

// StageMetrics is the aggregated timing document for one pipeline stage.
type StageMetrics struct {
	Stage          string      `json:"stage"`
	LastUpdatedUTC time.Time   `json:"last_updated_utc"`
	Errors         int64       `json:"errors"`
	Millis         RunningStat `json:"elapsed_ms"`
}

// Snapshot is the persisted form of an Aggregator.
type Snapshot struct {
	Runs   int64          `json:"runs"`
	Cached int64          `json:"cached"`
	Stages []StageMetrics `json:"stages"`
}

// RunningStat holds the necessary values for online calculation of mean, variance, and stddev.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"-"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Add updates the statistic using Welford's online algorithm.
func (rs *RunningStat) Add(value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}

// StdDev returns the sample standard deviation, or 0 with fewer than two values.
func (rs RunningStat) StdDev() float64 {
	if rs.Count < 2 {
		return 0
	}
	return math.Sqrt(rs.M2 / float64(rs.Count-1))
}
