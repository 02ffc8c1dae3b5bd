package models

import "time"

// Trend is the categorical direction label attached to a price snapshot.
type Trend string

const (
	TrendRise    Trend = "RISE"
	TrendFall    Trend = "FALL"
	TrendNeutral Trend = "NEUTRAL"
)

// Valid reports whether t is one of the three known trend labels.
func (t Trend) Valid() bool {
	return t == TrendRise || t == TrendFall || t == TrendNeutral
}

// Feature is a single market driver attached to a snapshot.
type Feature struct {
	Name      string `json:"name" firestore:"name"`
	Impact    string `json:"impact" firestore:"impact"`       // High, Medium, Low
	Sentiment string `json:"sentiment" firestore:"sentiment"` // Positive, Negative, Neutral
}

// PriceRecord is one stored market snapshot. Records are append-only:
// created once per successful refresh cycle, never mutated or deleted.
type PriceRecord struct {
	ID                 string    `json:"id,omitempty" firestore:"-"`
	Timestamp          time.Time `json:"timestamp" firestore:"timestamp"`
	Price              float64   `json:"price" firestore:"price"`
	Unit               string    `json:"unit" firestore:"unit"` // price per unit, default "kg"
	Trend              Trend     `json:"trend" firestore:"trend"`
	PriceChange        float64   `json:"priceChange" firestore:"priceChange"`
	Analysis           string    `json:"analysis" firestore:"analysis"`
	Recommendations    []string  `json:"recommendations" firestore:"recommendations"`
	Features           []Feature `json:"features" firestore:"features"`
	NextWeekProjection float64   `json:"nextWeekProjection" firestore:"nextWeekProjection"`
	Confidence         int       `json:"confidence" firestore:"confidence"`
}

// SnapshotResponse is the assembled answer for the latest-snapshot endpoint:
// the sanitized snapshot plus chart-ready daily and monthly series.
type SnapshotResponse struct {
	Price              float64   `json:"price"`
	Unit               string    `json:"unit"`
	Trend              Trend     `json:"trend"`
	PriceChange        float64   `json:"priceChange"`
	Analysis           string    `json:"analysis"`
	Recommendations    []string  `json:"recommendations"`
	Features           []Feature `json:"features"`
	NextWeekProjection float64   `json:"nextWeekProjection"`
	Confidence         int       `json:"confidence"`
	UpdatedAt          time.Time `json:"updatedAt"`
	DailyHistory       []float64 `json:"dailyHistory"`
	DailyLabels        []string  `json:"dailyLabels"`
	MonthlyHistory     []float64 `json:"monthlyHistory"`
	MonthlyLabels      []string  `json:"monthlyLabels"`
	Stale              bool      `json:"stale,omitempty"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
