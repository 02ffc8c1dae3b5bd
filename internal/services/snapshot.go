package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"agripulse-api/internal/forecast"
	"agripulse-api/internal/models"
	"agripulse-api/internal/sanitize"
	"agripulse-api/internal/series"
	"agripulse-api/internal/store"
)

const (
	// historyDepth bounds how many records feed the chart series.
	historyDepth = 500
	// maxHistoryLimit caps the raw history endpoint.
	maxHistoryLimit = 365

	defaultUnit       = "kg"
	defaultConfidence = 70
)

var (
	// ErrNoData means no record has ever been stored and a refresh was not
	// possible. It is the only condition surfaced to callers as a hard error.
	ErrNoData = errors.New("no market data available")

	// ErrProviderUnconfigured means the forecast endpoint or credential is
	// missing.
	ErrProviderUnconfigured = errors.New("forecast provider not configured")
)

// Provider is the external forecast source.
type Provider interface {
	Configured() bool
	Fetch(ctx context.Context) (*forecast.Payload, error)
}

// Snapshot coordinates the latest-snapshot pipeline: staleness check, provider
// refresh, persistence, and series assembly, with a stale fallback on any
// refresh failure.
type Snapshot struct {
	store    store.Store
	provider Provider
	window   time.Duration
	log      *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

func NewSnapshot(st store.Store, provider Provider, window time.Duration, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Snapshot{
		store:    st,
		provider: provider,
		window:   window,
		log:      logger,
		now:      time.Now,
	}
}

// Latest returns the current market snapshot with daily and monthly series.
// A stored record newer than the cache window is served as-is; otherwise a
// refresh is attempted, falling back to the last known record marked stale.
func (s *Snapshot) Latest(ctx context.Context, force bool) (*models.SnapshotResponse, error) {
	latest, err := s.store.Latest(ctx)
	if err != nil {
		// A read failure is not fatal yet: the refresh path may still
		// produce a snapshot.
		s.log.Warn("latest record read failed", "err", err)
		latest = nil
	}

	if latest != nil && !force && s.fresh(latest) {
		history, err := s.ascendingHistory(ctx)
		if err != nil {
			s.log.Warn("history read failed, serving snapshot without stored series", "err", err)
		}
		return s.respond(latest, history, false), nil
	}

	// Concurrent stale observers share one refresh per process.
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx, latest)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SnapshotResponse), nil
}

// History returns up to limit stored records ascending by time. Pure storage
// passthrough, no caching.
func (s *Snapshot) History(ctx context.Context, limit int) ([]models.PriceRecord, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	recs, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	reverse(recs)
	return recs, nil
}

func (s *Snapshot) fresh(rec *models.PriceRecord) bool {
	cutoff := s.now().Add(-s.window)
	return rec.Timestamp.After(cutoff)
}

func (s *Snapshot) refresh(ctx context.Context, latest *models.PriceRecord) (*models.SnapshotResponse, error) {
	if !s.provider.Configured() {
		return s.fallback(ctx, latest, ErrProviderUnconfigured)
	}

	payload, err := s.provider.Fetch(ctx)
	if err != nil {
		s.log.Warn("forecast fetch failed", "err", err)
		return s.fallback(ctx, latest, err)
	}

	rec := s.derive(payload, latest)
	if _, err := s.store.Insert(ctx, rec); err != nil {
		s.log.Error("snapshot insert failed", "err", err)
		return s.fallback(ctx, latest, err)
	}
	s.log.Info("snapshot refreshed",
		"price", rec.Price, "trend", rec.Trend, "priceChange", rec.PriceChange)

	history, err := s.ascendingHistory(ctx)
	if err != nil {
		s.log.Warn("history read after refresh failed", "err", err)
	}
	return s.respond(rec, history, false), nil
}

// derive reconciles the provider payload with the previous record. Every
// missing or invalid field takes its documented default; nothing from the
// payload reaches a record unvalidated.
func (s *Snapshot) derive(payload *forecast.Payload, prev *models.PriceRecord) *models.PriceRecord {
	prevPrice := 0.0
	if prev != nil {
		prevPrice = prev.Price
	}

	nextPrice := prevPrice
	if v, ok := finite(payload.Price); ok && v > 0 {
		nextPrice = v
	}

	computedChange := 0.0
	if prevPrice > 0 {
		computedChange = series.Round2((nextPrice - prevPrice) / prevPrice * 100)
	}
	priceChange := computedChange
	if v, ok := finite(payload.PriceChange); ok {
		priceChange = series.Round2(v)
	}

	trend := models.Trend(strings.ToUpper(strings.TrimSpace(payload.Trend)))
	if !trend.Valid() {
		switch {
		case priceChange > 0:
			trend = models.TrendRise
		case priceChange < 0:
			trend = models.TrendFall
		default:
			trend = models.TrendNeutral
		}
	}

	projection := nextPrice * (1 + priceChange/100)
	if v, ok := finite(payload.NextWeekProjection); ok {
		projection = v
	}

	confidence := defaultConfidence
	if v, ok := finite(payload.Confidence); ok {
		confidence = int(math.Min(100, math.Max(0, v)))
	}

	return &models.PriceRecord{
		Timestamp:          s.now(),
		Price:              nextPrice,
		Unit:               defaultUnit,
		Trend:              trend,
		PriceChange:        priceChange,
		Analysis:           sanitize.Text(payload.Analysis, sanitize.MaxAnalysisLen),
		Recommendations:    sanitize.Recommendations(payload.Recommendations),
		Features:           sanitize.Features(payload.Features),
		NextWeekProjection: projection,
		Confidence:         confidence,
	}
}

// fallback serves the last known record marked stale. Only when nothing was
// ever stored does the original cause surface as a hard error.
func (s *Snapshot) fallback(ctx context.Context, latest *models.PriceRecord, cause error) (*models.SnapshotResponse, error) {
	if latest == nil {
		return nil, fmt.Errorf("%w (refresh failed: %v)", ErrNoData, cause)
	}
	history, err := s.ascendingHistory(ctx)
	if err != nil {
		s.log.Warn("history read during fallback failed", "err", err)
	}
	return s.respond(latest, history, true), nil
}

func (s *Snapshot) respond(rec *models.PriceRecord, history []models.PriceRecord, stale bool) *models.SnapshotResponse {
	snap := sanitize.Snapshot(*rec)
	unit := snap.Unit
	if unit == "" {
		unit = defaultUnit
	}

	points := make([]series.Point, 0, len(history))
	for _, h := range history {
		points = append(points, series.Point{Time: h.Timestamp, Price: h.Price})
	}
	dailyLabels, dailyValues := series.Daily(points, snap.Price)
	monthlyLabels, monthlyValues := series.Monthly(points, snap.Price)

	return &models.SnapshotResponse{
		Price:              snap.Price,
		Unit:               unit,
		Trend:              snap.Trend,
		PriceChange:        snap.PriceChange,
		Analysis:           snap.Analysis,
		Recommendations:    snap.Recommendations,
		Features:           snap.Features,
		NextWeekProjection: snap.NextWeekProjection,
		Confidence:         snap.Confidence,
		UpdatedAt:          snap.Timestamp,
		DailyHistory:       dailyValues,
		DailyLabels:        dailyLabels,
		MonthlyHistory:     monthlyValues,
		MonthlyLabels:      monthlyLabels,
		Stale:              stale,
	}
}

// ascendingHistory loads the most recent records and reverses them; the store
// only guarantees descending order.
func (s *Snapshot) ascendingHistory(ctx context.Context) ([]models.PriceRecord, error) {
	recs, err := s.store.Recent(ctx, historyDepth)
	if err != nil {
		return nil, err
	}
	reverse(recs)
	return recs, nil
}

func reverse(recs []models.PriceRecord) {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
