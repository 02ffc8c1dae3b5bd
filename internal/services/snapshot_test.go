package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agripulse-api/internal/forecast"
	"agripulse-api/internal/models"
	"agripulse-api/internal/store"
)

type fakeProvider struct {
	unconfigured bool
	payload      *forecast.Payload
	err          error
	calls        atomic.Int32
	started      chan struct{}
	release      chan struct{}
}

func (p *fakeProvider) Configured() bool { return !p.unconfigured }

func (p *fakeProvider) Fetch(ctx context.Context) (*forecast.Payload, error) {
	p.calls.Add(1)
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.payload, nil
}

type failingInsertStore struct {
	store.Store
}

func (f *failingInsertStore) Insert(ctx context.Context, rec *models.PriceRecord) (string, error) {
	return "", store.ErrStorage
}

func f64(v float64) *float64 { return &v }

func seed(t *testing.T, st store.Store, ts time.Time, price float64) {
	t.Helper()
	_, err := st.Insert(context.Background(), &models.PriceRecord{
		Timestamp:   ts,
		Price:       price,
		Unit:        "kg",
		Trend:       models.TrendNeutral,
		PriceChange: 0.5,
		Analysis:    "quiet week",
	})
	require.NoError(t, err)
}

func TestLatest_FreshCacheSkipsProvider(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, time.Now().Add(-1*time.Hour), 95.5)
	provider := &fakeProvider{payload: &forecast.Payload{Price: f64(200)}}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	resp, err := svc.Latest(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 95.5, resp.Price)
	require.Equal(t, models.TrendNeutral, resp.Trend)
	require.Equal(t, 0.5, resp.PriceChange)
	require.False(t, resp.Stale)
	require.Len(t, resp.DailyHistory, 7)
	require.Len(t, resp.DailyLabels, 7)
	require.Len(t, resp.MonthlyHistory, 12)
	require.EqualValues(t, 0, provider.calls.Load(), "fresh cache must not call the provider")
}

func TestLatest_ExpiredWindowRefreshes(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, time.Now().Add(-30*time.Hour), 100)
	provider := &fakeProvider{payload: &forecast.Payload{Price: f64(105)}}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	resp, err := svc.Latest(context.Background(), false)
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.calls.Load())
	require.Equal(t, 105.0, resp.Price)
	require.False(t, resp.Stale)

	recs, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 2, "refresh must persist a new record")
}

func TestLatest_DerivesChangeAndTrend(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, time.Now().Add(-30*time.Hour), 100)
	// provider omits priceChange and trend
	provider := &fakeProvider{payload: &forecast.Payload{Price: f64(105)}}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	resp, err := svc.Latest(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 5.0, resp.PriceChange)
	require.Equal(t, models.TrendRise, resp.Trend)
	require.Equal(t, 105.0*1.05, resp.NextWeekProjection)
	require.Equal(t, 70, resp.Confidence)
}

func TestLatest_ProviderValuesWinWhenValid(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, time.Now().Add(-30*time.Hour), 100)
	provider := &fakeProvider{payload: &forecast.Payload{
		Price:              f64(98),
		Trend:              "rise", // case-insensitive
		PriceChange:        f64(-2.004),
		NextWeekProjection: f64(97.5),
		Confidence:         f64(140), // clamped
	}}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	resp, err := svc.Latest(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 98.0, resp.Price)
	require.Equal(t, models.TrendRise, resp.Trend)
	require.Equal(t, -2.0, resp.PriceChange)
	require.Equal(t, 97.5, resp.NextWeekProjection)
	require.Equal(t, 100, resp.Confidence)
}

func TestLatest_NonPositiveProviderPriceKeepsPrevious(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, time.Now().Add(-30*time.Hour), 100)
	provider := &fakeProvider{payload: &forecast.Payload{Price: f64(-3)}}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	resp, err := svc.Latest(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 100.0, resp.Price)
	require.Equal(t, 0.0, resp.PriceChange)
	require.Equal(t, models.TrendNeutral, resp.Trend)
}

func TestLatest_ProviderErrorFallsBackStale(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, time.Now().Add(-30*time.Hour), 90)
	provider := &fakeProvider{err: context.DeadlineExceeded}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	resp, err := svc.Latest(context.Background(), false)
	require.NoError(t, err)
	require.True(t, resp.Stale)
	require.Equal(t, 90.0, resp.Price)
}

func TestLatest_InsertFailureFallsBackStale(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, time.Now().Add(-30*time.Hour), 90)
	provider := &fakeProvider{payload: &forecast.Payload{Price: f64(95)}}
	svc := NewSnapshot(&failingInsertStore{Store: mem}, provider, 24*time.Hour, nil)

	resp, err := svc.Latest(context.Background(), false)
	require.NoError(t, err)
	require.True(t, resp.Stale)
	require.Equal(t, 90.0, resp.Price)
}

func TestLatest_NoDataAndProviderErrorIsHardError(t *testing.T) {
	st := store.NewMemory()
	provider := &fakeProvider{err: errors.New("connection refused")}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	_, err := svc.Latest(context.Background(), false)
	require.ErrorIs(t, err, ErrNoData)
	require.Contains(t, err.Error(), "connection refused")
}

func TestLatest_UnconfiguredProvider(t *testing.T) {
	provider := &fakeProvider{unconfigured: true}

	t.Run("falls back when a record exists", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, time.Now().Add(-30*time.Hour), 75)
		svc := NewSnapshot(st, provider, 24*time.Hour, nil)

		resp, err := svc.Latest(context.Background(), false)
		require.NoError(t, err)
		require.True(t, resp.Stale)
		require.Equal(t, 75.0, resp.Price)
	})

	t.Run("errors when nothing was ever stored", func(t *testing.T) {
		svc := NewSnapshot(store.NewMemory(), provider, 24*time.Hour, nil)

		_, err := svc.Latest(context.Background(), false)
		require.ErrorIs(t, err, ErrNoData)
	})
}

func TestLatest_ForceRefreshBypassesFreshCache(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, time.Now().Add(-1*time.Hour), 90)
	provider := &fakeProvider{payload: &forecast.Payload{Price: f64(91)}}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	resp, err := svc.Latest(context.Background(), true)
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.calls.Load())
	require.Equal(t, 91.0, resp.Price)
}

func TestLatest_ConcurrentRefreshesCoalesce(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, time.Now().Add(-30*time.Hour), 100)
	provider := &fakeProvider{
		payload: &forecast.Payload{Price: f64(101)},
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	svc := NewSnapshot(st, provider, 24*time.Hour, nil)

	const callers = 4
	var wg sync.WaitGroup
	results := make([]*models.SnapshotResponse, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.Latest(context.Background(), false)
			require.NoError(t, err)
			results[i] = resp
		}(i)
	}

	// first fetch is in flight; give the rest a moment to join it
	<-provider.started
	time.Sleep(50 * time.Millisecond)
	close(provider.release)
	wg.Wait()

	require.EqualValues(t, 1, provider.calls.Load(), "concurrent stale observers should share one refresh")
	for _, resp := range results {
		require.Equal(t, 101.0, resp.Price)
	}
}

func TestHistory_AscendingAndCapped(t *testing.T) {
	st := store.NewMemory()
	base := time.Now().Add(-10 * 24 * time.Hour)
	for i := 0; i < 10; i++ {
		seed(t, st, base.Add(time.Duration(i)*24*time.Hour), 100+float64(i))
	}
	svc := NewSnapshot(st, &fakeProvider{}, 24*time.Hour, nil)

	recs, err := svc.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i := 1; i < len(recs); i++ {
		require.True(t, recs[i].Timestamp.After(recs[i-1].Timestamp), "history must ascend")
	}
	// limit keeps the most recent records
	require.Equal(t, 109.0, recs[len(recs)-1].Price)

	recs, err = svc.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 10)
}
