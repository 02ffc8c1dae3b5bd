// Package series reconstructs fixed-length chart series from irregular
// append-only price history.
package series

import (
	"math"
	"sort"
	"time"
)

const (
	DailyPoints   = 7
	MonthlyPoints = 12
)

// Point is one timestamped price observation. Inputs to Daily and Monthly
// must be ascending by time.
type Point struct {
	Time  time.Time
	Price float64
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type bucket struct {
	day   time.Time // truncated to the bucket boundary
	sum   float64
	count int
}

// Daily buckets points by local calendar day and returns exactly DailyPoints
// weekday-labeled averages, ascending. Missing leading days are padded with
// the earliest real day's value so the chart stays continuous; fallback is
// used only when history is empty.
func Daily(points []Point, fallback float64) (labels []string, values []float64) {
	buckets := group(points, func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	})

	if len(buckets) == 0 {
		return emptyWeek(fallback)
	}
	if len(buckets) > DailyPoints {
		buckets = buckets[len(buckets)-DailyPoints:]
	}

	labels = make([]string, 0, DailyPoints)
	values = make([]float64, 0, DailyPoints)

	first := buckets[0]
	firstValue := Round2(first.sum / float64(first.count))
	for pad := DailyPoints - len(buckets); pad > 0; pad-- {
		day := first.day.AddDate(0, 0, -pad)
		labels = append(labels, day.Format("Mon"))
		values = append(values, firstValue)
	}
	for _, b := range buckets {
		labels = append(labels, b.day.Format("Mon"))
		values = append(values, Round2(b.sum/float64(b.count)))
	}
	return labels, values
}

// Monthly is Daily's counterpart over calendar months, capped at
// MonthlyPoints entries with month short-name labels.
func Monthly(points []Point, fallback float64) (labels []string, values []float64) {
	buckets := group(points, func(t time.Time) time.Time {
		y, m, _ := t.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	})

	if len(buckets) == 0 {
		return trailingMonths(time.Now(), fallback)
	}
	if len(buckets) > MonthlyPoints {
		buckets = buckets[len(buckets)-MonthlyPoints:]
	}

	labels = make([]string, 0, MonthlyPoints)
	values = make([]float64, 0, MonthlyPoints)

	first := buckets[0]
	firstValue := Round2(first.sum / float64(first.count))
	for pad := MonthlyPoints - len(buckets); pad > 0; pad-- {
		month := first.day.AddDate(0, -pad, 0)
		labels = append(labels, month.Format("Jan"))
		values = append(values, firstValue)
	}
	for _, b := range buckets {
		labels = append(labels, b.day.Format("Jan"))
		values = append(values, Round2(b.sum/float64(b.count)))
	}
	return labels, values
}

func group(points []Point, truncate func(time.Time) time.Time) []bucket {
	byKey := make(map[time.Time]*bucket)
	for _, p := range points {
		key := truncate(p.Time)
		b, ok := byKey[key]
		if !ok {
			b = &bucket{day: key}
			byKey[key] = b
		}
		b.sum += p.Price
		b.count++
	}
	out := make([]bucket, 0, len(byKey))
	for _, b := range byKey {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].day.Before(out[j].day) })
	return out
}

func emptyWeek(fallback float64) ([]string, []float64) {
	labels := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	values := make([]float64, DailyPoints)
	for i := range values {
		values[i] = Round2(fallback)
	}
	return labels, values
}

func trailingMonths(now time.Time, fallback float64) ([]string, []float64) {
	y, m, _ := now.Date()
	current := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	labels := make([]string, 0, MonthlyPoints)
	values := make([]float64, 0, MonthlyPoints)
	for i := MonthlyPoints - 1; i >= 0; i-- {
		labels = append(labels, current.AddDate(0, -i, 0).Format("Jan"))
		values = append(values, Round2(fallback))
	}
	return labels, values
}
