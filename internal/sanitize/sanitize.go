// Package sanitize bounds untrusted text fields before they reach callers.
// Every function is total: bad input is coerced to a safe default, never
// rejected.
package sanitize

import (
	"strings"

	"agripulse-api/internal/models"
)

const (
	MaxAnalysisLen       = 260
	MaxRecommendations   = 6
	MaxRecommendationLen = 140
	MaxFeatures          = 8
	MaxFeatureNameLen    = 120

	defaultFeatureName = "Market Driver"
)

// Text collapses internal whitespace runs to a single space, trims, and
// truncates to max runes. Truncated values keep a trailing "..." within the
// limit.
func Text(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// Recommendations keeps at most MaxRecommendations non-empty entries, each
// bounded to MaxRecommendationLen.
func Recommendations(list []string) []string {
	out := make([]string, 0, MaxRecommendations)
	for _, rec := range list {
		if len(out) == MaxRecommendations {
			break
		}
		if s := Text(rec, MaxRecommendationLen); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Features bounds the market-driver list. Unknown impact and sentiment values
// are coerced to Medium and Neutral rather than dropped.
func Features(list []models.Feature) []models.Feature {
	out := make([]models.Feature, 0, MaxFeatures)
	for _, f := range list {
		if len(out) == MaxFeatures {
			break
		}
		name := Text(f.Name, MaxFeatureNameLen)
		if name == "" {
			name = defaultFeatureName
		}
		out = append(out, models.Feature{
			Name:      name,
			Impact:    coerce(f.Impact, "Medium", "High", "Medium", "Low"),
			Sentiment: coerce(f.Sentiment, "Neutral", "Positive", "Negative", "Neutral"),
		})
	}
	return out
}

// Snapshot returns a copy of rec with all text fields bounded. Numeric fields
// pass through unchanged.
func Snapshot(rec models.PriceRecord) models.PriceRecord {
	rec.Analysis = Text(rec.Analysis, MaxAnalysisLen)
	rec.Recommendations = Recommendations(rec.Recommendations)
	rec.Features = Features(rec.Features)
	return rec
}

func coerce(v, def string, allowed ...string) string {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(v), a) {
			return a
		}
	}
	return def
}
