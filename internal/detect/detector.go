// Package detect implements the event detectors and the sweep manager.
package detect

import (
	"context"
	"math"
	"time"

	"stock-radar/internal/models"
)

// Scope says whether a detector inspects one symbol or the whole market.
type Scope int

const (
	ScopeSymbol Scope = iota // runs once per symbol in the universe
	ScopeMarket              // runs once per sweep, symbol argument ignored
)

// Detector detects financial events. Implementations must be safe for
// concurrent use; Detect returning an empty slice and a nil error means
// nothing triggered.
type Detector interface {
	Name() string
	Scope() Scope
	Detect(ctx context.Context, symbol string) ([]models.FinancialEvent, error)
}

// dataSource tags every emitted event with where its inputs came from.
const dataSource = "eastmoney"

// impactFromDeviation maps a percentage deviation onto an impact level.
// Shared by the trading and company detectors.
func impactFromDeviation(deviation float64) models.ImpactLevel {
	abs := math.Abs(deviation)
	switch {
	case abs > 10:
		return models.ImpactCritical
	case abs > 5:
		return models.ImpactHigh
	case abs > 2:
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// impactFromRankDeviation maps an attention-rank deviation onto an impact
// level. Rank moves are measured in list positions, not percent.
func impactFromRankDeviation(deviation float64) models.ImpactLevel {
	abs := math.Abs(deviation)
	switch {
	case abs > 1000:
		return models.ImpactCritical
	case abs > 500:
		return models.ImpactHigh
	case abs > 100:
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// impactFromPriceDeviation maps a hot-list price deviation onto an impact
// level, on a tighter scale than the generic mapping.
func impactFromPriceDeviation(deviation float64) models.ImpactLevel {
	abs := math.Abs(deviation)
	switch {
	case abs > 10:
		return models.ImpactCritical
	case abs > 7:
		return models.ImpactHigh
	case abs > 3:
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// fixedDetectionTime stamps market-snapshot events with today's date at a
// fixed 08:56:30 wall time, so every sweep of the same trading day produces
// identical event ids and the store dedupes re-detections.
func fixedDetectionTime(now time.Time) string {
	fixed := time.Date(now.Year(), now.Month(), now.Day(), 8, 56, 30, 0, now.Location())
	return fixed.Format(models.TimeLayout)
}
