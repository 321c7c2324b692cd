package models

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEventID(t *testing.T) {
	id := GenerateEventID("600519", "2024-06-03 09:35:00", "price_jump")
	assert.Equal(t, "600519_20240603_093500_price_jump", id)

	// Date-only timestamps compact to 8 characters, no truncation needed.
	id = GenerateEventID("000001", "2024-06-03", "performance_forecast")
	assert.Equal(t, "000001_20240603_performance_forecast", id)
}

func TestGenerateEventIDDeterministic(t *testing.T) {
	a := GenerateEventID("600519", "2024-06-03 09:35:00", "limit_up")
	b := GenerateEventID("600519", "2024-06-03 09:35:00", "limit_up")
	assert.Equal(t, a, b)
}

func TestParseEventTime(t *testing.T) {
	ts, err := ParseEventTime("2024-06-03 09:35:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 9, 35, 0, 0, time.Local), ts)

	ts, err = ParseEventTime("2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.Local), ts)

	_, err = ParseEventTime("03/06/2024")
	assert.Error(t, err)
}

func TestImpactLevelRank(t *testing.T) {
	assert.True(t, ImpactLow.Rank() < ImpactMedium.Rank())
	assert.True(t, ImpactMedium.Rank() < ImpactHigh.Rank())
	assert.True(t, ImpactHigh.Rank() < ImpactCritical.Rank())
	assert.Equal(t, -1, ImpactLevel("bogus").Rank())
}

// Property: event ids are deterministic and structurally stable.
//
// For any symbol, timestamp, and subtype:
// 1. The same inputs always produce the same id
// 2. The id starts with the symbol and ends with the subtype
// 3. The compacted timestamp segment never exceeds 15 characters
func TestProperty_EventIDStructure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genTime := gen.TimeRange(
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local),
		10*365*24*time.Hour,
	)

	properties.Property("same inputs produce same id", prop.ForAll(
		func(symbol string, ts time.Time, subtype string) bool {
			eventTime := ts.Format(TimeLayout)
			return GenerateEventID(symbol, eventTime, subtype) == GenerateEventID(symbol, eventTime, subtype)
		},
		gen.AlphaString(),
		genTime,
		gen.AlphaString(),
	))

	properties.Property("id carries symbol prefix and subtype suffix", prop.ForAll(
		func(symbol string, ts time.Time, subtype string) bool {
			eventTime := ts.Format(TimeLayout)
			id := GenerateEventID(symbol, eventTime, subtype)
			if !strings.HasPrefix(id, symbol+"_") {
				return false
			}
			if !strings.HasSuffix(id, "_"+subtype) {
				return false
			}
			middle := strings.TrimSuffix(strings.TrimPrefix(id, symbol+"_"), "_"+subtype)
			return len(middle) <= 15
		},
		gen.AlphaString(),
		genTime,
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
