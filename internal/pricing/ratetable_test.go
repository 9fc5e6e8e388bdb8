package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRateTable_Embedded(t *testing.T) {
	table, err := LoadRateTable("")
	require.NoError(t, err)

	assert.NotEmpty(t, table.StaticMatrix)
	assert.Equal(t, 25.0, table.Fallback.BaseFee)
	assert.Equal(t, 35.0, table.Fallback.MinimumPrice)
	assert.Len(t, table.Fallback.DistanceRates, 4)

	fallback := table.FallbackConfig()
	require.NotNil(t, fallback)
	assert.Equal(t, "FALLBACK", fallback.Code)
	require.NotNil(t, fallback.ServiceAdjustments.Airport)
	assert.Equal(t, 15.0, fallback.ServiceAdjustments.Airport.Value)
	require.NotNil(t, fallback.ServiceAdjustments.Emergency)
	assert.Empty(t, fallback.ServiceAdjustments.Custom)

	codes := make([]string, 0, len(fallback.SAPCodeAdjustments))
	for _, s := range fallback.SAPCodeAdjustments {
		assert.Equal(t, SAPMultiplier, s.AdjustmentType)
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{"GEN000001", "GEN000089", "MED000012", "TRN000045"}, codes)
}

func TestRateTable_SeedConfig(t *testing.T) {
	table, err := LoadRateTable("")
	require.NoError(t, err)

	in, err := table.SeedConfig()
	require.NoError(t, err)

	assert.Equal(t, "DEFAULT", in.Code)
	assert.Equal(t, 25.0, in.BaseFee)
	assert.Equal(t, 35.0, in.MinimumPrice)
	assert.Len(t, in.DistanceRates, 4)
	assert.True(t, in.IsActive)
	assert.True(t, in.IsDefault)
	require.NotNil(t, in.ServiceAdjustments.Security)
	assert.Equal(t, AdjustmentFixed, in.ServiceAdjustments.Security.Type)
	require.NotNil(t, in.ServiceAdjustments.NightTime)
	assert.Equal(t, RoundingRules{Method: RoundNearest, Precision: 2}, in.RoundingRules)
	assert.Equal(t, "22:00", in.TimeBasedPricing.NightHours.Start)

	conditions, err := NewConditionEvaluator()
	require.NoError(t, err)
	assert.NoError(t, ValidateConfig(in, conditions), "seed must pass write validation")
}

func TestLoadRateTable_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	doc := `
staticMatrix:
  - { from: DEPOT, to: YARD, distance: 3 }
fallback:
  baseFee: 10
  minimumPrice: 15
  distanceRates:
    - { minKm: 0, maxKm: 1000, ratePerKm: 1.0 }
  servicePercentages:
    courier: 5
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	table, err := LoadRateTable(path)
	require.NoError(t, err)
	assert.Equal(t, 3.0, table.StaticMatrix[0].Distance)

	fallback := table.FallbackConfig()
	require.Len(t, fallback.ServiceAdjustments.Custom, 1)
	assert.Equal(t, "courier", fallback.ServiceAdjustments.Custom[0].Name)

	_, err = table.SeedConfig()
	assert.Error(t, err)
}

func TestParseRateTable_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "staticMatrix: [ {"},
		{"no fallback bands", "fallback: { baseFee: 10 }"},
		{"gap in bands", `
fallback:
  distanceRates:
    - { minKm: 0, maxKm: 10, ratePerKm: 1 }
    - { minKm: 20, maxKm: 30, ratePerKm: 1 }
`},
		{"incomplete matrix entry", `
staticMatrix:
  - { from: DEPOT, distance: 3 }
fallback:
  distanceRates:
    - { minKm: 0, maxKm: 10, ratePerKm: 1 }
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRateTable([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRateTable_MissingFile(t *testing.T) {
	_, err := LoadRateTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
