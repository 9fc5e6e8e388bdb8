package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceResolver_Resolve(t *testing.T) {
	resolver := NewDistanceResolver([]DistanceEntry{
		{From: "HOTEL PTY", To: "PTY PORT", Distance: 15},
		{From: "HOTEL COLON", To: "COLON PORT", Distance: 5},
	})
	override := []DistanceEntry{
		{From: "hotel pty", To: "pty port", Distance: 18},
	}

	tests := []struct {
		name     string
		from     string
		to       string
		override []DistanceEntry
		expected float64
		source   DistanceSource
	}{
		{
			name:     "configuration matrix wins over static matrix",
			from:     "HOTEL PTY",
			to:       "PTY PORT",
			override: override,
			expected: 18,
			source:   DistanceFromConfig,
		},
		{
			name:     "configuration matrix matches reversed direction",
			from:     "PTY PORT",
			to:       "HOTEL PTY",
			override: override,
			expected: 18,
			source:   DistanceFromConfig,
		},
		{
			name:     "static matrix",
			from:     "HOTEL PTY",
			to:       "PTY PORT",
			expected: 15,
			source:   DistanceFromStatic,
		},
		{
			name:     "static matrix reversed and case-insensitive",
			from:     "  colon port ",
			to:       "hotel colon",
			expected: 5,
			source:   DistanceFromStatic,
		},
		{
			name:     "unknown Colon pair",
			from:     "COLON FREE ZONE",
			to:       "CRISTOBAL YARD",
			expected: estimateColonLocal,
			source:   DistanceFromEstimated,
		},
		{
			name:     "unknown Panama City pair",
			from:     "PTY MALL",
			to:       "PTY MARINA",
			expected: estimatePTYLocal,
			source:   DistanceFromEstimated,
		},
		{
			name:     "airport to Colon",
			from:     "TOCUMEN AIRPORT",
			to:       "COLON TERMINAL",
			expected: estimateAirportColon,
			source:   DistanceFromEstimated,
		},
		{
			name:     "Colon to airport",
			from:     "COLON TERMINAL",
			to:       "PTY AIRPORT",
			expected: estimateAirportColon,
			source:   DistanceFromEstimated,
		},
		{
			name:     "airport to city",
			from:     "PTY MALL",
			to:       "TOCUMEN AIRPORT",
			expected: estimateAirportPTY,
			source:   DistanceFromEstimated,
		},
		{
			name:     "Panama City to Colon",
			from:     "PTY MALL",
			to:       "COLON TERMINAL",
			expected: estimatePTYToColon,
			source:   DistanceFromEstimated,
		},
		{
			name:     "nothing known",
			from:     "DAVID",
			to:       "BOQUETE",
			expected: estimateUnknownRoute,
			source:   DistanceFromEstimated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(tt.from, tt.to, tt.override)
			assert.Equal(t, tt.expected, got.Distance)
			assert.Equal(t, tt.source, got.Source)
		})
	}
}

func TestDistanceResolver_Symmetry(t *testing.T) {
	table, err := LoadRateTable("")
	if !assert.NoError(t, err) {
		return
	}
	resolver := NewDistanceResolver(table.StaticMatrix)

	pairs := [][2]string{
		{"HOTEL PTY", "TOCUMEN AIRPORT"},
		{"MANZANILLO PORT", "COLON PORT"},
		{"PTY MALL", "COLON TERMINAL"},
		{"DAVID", "BOQUETE"},
	}
	for _, p := range pairs {
		a := resolver.Resolve(p[0], p[1], nil)
		b := resolver.Resolve(p[1], p[0], nil)
		assert.Equal(t, a, b, "%s <-> %s", p[0], p[1])
	}
}

func TestDistanceResolver_NilIsUsable(t *testing.T) {
	var resolver *DistanceResolver
	got := resolver.Resolve("HOTEL PTY", "PTY PORT", nil)
	assert.Equal(t, estimatePTYLocal, got.Distance)
	assert.Equal(t, DistanceFromEstimated, got.Source)
}
