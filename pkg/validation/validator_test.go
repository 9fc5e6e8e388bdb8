package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type band struct {
	MinKm float64 `json:"minKm" validate:"gte=0"`
	MaxKm float64 `json:"maxKm" validate:"gt=0"`
}

type sample struct {
	Code     string  `json:"code" validate:"required,config_code"`
	Rounding string  `json:"method" validate:"omitempty,rounding_method"`
	AdjType  string  `json:"type" validate:"omitempty,adjustment_type"`
	SAPType  string  `json:"adjustmentType" validate:"omitempty,sap_adjustment_type"`
	Start    string  `json:"start" validate:"omitempty,hhmm"`
	Date     string  `json:"serviceDate" validate:"omitempty,service_date"`
	Bands    []band  `json:"distanceRates" validate:"dive"`
	Ignored  float64 `json:"-"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		in         sample
		wantFields []string
	}{
		{
			name: "valid",
			in:   sample{Code: "DEFAULT_2024", Rounding: "nearest", AdjType: "fixed", SAPType: "multiplier", Start: "22:00", Date: "2024-06-03", Bands: []band{{0, 20}}},
		},
		{
			name: "timestamp service date",
			in:   sample{Code: "OK", Date: "2024-06-03T23:00:00-05:00"},
		},
		{
			name:       "bad service date",
			in:         sample{Code: "OK", Date: "03/06/2024"},
			wantFields: []string{"serviceDate"},
		},
		{
			name:       "missing code",
			in:         sample{},
			wantFields: []string{"code"},
		},
		{
			name:       "bad enums",
			in:         sample{Code: "X1", Rounding: "banker", AdjType: "ratio", SAPType: "bonus"},
			wantFields: []string{"method", "type", "adjustmentType"},
		},
		{
			name:       "bad time and code",
			in:         sample{Code: "has space", Start: "24:30"},
			wantFields: []string{"code", "start"},
		},
		{
			name:       "nested band",
			in:         sample{Code: "OK", Bands: []band{{0, 20}, {-1, 0}}},
			wantFields: []string{"distanceRates[1].minKm", "distanceRates[1].maxKm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.wantFields))
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "is required", "a": "is required"}}
	assert.Equal(t, "validation failed: a: is required; b: is required", err.Error())
}

func TestRegisterGinValidators(t *testing.T) {
	assert.NoError(t, RegisterGinValidators())
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		wantOK  bool
		wantDay string
	}{
		{"2024-06-03", true, "2024-06-03"},
		{" 2024-06-03 ", true, "2024-06-03"},
		{"2024-06-03T23:30:00-05:00", true, "2024-06-03"},
		{"2024-06-03T01:00:00.123Z", true, "2024-06-03"},
		{"2024-06-03T23:30", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantDay, got.Format("2006-01-02"))
			}
		})
	}
}
