package pricing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed ratetable.yaml
var defaultRateTable []byte

// FallbackRates is the hardcoded table used when no configuration is active
type FallbackRates struct {
	BaseFee            float64            `yaml:"baseFee"`
	MinimumPrice       float64            `yaml:"minimumPrice"`
	WaitingHourRate    float64            `yaml:"waitingHourRate"`
	ExtraPassengerRate float64            `yaml:"extraPassengerRate"`
	DistanceRates      []DistanceRate     `yaml:"distanceRates"`
	ServicePercentages map[string]float64 `yaml:"servicePercentages"`
	SAPMultipliers     map[string]float64 `yaml:"sapMultipliers"`
	RoundingRules      RoundingRules      `yaml:"roundingRules"`
}

// RateTable is the read-only rate document loaded at start
type RateTable struct {
	StaticMatrix []DistanceEntry        `yaml:"staticMatrix"`
	Fallback     FallbackRates          `yaml:"fallback"`
	Seed         map[string]interface{} `yaml:"seed"`

	fallbackConfig *PricingConfiguration
}

// LoadRateTable reads the rate table from path, or the built-in one when path is empty
func LoadRateTable(path string) (*RateTable, error) {
	data := defaultRateTable
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rate table %s: %w", path, err)
		}
		data = b
	}
	return ParseRateTable(data)
}

// ParseRateTable decodes and checks a rate table document
func ParseRateTable(data []byte) (*RateTable, error) {
	var t RateTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse rate table: %w", err)
	}
	if len(t.Fallback.DistanceRates) == 0 {
		return nil, fmt.Errorf("rate table: fallback.distanceRates is empty")
	}
	if err := checkBands(t.Fallback.DistanceRates); err != nil {
		return nil, fmt.Errorf("rate table: fallback: %w", err)
	}
	for i, e := range t.StaticMatrix {
		if strings.TrimSpace(e.From) == "" || strings.TrimSpace(e.To) == "" || e.Distance < 0 {
			return nil, fmt.Errorf("rate table: staticMatrix[%d] is incomplete", i)
		}
	}

	t.fallbackConfig = t.Fallback.configuration()
	return &t, nil
}

// FallbackConfig returns the fallback table as a configuration. Callers must not modify it.
func (t *RateTable) FallbackConfig() *PricingConfiguration {
	return t.fallbackConfig
}

// SeedConfig returns the bootstrap configuration document
func (t *RateTable) SeedConfig() (ConfigInput, error) {
	var in ConfigInput
	if len(t.Seed) == 0 {
		return in, fmt.Errorf("rate table has no seed configuration")
	}
	// The seed shares the API's JSON field names.
	raw, err := json.Marshal(t.Seed)
	if err != nil {
		return in, fmt.Errorf("failed to encode seed configuration: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("failed to decode seed configuration: %w", err)
	}
	return in, nil
}

func (f FallbackRates) configuration() *PricingConfiguration {
	cfg := &PricingConfiguration{
		Name:          "Built-in fallback rates",
		Code:          "FALLBACK",
		BaseFee:       f.BaseFee,
		MinimumPrice:  f.MinimumPrice,
		DistanceRates: append([]DistanceRate(nil), f.DistanceRates...),
		AdditionalCharges: AdditionalCharges{
			WaitingHourRate:    f.WaitingHourRate,
			ExtraPassengerRate: f.ExtraPassengerRate,
		},
		RoundingRules: f.RoundingRules,
		IsActive:      true,
	}

	for name, pct := range f.ServicePercentages {
		adj := &Adjustment{Type: AdjustmentPercentage, Value: pct}
		t, ok := ParseServiceType(name)
		if !ok {
			cfg.ServiceAdjustments.Custom = append(cfg.ServiceAdjustments.Custom,
				CustomAdjustment{Name: name, Type: AdjustmentPercentage, Value: pct})
			continue
		}
		switch t {
		case ServiceAirport:
			cfg.ServiceAdjustments.Airport = adj
		case ServiceMedical:
			cfg.ServiceAdjustments.Medical = adj
		case ServiceVIP:
			cfg.ServiceAdjustments.VIP = adj
		case ServiceSecurity:
			cfg.ServiceAdjustments.Security = adj
		case ServiceEmergency:
			cfg.ServiceAdjustments.Emergency = adj
		case ServiceWeekend:
			cfg.ServiceAdjustments.Weekend = adj
		case ServiceHoliday:
			cfg.ServiceAdjustments.Holiday = adj
		case ServiceNightTime:
			cfg.ServiceAdjustments.NightTime = adj
		}
	}
	sort.Slice(cfg.ServiceAdjustments.Custom, func(i, j int) bool {
		return cfg.ServiceAdjustments.Custom[i].Name < cfg.ServiceAdjustments.Custom[j].Name
	})

	codes := make([]string, 0, len(f.SAPMultipliers))
	for code := range f.SAPMultipliers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		cfg.SAPCodeAdjustments = append(cfg.SAPCodeAdjustments, SAPCodeAdjustment{
			Code:            code,
			AdjustmentType:  SAPMultiplier,
			AdjustmentValue: f.SAPMultipliers[code],
		})
	}

	return cfg
}
