package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/richxcame/agency-pricing/pkg/validation"
)

// ValidateConfig checks a configuration before it is written: struct tags,
// band layout, fixed route floors, time windows and route conditions.
func ValidateConfig(in ConfigInput, conditions *ConditionEvaluator) error {
	fields := map[string]string{}

	if err := validation.ValidateStruct(in); err != nil {
		var verr *validation.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		for k, v := range verr.Fields {
			fields[k] = v
		}
	}

	if len(in.DistanceRates) == 0 {
		fields["distanceRates"] = "at least one band is required"
	} else if err := checkBands(in.DistanceRates); err != nil {
		fields["distanceRates"] = err.Error()
	}

	floor := orDefault(in.MinimumPrice, DefaultMinimumPrice)
	seenRoutes := make(map[string]int, len(in.FixedRoutes))
	for i, r := range in.FixedRoutes {
		key := fmt.Sprintf("fixedRoutes[%d]", i)
		if r.Price < floor {
			fields[key+".price"] = fmt.Sprintf("must be at least the minimum price %.2f", floor)
		}
		pair := []string{normalizeLocation(r.From), normalizeLocation(r.To)}
		sort.Strings(pair)
		pk := pair[0] + "|" + pair[1] + "|" + strings.TrimSpace(r.Conditions)
		if j, dup := seenRoutes[pk]; dup {
			fields[key] = fmt.Sprintf("duplicates fixedRoutes[%d]", j)
		}
		seenRoutes[pk] = i

		if r.Conditions != "" && conditions != nil {
			if err := conditions.Compile(r.Conditions); err != nil {
				fields[key+".conditions"] = err.Error()
			}
		}
	}

	for i, s := range in.SAPCodeAdjustments {
		if s.AdjustmentType == SAPMultiplier && s.AdjustmentValue <= 0 {
			fields[fmt.Sprintf("sapCodeAdjustments[%d].adjustmentValue", i)] = "multiplier must be positive"
		}
	}

	seenPromos := map[string]bool{}
	for i, p := range in.Discounts.PromotionalDiscounts {
		code := strings.ToUpper(strings.TrimSpace(p.Code))
		if seenPromos[code] {
			fields[fmt.Sprintf("discounts.promotionalDiscounts[%d].code", i)] = "duplicate promotional code"
		}
		seenPromos[code] = true
		if !p.ValidFrom.IsZero() && !p.ValidTo.IsZero() && p.ValidTo.Before(p.ValidFrom) {
			fields[fmt.Sprintf("discounts.promotionalDiscounts[%d].validTo", i)] = "must not be before validFrom"
		}
	}

	if n := in.TimeBasedPricing.NightHours; n != nil && n.Start == n.End {
		fields["timeBasedPricing.nightHours"] = "start and end must differ"
	}
	for i, p := range in.TimeBasedPricing.PeakHours {
		if p.Start == p.End {
			fields[fmt.Sprintf("timeBasedPricing.peakHours[%d]", i)] = "start and end must differ"
		}
		for _, d := range p.Days {
			if !validDay(d) {
				fields[fmt.Sprintf("timeBasedPricing.peakHours[%d].days", i)] = fmt.Sprintf("unknown day %q", d)
			}
		}
	}

	if in.EffectiveFrom != nil && in.EffectiveTo != nil && in.EffectiveTo.Before(*in.EffectiveFrom) {
		fields["effectiveTo"] = "must not be before effectiveFrom"
	}

	if len(fields) > 0 {
		return &validation.ValidationError{Fields: fields}
	}
	return nil
}

// checkBands requires bands sorted by minKm, starting at 0, each starting
// where the previous one ends
func checkBands(bands []DistanceRate) error {
	for i, b := range bands {
		if b.MaxKm <= b.MinKm {
			return fmt.Errorf("band %d: maxKm must be greater than minKm", i)
		}
		if i == 0 {
			if b.MinKm != 0 {
				return fmt.Errorf("band 0 must start at 0 km")
			}
			continue
		}
		prev := bands[i-1]
		if b.MinKm < prev.MaxKm {
			return fmt.Errorf("band %d overlaps band %d", i, i-1)
		}
		if b.MinKm > prev.MaxKm {
			return fmt.Errorf("gap between %.2f and %.2f km", prev.MaxKm, b.MinKm)
		}
	}
	return nil
}

func validDay(d string) bool {
	d = strings.ToLower(strings.TrimSpace(d))
	if len(d) < 3 {
		return false
	}
	for _, name := range []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"} {
		if d[:3] == name {
			return true
		}
	}
	return false
}
