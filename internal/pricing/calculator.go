package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/richxcame/agency-pricing/pkg/logger"
	"go.uber.org/zap"
)

// CalcEnv carries inputs that do not come from the request itself
type CalcEnv struct {
	Now time.Time
	// PromoUses is the shared redemption counter for req.PromoCode
	PromoUses int64
}

// Calculator resolves a price from a configuration and a request
type Calculator struct {
	resolver   *DistanceResolver
	conditions *ConditionEvaluator
	fallback   *PricingConfiguration
}

// NewCalculator creates a new pricing calculator
func NewCalculator(resolver *DistanceResolver, conditions *ConditionEvaluator, table *RateTable) *Calculator {
	c := &Calculator{
		resolver:   resolver,
		conditions: conditions,
	}
	if table != nil {
		c.fallback = table.FallbackConfig()
	}
	return c
}

// Calculate prices req against cfg. A matching fixed route short-circuits the
// distance-based calculation.
func (c *Calculator) Calculate(cfg *PricingConfiguration, req RateRequest, env CalcEnv) (*PriceResult, error) {
	var result *PriceResult
	if route := c.matchFixedRoute(cfg, req); route != nil {
		result = priceFixedRoute(cfg, *route, req)
	} else {
		r, err := c.calculateByDistance(cfg, req, env)
		if err != nil {
			return nil, err
		}
		result = r
	}

	id := cfg.ID
	result.ConfigID = &id
	result.ConfigName = cfg.Name
	return result, nil
}

// CalculateFallback prices req from the built-in rate table. It always
// returns a price: a missing band degrades to the default per-km rate.
func (c *Calculator) CalculateFallback(req RateRequest, env CalcEnv) (*PriceResult, error) {
	if c.fallback == nil {
		return nil, ErrNoActiveConfiguration
	}
	req.AllowDefaultRate = true

	result, err := c.calculateByDistance(c.fallback, req, env)
	if err != nil {
		return nil, err
	}
	result.Fallback = true
	return result, nil
}

// matchFixedRoute finds a route matching from/to in either direction whose
// condition, if any, holds for req
func (c *Calculator) matchFixedRoute(cfg *PricingConfiguration, req RateRequest) *FixedRoute {
	from, to := normalizeLocation(req.From), normalizeLocation(req.To)

	for i := range cfg.FixedRoutes {
		route := &cfg.FixedRoutes[i]
		rf, rt := normalizeLocation(route.From), normalizeLocation(route.To)
		if !((rf == from && rt == to) || (rf == to && rt == from)) {
			continue
		}
		if route.Conditions == "" || c.conditions == nil {
			return route
		}

		ok, err := c.conditions.Evaluate(route.Conditions, req)
		if err != nil {
			logger.Warn("fixed route condition failed, skipping route",
				zap.String("config_code", cfg.Code),
				zap.String("from", route.From),
				zap.String("to", route.To),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return route
		}
	}
	return nil
}

func priceFixedRoute(cfg *PricingConfiguration, route FixedRoute, req RateRequest) *PriceResult {
	routePrice := route.Price
	b := Breakdown{
		FixedRoutePrice:      &routePrice,
		WaitingCharge:        req.WaitingHours * waitingHourRate(cfg),
		ExtraPassengerCharge: float64(extraPassengers(req)) * extraPassengerRate(cfg),
		SAPCode:              strings.ToUpper(route.SAPCode),
		MinimumPrice:         minimumPrice(cfg),
	}

	price := route.Price + b.WaitingCharge + b.ExtraPassengerCharge
	b.Subtotal = price

	// Write-time validation keeps fixed prices at or above the floor
	if price < b.MinimumPrice {
		price = b.MinimumPrice
		b.MinimumApplied = true
	}

	return &PriceResult{
		Price:     price,
		Source:    SourceFixedRoute,
		Breakdown: b,
	}
}

func (c *Calculator) calculateByDistance(cfg *PricingConfiguration, req RateRequest, env CalcEnv) (*PriceResult, error) {
	resolution := c.resolver.Resolve(req.From, req.To, cfg.DistanceMatrix)
	distance := resolution.Distance

	b := Breakdown{MinimumPrice: minimumPrice(cfg)}

	// Distance band
	band, ok := findBand(cfg.DistanceRates, distance)
	if !ok {
		if !req.AllowDefaultRate {
			return nil, fmt.Errorf("%w: %.2f km", ErrDistanceBandNotFound, distance)
		}
		band = DistanceRate{RatePerKm: DefaultRatePerKm}
		b.BandFallback = true
	}

	b.BaseFee = baseFee(cfg)
	b.BandRatePerKm = band.RatePerKm
	if band.FixedPrice != nil {
		fp := *band.FixedPrice
		b.BandFixedPrice = &fp
		b.DistanceCharge = fp
	} else {
		b.DistanceCharge = distance * band.RatePerKm
	}

	basePrice := b.BaseFee + b.DistanceCharge
	price := basePrice

	// Service type adjustments stack, each against the base price
	nightCharged := false
	for _, a := range selectServiceAdjustments(cfg.ServiceAdjustments, req) {
		b.ServiceAdjustment += a.adjustment.Amount(basePrice)
		b.AppliedServiceTypes = append(b.AppliedServiceTypes, a.name)
		if a.name == ServiceNightTime.String() {
			nightCharged = true
		}
	}
	price += b.ServiceAdjustment

	// Night and peak windows. A nightTime adjustment replaces the night window.
	if pct := timeSurchargePercentage(cfg.TimeBasedPricing, req, nightCharged); pct > 0 {
		b.TimeSurcharge = basePrice * pct / 100
		price += b.TimeSurcharge
	}

	// SAP code
	if sap := selectSAPAdjustment(cfg.SAPCodeAdjustments, req.SAPCode); sap != nil {
		before := price
		switch sap.AdjustmentType {
		case SAPMultiplier:
			price *= sap.AdjustmentValue
		case SAPPercentage:
			price += price * sap.AdjustmentValue / 100
		case SAPFixed:
			price += sap.AdjustmentValue
		}
		b.SAPAdjustment = price - before
		b.SAPCode = sap.Code
	}

	// Additional charges
	b.WaitingCharge = req.WaitingHours * waitingHourRate(cfg)
	b.ExtraPassengerCharge = float64(extraPassengers(req)) * extraPassengerRate(cfg)
	price += b.WaitingCharge + b.ExtraPassengerCharge
	b.Subtotal = price

	// Best single discount
	if pct, source := bestDiscount(cfg.Discounts, req, env); pct > 0 {
		b.Discount = price * pct / 100
		b.DiscountSource = source
		price -= b.Discount
	}

	// Minimum price floor
	if price < b.MinimumPrice {
		price = b.MinimumPrice
		b.MinimumApplied = true
	}

	rounded := ApplyRounding(price, cfg.RoundingRules)
	if rounded < b.MinimumPrice {
		rounded = ApplyRounding(b.MinimumPrice, RoundingRules{Method: RoundUp, Precision: cfg.RoundingRules.Precision})
	}
	b.RoundingAdjustment = rounded - price

	return &PriceResult{
		Price:          rounded,
		Source:         SourceCalculated,
		Distance:       &distance,
		DistanceSource: resolution.Source,
		Breakdown:      b,
	}, nil
}

// findBand returns the first band whose closed interval contains distance.
// With sorted contiguous bands a shared boundary belongs to the lower band.
func findBand(bands []DistanceRate, distance float64) (DistanceRate, bool) {
	for _, band := range bands {
		if distance >= band.MinKm && distance <= band.MaxKm {
			return band, true
		}
	}
	return DistanceRate{}, false
}

// selectSAPAdjustment picks the highest priority entry for code; ties keep list order
func selectSAPAdjustment(adjustments []SAPCodeAdjustment, code string) *SAPCodeAdjustment {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	var best *SAPCodeAdjustment
	for i := range adjustments {
		a := &adjustments[i]
		if !strings.EqualFold(strings.TrimSpace(a.Code), code) {
			continue
		}
		if best == nil || a.Priority > best.Priority {
			best = a
		}
	}
	return best
}

// bestDiscount returns the largest applicable discount percentage and its source.
// Discounts never stack.
func bestDiscount(d Discounts, req RateRequest, env CalcEnv) (float64, string) {
	now := env.Now
	if now.IsZero() {
		now = time.Now()
	}

	var best float64
	var source string
	consider := func(pct float64, from string) {
		if pct > best {
			best, source = pct, from
		}
	}

	if req.ClientID != "" {
		for _, cd := range d.ClientDiscounts {
			if cd.ClientID != req.ClientID {
				continue
			}
			if cd.ValidFrom != nil && now.Before(*cd.ValidFrom) {
				continue
			}
			if cd.ValidTo != nil && now.After(*cd.ValidTo) {
				continue
			}
			consider(cd.Percentage, "client")
		}
	}

	if code := strings.TrimSpace(req.PromoCode); code != "" {
		for _, pd := range d.PromotionalDiscounts {
			if promoApplies(pd, code, now, env.PromoUses) {
				consider(pd.Percentage, "promotional")
			}
		}
	}

	if req.ServiceCount != nil {
		for _, vd := range d.VolumeDiscounts {
			if *req.ServiceCount >= vd.MinServices {
				consider(vd.Percentage, "volume")
			}
		}
	}

	return best, source
}

func promoApplies(pd PromotionalDiscount, code string, now time.Time, redeemed int64) bool {
	if !strings.EqualFold(strings.TrimSpace(pd.Code), code) {
		return false
	}
	if !pd.ValidFrom.IsZero() && now.Before(pd.ValidFrom) {
		return false
	}
	if !pd.ValidTo.IsZero() && now.After(pd.ValidTo) {
		return false
	}
	if pd.MaxUses != nil {
		uses := int64(pd.CurrentUses)
		if redeemed > uses {
			uses = redeemed
		}
		if uses >= int64(*pd.MaxUses) {
			return false
		}
	}
	return true
}

// timeSurchargePercentage returns the largest night or peak surcharge
// covering req.ServiceTime. skipNight leaves the night window out.
func timeSurchargePercentage(tbp TimeBasedPricing, req RateRequest, skipNight bool) float64 {
	if !tbp.Enabled || req.ServiceTime == "" {
		return 0
	}
	minute, ok := parseClock(req.ServiceTime)
	if !ok {
		return 0
	}

	var best float64
	if n := tbp.NightHours; n != nil && !skipNight && inWindow(minute, n.Start, n.End) {
		best = n.SurchargePercentage
	}

	weekday := serviceWeekday(req.ServiceDate)
	for _, p := range tbp.PeakHours {
		if !inWindow(minute, p.Start, p.End) || !dayMatches(p.Days, weekday) {
			continue
		}
		if p.SurchargePercentage > best {
			best = p.SurchargePercentage
		}
	}
	return best
}

// inWindow reports whether minute falls in [start, end); windows with
// start after end run overnight
func inWindow(minute int, start, end string) bool {
	s, ok1 := parseClock(start)
	e, ok2 := parseClock(end)
	if !ok1 || !ok2 || s == e {
		return false
	}
	if s > e {
		return minute >= s || minute < e
	}
	return minute >= s && minute < e
}

// dayMatches accepts any day when days is empty; otherwise the weekday must be known and listed
func dayMatches(days []string, weekday int) bool {
	if len(days) == 0 {
		return true
	}
	if weekday < 0 {
		return false
	}
	want := strings.ToLower(time.Weekday(weekday).String()[:3])
	for _, d := range days {
		d = strings.ToLower(strings.TrimSpace(d))
		if len(d) >= 3 && d[:3] == want {
			return true
		}
	}
	return false
}

// parseClock converts "HH:MM" into minutes after midnight
func parseClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// ApplyRounding rounds v at 10^-precision. Applying it to its own result
// returns the same value.
func ApplyRounding(v float64, r RoundingRules) float64 {
	factor := math.Pow(10, float64(r.Precision))
	scaled := v * factor
	// snap representation noise so ceil/floor of an already rounded value is stable
	if n := math.Round(scaled); math.Abs(scaled-n) < 1e-9 {
		scaled = n
	}

	switch r.Method {
	case RoundUp:
		scaled = math.Ceil(scaled)
	case RoundDown:
		scaled = math.Floor(scaled)
	case RoundNearest:
		scaled = math.Round(scaled)
	default:
		return v
	}
	return scaled / factor
}

func extraPassengers(req RateRequest) int {
	if req.PassengerCount <= 1 {
		return 0
	}
	return req.PassengerCount - 1
}

func baseFee(cfg *PricingConfiguration) float64 {
	return orDefault(cfg.BaseFee, DefaultBaseFee)
}

func minimumPrice(cfg *PricingConfiguration) float64 {
	return orDefault(cfg.MinimumPrice, DefaultMinimumPrice)
}

func waitingHourRate(cfg *PricingConfiguration) float64 {
	return orDefault(cfg.AdditionalCharges.WaitingHourRate, DefaultWaitingHourRate)
}

func extraPassengerRate(cfg *PricingConfiguration) float64 {
	return orDefault(cfg.AdditionalCharges.ExtraPassengerRate, DefaultExtraPassengerRate)
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
