package pricing

import (
	"strings"
)

// ServiceType is the closed set of service categories a configuration can price
type ServiceType int

const (
	ServiceAirport ServiceType = iota
	ServiceMedical
	ServiceVIP
	ServiceSecurity
	ServiceEmergency
	ServiceWeekend
	ServiceHoliday
	ServiceNightTime
)

// AllServiceTypes lists every ServiceType in declaration order
var AllServiceTypes = []ServiceType{
	ServiceAirport, ServiceMedical, ServiceVIP, ServiceSecurity,
	ServiceEmergency, ServiceWeekend, ServiceHoliday, ServiceNightTime,
}

func (t ServiceType) String() string {
	switch t {
	case ServiceAirport:
		return "airport"
	case ServiceMedical:
		return "medical"
	case ServiceVIP:
		return "vip"
	case ServiceSecurity:
		return "security"
	case ServiceEmergency:
		return "emergency"
	case ServiceWeekend:
		return "weekend"
	case ServiceHoliday:
		return "holiday"
	case ServiceNightTime:
		return "nightTime"
	}
	return "unknown"
}

// ParseServiceType matches a service type name case-insensitively.
// "night_time" and "night-time" are accepted for nightTime.
func ParseServiceType(s string) (ServiceType, bool) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range AllServiceTypes {
		if strings.ToLower(t.String()) == key {
			return t, true
		}
	}
	return 0, false
}

// For returns the adjustment configured for t, or nil
func (a ServiceAdjustments) For(t ServiceType) *Adjustment {
	switch t {
	case ServiceAirport:
		return a.Airport
	case ServiceMedical:
		return a.Medical
	case ServiceVIP:
		return a.VIP
	case ServiceSecurity:
		return a.Security
	case ServiceEmergency:
		return a.Emergency
	case ServiceWeekend:
		return a.Weekend
	case ServiceHoliday:
		return a.Holiday
	case ServiceNightTime:
		return a.NightTime
	}
	return nil
}

// CustomByName finds a custom adjustment by case-insensitive name
func (a ServiceAdjustments) CustomByName(name string) *Adjustment {
	for _, c := range a.Custom {
		if strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name)) {
			return &Adjustment{Type: c.Type, Value: c.Value}
		}
	}
	return nil
}

// Amount computes the adjustment against the base price
func (a Adjustment) Amount(basePrice float64) float64 {
	if a.Type == AdjustmentPercentage {
		return basePrice * a.Value / 100
	}
	return a.Value
}

// DetectServiceTypes infers service types from location keywords.
// VIP and security are never inferred.
func DetectServiceTypes(from, to string) []ServiceType {
	route := normalizeLocation(from) + " " + normalizeLocation(to)

	var detected []ServiceType
	if strings.Contains(route, "AIRPORT") || strings.Contains(route, "TOCUMEN") {
		detected = append(detected, ServiceAirport)
	}
	if strings.Contains(route, "HOSPITAL") || strings.Contains(route, "CLINIC") {
		detected = append(detected, ServiceMedical)
	}
	return detected
}

// appliedAdjustment is one service adjustment selected for a request
type appliedAdjustment struct {
	name       string
	adjustment Adjustment
}

// selectServiceAdjustments returns the configured adjustments that apply to
// req, each at most once, in detection order: keywords, flags, serviceType.
func selectServiceAdjustments(adj ServiceAdjustments, req RateRequest) []appliedAdjustment {
	types := DetectServiceTypes(req.From, req.To)
	if req.IsVIP {
		types = append(types, ServiceVIP)
	}
	if req.IsSecurity {
		types = append(types, ServiceSecurity)
	}

	var customName string
	if req.ServiceType != "" {
		if t, ok := ParseServiceType(req.ServiceType); ok {
			types = append(types, t)
		} else {
			customName = req.ServiceType
		}
	}

	seen := make(map[ServiceType]bool, len(types))
	applied := make([]appliedAdjustment, 0, len(types)+1)
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		if a := adj.For(t); a != nil {
			applied = append(applied, appliedAdjustment{name: t.String(), adjustment: *a})
		}
	}

	if customName != "" {
		if a := adj.CustomByName(customName); a != nil {
			applied = append(applied, appliedAdjustment{name: strings.TrimSpace(customName), adjustment: *a})
		}
	}
	return applied
}
