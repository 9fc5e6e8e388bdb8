package pricing

import (
	"strings"
)

// Heuristic distances in km, used when no matrix knows the route
const (
	estimateColonLocal   = 10.0
	estimatePTYLocal     = 12.0
	estimateAirportColon = 90.0
	estimateAirportPTY   = 30.0
	estimatePTYToColon   = 75.0
	estimateUnknownRoute = 25.0
)

// DistanceResolution is a distance and where it came from
type DistanceResolution struct {
	Distance float64        `json:"distance"`
	Source   DistanceSource `json:"source"`
}

// DistanceResolver resolves the distance between two named locations.
// It is read-only after construction and safe for concurrent use.
type DistanceResolver struct {
	static map[string]float64
}

// NewDistanceResolver builds a resolver over a static matrix
func NewDistanceResolver(static []DistanceEntry) *DistanceResolver {
	m := make(map[string]float64, len(static))
	for _, e := range static {
		m[routeKey(e.From, e.To)] = e.Distance
	}
	return &DistanceResolver{static: m}
}

// Resolve returns the distance for from/to, consulting the configuration
// matrix, then the static matrix, then the keyword heuristic. It never fails.
func (r *DistanceResolver) Resolve(from, to string, override []DistanceEntry) DistanceResolution {
	f, t := normalizeLocation(from), normalizeLocation(to)

	for _, e := range override {
		ef, et := normalizeLocation(e.From), normalizeLocation(e.To)
		if (ef == f && et == t) || (ef == t && et == f) {
			return DistanceResolution{Distance: e.Distance, Source: DistanceFromConfig}
		}
	}

	if r != nil {
		if d, ok := r.static[f+"|"+t]; ok {
			return DistanceResolution{Distance: d, Source: DistanceFromStatic}
		}
		if d, ok := r.static[t+"|"+f]; ok {
			return DistanceResolution{Distance: d, Source: DistanceFromStatic}
		}
	}

	return DistanceResolution{Distance: estimateDistance(f, t), Source: DistanceFromEstimated}
}

// estimateDistance expects normalized names. More specific rules come first.
func estimateDistance(from, to string) float64 {
	fromColon, toColon := isColon(from), isColon(to)
	fromPTY, toPTY := isPTY(from), isPTY(to)

	switch {
	case fromColon && toColon:
		return estimateColonLocal
	case fromPTY && toPTY:
		return estimatePTYLocal
	case strings.Contains(from, "AIRPORT"):
		if strings.Contains(to, "COLON") {
			return estimateAirportColon
		}
		return estimateAirportPTY
	case strings.Contains(to, "AIRPORT"):
		if strings.Contains(from, "COLON") {
			return estimateAirportColon
		}
		return estimateAirportPTY
	case (fromPTY && toColon) || (fromColon && toPTY):
		return estimatePTYToColon
	}
	return estimateUnknownRoute
}

func isColon(name string) bool {
	return strings.Contains(name, "COLON") || strings.Contains(name, "CRISTOBAL")
}

// isPTY is the Panama City zone; the airport sits outside it
func isPTY(name string) bool {
	return strings.Contains(name, "PTY") && !strings.Contains(name, "AIRPORT")
}

func normalizeLocation(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func routeKey(from, to string) string {
	return normalizeLocation(from) + "|" + normalizeLocation(to)
}
