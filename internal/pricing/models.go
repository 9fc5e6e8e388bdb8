package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/agency-pricing/pkg/common"
)

// AdjustmentType is how a service adjustment modifies the base price
type AdjustmentType string

const (
	AdjustmentPercentage AdjustmentType = "percentage"
	AdjustmentFixed      AdjustmentType = "fixed"
)

// SAPAdjustmentType is how a SAP code adjustment modifies the running price
type SAPAdjustmentType string

const (
	SAPMultiplier SAPAdjustmentType = "multiplier"
	SAPFixed      SAPAdjustmentType = "fixed"
	SAPPercentage SAPAdjustmentType = "percentage"
)

// RoundingMethod selects how the final price is rounded
type RoundingMethod string

const (
	RoundNone    RoundingMethod = "none"
	RoundUp      RoundingMethod = "up"
	RoundDown    RoundingMethod = "down"
	RoundNearest RoundingMethod = "nearest"
)

// PriceSource tells which path produced a price
type PriceSource string

const (
	SourceFixedRoute PriceSource = "fixed_route"
	SourceCalculated PriceSource = "calculated"
	SourceDatabase   PriceSource = "database"
)

// DistanceSource tells where a resolved distance came from
type DistanceSource string

const (
	DistanceFromConfig    DistanceSource = "config_matrix"
	DistanceFromStatic    DistanceSource = "static_matrix"
	DistanceFromEstimated DistanceSource = "estimated"
)

// Defaults applied when a configuration leaves a value at zero
const (
	DefaultBaseFee            = 25.0
	DefaultMinimumPrice       = 35.0
	DefaultWaitingHourRate    = 10.0
	DefaultExtraPassengerRate = 20.0
	DefaultRatePerKm          = 1.5
)

// PricingConfiguration is a named, versioned bundle of rate rules
type PricingConfiguration struct {
	ID                 uuid.UUID           `json:"id"`
	Name               string              `json:"name"`
	Code               string              `json:"code"`
	Description        string              `json:"description,omitempty"`
	MinimumPrice       float64             `json:"minimumPrice"`
	BaseFee            float64             `json:"baseFee"`
	DistanceRates      []DistanceRate      `json:"distanceRates"`
	ServiceAdjustments ServiceAdjustments  `json:"serviceAdjustments"`
	AdditionalCharges  AdditionalCharges   `json:"additionalCharges"`
	Discounts          Discounts           `json:"discounts"`
	SAPCodeAdjustments []SAPCodeAdjustment `json:"sapCodeAdjustments"`
	FixedRoutes        []FixedRoute        `json:"fixedRoutes"`
	DistanceMatrix     []DistanceEntry     `json:"distanceMatrix"`
	Locations          []Location          `json:"locations"`
	TimeBasedPricing   TimeBasedPricing    `json:"timeBasedPricing"`
	RoundingRules      RoundingRules       `json:"roundingRules"`

	IsActive      bool       `json:"isActive"`
	IsDefault     bool       `json:"isDefault"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
	CreatedBy     *uuid.UUID `json:"createdBy,omitempty"`
	UpdatedBy     *uuid.UUID `json:"updatedBy,omitempty"`
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsActiveDefault reports whether this configuration is the active default
func (c *PricingConfiguration) IsActiveDefault() bool {
	return c.IsDefault && c.IsActive
}

// DistanceRate is a closed [MinKm, MaxKm] band
type DistanceRate struct {
	MinKm      float64  `json:"minKm" yaml:"minKm" validate:"gte=0"`
	MaxKm      float64  `json:"maxKm" yaml:"maxKm" validate:"gt=0"`
	RatePerKm  float64  `json:"ratePerKm" yaml:"ratePerKm" validate:"gte=0"`
	FixedPrice *float64 `json:"fixedPrice,omitempty" yaml:"fixedPrice,omitempty" validate:"omitempty,gte=0"`
}

// Adjustment is a percentage of the base price or a flat amount
type Adjustment struct {
	Type  AdjustmentType `json:"type" validate:"required,adjustment_type"`
	Value float64        `json:"value"`
}

// CustomAdjustment is a named adjustment selectable through serviceType
type CustomAdjustment struct {
	Name  string         `json:"name" validate:"required"`
	Type  AdjustmentType `json:"type" validate:"required,adjustment_type"`
	Value float64        `json:"value"`
}

// ServiceAdjustments maps each service type to its configured adjustment
type ServiceAdjustments struct {
	Airport   *Adjustment        `json:"airport,omitempty"`
	Medical   *Adjustment        `json:"medical,omitempty"`
	VIP       *Adjustment        `json:"vip,omitempty"`
	Security  *Adjustment        `json:"security,omitempty"`
	Emergency *Adjustment        `json:"emergency,omitempty"`
	Weekend   *Adjustment        `json:"weekend,omitempty"`
	Holiday   *Adjustment        `json:"holiday,omitempty"`
	NightTime *Adjustment        `json:"nightTime,omitempty"`
	Custom    []CustomAdjustment `json:"custom,omitempty" validate:"dive"`
}

// CustomCharge is an extra named charge kept on the configuration for invoicing
type CustomCharge struct {
	Name   string  `json:"name" validate:"required"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

// AdditionalCharges holds per-unit surcharges
type AdditionalCharges struct {
	WaitingHourRate    float64        `json:"waitingHourRate" validate:"gte=0"`
	ExtraPassengerRate float64        `json:"extraPassengerRate" validate:"gte=0"`
	LuggageRate        *float64       `json:"luggageRate,omitempty" validate:"omitempty,gte=0"`
	TollsIncluded      bool           `json:"tollsIncluded,omitempty"`
	FuelSurcharge      *float64       `json:"fuelSurcharge,omitempty" validate:"omitempty,gte=0"`
	CustomCharges      []CustomCharge `json:"customCharges,omitempty" validate:"dive"`
}

// VolumeDiscount applies once a client has booked at least MinServices
type VolumeDiscount struct {
	MinServices int     `json:"minServices" validate:"gte=1"`
	Percentage  float64 `json:"percentage" validate:"gte=0,lte=100"`
}

// ClientDiscount applies to a single client
type ClientDiscount struct {
	ClientID   string     `json:"clientId" validate:"required"`
	Percentage float64    `json:"percentage" validate:"gte=0,lte=100"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidTo    *time.Time `json:"validTo,omitempty"`
}

// PromotionalDiscount is a promo code with a validity window and optional usage cap
type PromotionalDiscount struct {
	Code        string    `json:"code" validate:"required"`
	Percentage  float64   `json:"percentage" validate:"gte=0,lte=100"`
	ValidFrom   time.Time `json:"validFrom"`
	ValidTo     time.Time `json:"validTo"`
	MaxUses     *int      `json:"maxUses,omitempty" validate:"omitempty,gte=0"`
	CurrentUses int       `json:"currentUses" validate:"gte=0"`
}

// Discounts groups the competing discount sources
type Discounts struct {
	VolumeDiscounts      []VolumeDiscount      `json:"volumeDiscounts,omitempty" validate:"dive"`
	ClientDiscounts      []ClientDiscount      `json:"clientDiscounts,omitempty" validate:"dive"`
	PromotionalDiscounts []PromotionalDiscount `json:"promotionalDiscounts,omitempty" validate:"dive"`
}

// SAPCodeAdjustment modulates the price for a billing-system service code
type SAPCodeAdjustment struct {
	Code            string            `json:"code" validate:"required"`
	Description     string            `json:"description,omitempty"`
	AdjustmentType  SAPAdjustmentType `json:"adjustmentType" validate:"required,sap_adjustment_type"`
	AdjustmentValue float64           `json:"adjustmentValue"`
	Priority        int               `json:"priority"`
}

// FixedRoute is a negotiated flat price for an origin/destination pair
type FixedRoute struct {
	From       string  `json:"from" validate:"required"`
	To         string  `json:"to" validate:"required"`
	Price      float64 `json:"price" validate:"gte=0"`
	SAPCode    string  `json:"sapCode,omitempty"`
	Conditions string  `json:"conditions,omitempty"`
}

// DistanceEntry is one symmetric distance between two named locations
type DistanceEntry struct {
	From          string   `json:"from" yaml:"from" validate:"required"`
	To            string   `json:"to" yaml:"to" validate:"required"`
	Distance      float64  `json:"distance" yaml:"distance" validate:"gte=0"`
	EstimatedTime *int     `json:"estimatedTime,omitempty" yaml:"estimatedTime,omitempty"`
	TollCost      *float64 `json:"tollCost,omitempty" yaml:"tollCost,omitempty"`
}

// Location is a catalog entry; descriptive only
type Location struct {
	Name      string   `json:"name" validate:"required"`
	Category  string   `json:"category,omitempty"`
	Zone      string   `json:"zone,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// NightHours is a surcharge window that may wrap midnight
type NightHours struct {
	Start               string  `json:"start" validate:"required,hhmm"`
	End                 string  `json:"end" validate:"required,hhmm"`
	SurchargePercentage float64 `json:"surchargePercentage" validate:"gte=0"`
}

// PeakHours is a surcharge window limited to some weekdays
type PeakHours struct {
	Start               string   `json:"start" validate:"required,hhmm"`
	End                 string   `json:"end" validate:"required,hhmm"`
	Days                []string `json:"days,omitempty"`
	SurchargePercentage float64  `json:"surchargePercentage" validate:"gte=0"`
}

// TimeBasedPricing holds night and peak surcharge windows
type TimeBasedPricing struct {
	Enabled    bool        `json:"enabled"`
	NightHours *NightHours `json:"nightHours,omitempty"`
	PeakHours  []PeakHours `json:"peakHours,omitempty" validate:"dive"`
}

// RoundingRules controls final price rounding at 10^-precision
type RoundingRules struct {
	Method    RoundingMethod `json:"method" yaml:"method" validate:"omitempty,rounding_method"`
	Precision int            `json:"precision" yaml:"precision" validate:"gte=0,lte=6"`
}

// RateRequest is the input to a price calculation
type RateRequest struct {
	ConfigID         *uuid.UUID `json:"configId,omitempty"`
	From             string     `json:"from" binding:"required" validate:"required"`
	To               string     `json:"to" binding:"required" validate:"required"`
	ServiceDate      string     `json:"serviceDate,omitempty" validate:"omitempty,service_date"`
	ServiceTime      string     `json:"serviceTime,omitempty" validate:"omitempty,hhmm"`
	PassengerCount   int        `json:"passengerCount" validate:"gte=0"`
	WaitingHours     float64    `json:"waitingHours" validate:"gte=0"`
	ServiceType      string     `json:"serviceType,omitempty"`
	SAPCode          string     `json:"sapCode,omitempty"`
	PromoCode        string     `json:"promoCode,omitempty"`
	ClientID         string     `json:"clientId,omitempty"`
	IsVIP            bool       `json:"isVIP,omitempty"`
	IsSecurity       bool       `json:"isSecurity,omitempty"`
	ServiceCount     *int       `json:"serviceCount,omitempty" validate:"omitempty,gte=0"`
	AllowDefaultRate bool       `json:"allowDefaultRate,omitempty"`
}

// Breakdown itemizes every contribution to a price
type Breakdown struct {
	BaseFee              float64  `json:"baseFee"`
	DistanceCharge       float64  `json:"distanceCharge"`
	BandRatePerKm        float64  `json:"bandRatePerKm"`
	BandFixedPrice       *float64 `json:"bandFixedPrice,omitempty"`
	ServiceAdjustment    float64  `json:"serviceAdjustment"`
	AppliedServiceTypes  []string `json:"appliedServiceTypes,omitempty"`
	TimeSurcharge        float64  `json:"timeSurcharge"`
	SAPAdjustment        float64  `json:"sapAdjustment"`
	SAPCode              string   `json:"sapCode,omitempty"`
	WaitingCharge        float64  `json:"waitingCharge"`
	ExtraPassengerCharge float64  `json:"extraPassengerCharge"`
	FixedRoutePrice      *float64 `json:"fixedRoutePrice,omitempty"`
	Subtotal             float64  `json:"subtotal"`
	Discount             float64  `json:"discount"`
	DiscountSource       string   `json:"discountSource,omitempty"`
	MinimumPrice         float64  `json:"minimumPrice"`
	MinimumApplied       bool     `json:"minimumApplied"`
	RoundingAdjustment   float64  `json:"roundingAdjustment"`
	BandFallback         bool     `json:"bandFallback,omitempty"`
}

// PriceResult is the outcome of a price calculation
type PriceResult struct {
	Price          float64        `json:"price"`
	Source         PriceSource    `json:"source"`
	Distance       *float64       `json:"distance,omitempty"`
	DistanceSource DistanceSource `json:"distanceSource,omitempty"`
	ConfigID       *uuid.UUID     `json:"configId,omitempty"`
	ConfigName     string         `json:"configName,omitempty"`
	Fallback       bool           `json:"fallback"`
	Breakdown      Breakdown      `json:"breakdown"`
}

// PriceQuote is a persisted calculation
type PriceQuote struct {
	ID          uuid.UUID   `json:"id"`
	ConfigID    *uuid.UUID  `json:"configId,omitempty"`
	ConfigName  string      `json:"configName,omitempty"`
	Origin      string      `json:"origin"`
	Destination string      `json:"destination"`
	Price       float64     `json:"price"`
	Request     RateRequest `json:"request"`
	Result      PriceResult `json:"result"`
	CreatedBy   *uuid.UUID  `json:"createdBy,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// ========================================
// REQUEST/RESPONSE TYPES
// ========================================

// ConfigInput carries every writable rule field of a configuration
type ConfigInput struct {
	Name               string              `json:"name" binding:"required" validate:"required,max=200"`
	Code               string              `json:"code" binding:"required" validate:"required,config_code"`
	Description        string              `json:"description,omitempty"`
	MinimumPrice       float64             `json:"minimumPrice" validate:"gte=0"`
	BaseFee            float64             `json:"baseFee" validate:"gte=0"`
	DistanceRates      []DistanceRate      `json:"distanceRates" validate:"dive"`
	ServiceAdjustments ServiceAdjustments  `json:"serviceAdjustments"`
	AdditionalCharges  AdditionalCharges   `json:"additionalCharges"`
	Discounts          Discounts           `json:"discounts"`
	SAPCodeAdjustments []SAPCodeAdjustment `json:"sapCodeAdjustments" validate:"dive"`
	FixedRoutes        []FixedRoute        `json:"fixedRoutes" validate:"dive"`
	DistanceMatrix     []DistanceEntry     `json:"distanceMatrix" validate:"dive"`
	Locations          []Location          `json:"locations" validate:"dive"`
	TimeBasedPricing   TimeBasedPricing    `json:"timeBasedPricing"`
	RoundingRules      RoundingRules       `json:"roundingRules"`
	IsActive           bool                `json:"isActive"`
	IsDefault          bool                `json:"isDefault"`
	EffectiveFrom      *time.Time          `json:"effectiveFrom,omitempty"`
	EffectiveTo        *time.Time          `json:"effectiveTo,omitempty"`
}

// UpdateConfigRequest is a partial update; nil fields are left unchanged.
// When Version is set it must match the stored version.
type UpdateConfigRequest struct {
	Version            *int                 `json:"version,omitempty"`
	Name               *string              `json:"name,omitempty" validate:"omitempty,max=200"`
	Code               *string              `json:"code,omitempty" validate:"omitempty,config_code"`
	Description        *string              `json:"description,omitempty"`
	MinimumPrice       *float64             `json:"minimumPrice,omitempty" validate:"omitempty,gte=0"`
	BaseFee            *float64             `json:"baseFee,omitempty" validate:"omitempty,gte=0"`
	DistanceRates      *[]DistanceRate      `json:"distanceRates,omitempty" validate:"omitempty,dive"`
	ServiceAdjustments *ServiceAdjustments  `json:"serviceAdjustments,omitempty"`
	AdditionalCharges  *AdditionalCharges   `json:"additionalCharges,omitempty"`
	Discounts          *Discounts           `json:"discounts,omitempty"`
	SAPCodeAdjustments *[]SAPCodeAdjustment `json:"sapCodeAdjustments,omitempty" validate:"omitempty,dive"`
	FixedRoutes        *[]FixedRoute        `json:"fixedRoutes,omitempty" validate:"omitempty,dive"`
	DistanceMatrix     *[]DistanceEntry     `json:"distanceMatrix,omitempty" validate:"omitempty,dive"`
	Locations          *[]Location          `json:"locations,omitempty" validate:"omitempty,dive"`
	TimeBasedPricing   *TimeBasedPricing    `json:"timeBasedPricing,omitempty"`
	RoundingRules      *RoundingRules       `json:"roundingRules,omitempty"`
	IsActive           *bool                `json:"isActive,omitempty"`
	IsDefault          *bool                `json:"isDefault,omitempty"`
	EffectiveFrom      *time.Time           `json:"effectiveFrom,omitempty"`
	EffectiveTo        *time.Time           `json:"effectiveTo,omitempty"`

	// Clear flags reset the effective window bounds to unbounded
	ClearEffectiveFrom bool `json:"clearEffectiveFrom,omitempty" validate:"excluded_with=EffectiveFrom"`
	ClearEffectiveTo   bool `json:"clearEffectiveTo,omitempty" validate:"excluded_with=EffectiveTo"`
}

// CloneConfigRequest optionally renames the copy
type CloneConfigRequest struct {
	Name string `json:"name,omitempty" validate:"omitempty,max=200"`
	Code string `json:"code,omitempty" validate:"omitempty,config_code"`
}

// ListConfigsFilter narrows the configuration listing
type ListConfigsFilter struct {
	IsActive *bool
	Search   string
	Limit    int
	Offset   int
}

// BatchCalculateRequest prices several routes against one configuration
type BatchCalculateRequest struct {
	ConfigID *uuid.UUID    `json:"configId,omitempty"`
	Items    []RateRequest `json:"items" binding:"required,min=1"`
}

// BatchItemResult is one entry of a batch response, in request order
type BatchItemResult struct {
	Index  int               `json:"index"`
	Result *PriceResult      `json:"result,omitempty"`
	Error  *common.ErrorInfo `json:"error,omitempty"`
}

// BatchCalculateResponse lists per-item outcomes
type BatchCalculateResponse struct {
	ConfigID   *uuid.UUID        `json:"configId,omitempty"`
	ConfigName string            `json:"configName,omitempty"`
	Results    []BatchItemResult `json:"results"`
}

// RedeemPromoRequest records one use of a promotional code
type RedeemPromoRequest struct {
	ConfigID *uuid.UUID `json:"configId,omitempty"`
	Code     string     `json:"code" binding:"required" validate:"required"`
}

// RedeemPromoResponse reports the counter after a redemption
type RedeemPromoResponse struct {
	ConfigID  uuid.UUID `json:"configId"`
	Code      string    `json:"code"`
	Uses      int64     `json:"uses"`
	MaxUses   *int      `json:"maxUses,omitempty"`
	Remaining *int64    `json:"remaining,omitempty"`
}
