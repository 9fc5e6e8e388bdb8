package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// SubjectPrefix scopes every subject this service publishes.
const SubjectPrefix = "pricing."

// Subjects for pricing configuration lifecycle events.
const (
	SubjectConfigCreated   = "pricing.config.created"
	SubjectConfigUpdated   = "pricing.config.updated"
	SubjectConfigActivated = "pricing.config.activated"
	SubjectConfigDeleted   = "pricing.config.deleted"
	SubjectPromoRedeemed   = "pricing.promo.redeemed"
)

// ConfigChangedData is emitted whenever a pricing configuration is written.
type ConfigChangedData struct {
	ConfigID  uuid.UUID  `json:"config_id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Version   int        `json:"version"`
	IsActive  bool       `json:"is_active"`
	IsDefault bool       `json:"is_default"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	ChangedAt time.Time  `json:"changed_at"`
}

// PromoRedeemedData is emitted after a promotional code use is recorded.
type PromoRedeemedData struct {
	ConfigID   uuid.UUID  `json:"config_id"`
	Code       string     `json:"code"`
	Uses       int64      `json:"uses"`
	MaxUses    int        `json:"max_uses,omitempty"`
	RedeemedBy *uuid.UUID `json:"redeemed_by,omitempty"`
	RedeemedAt time.Time  `json:"redeemed_at"`
}
