package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/agency-pricing/pkg/async"
	"github.com/richxcame/agency-pricing/pkg/eventbus"
)

const (
	eventSource         = "pricing-service"
	eventPublishTimeout = 5 * time.Second
)

// Publisher delivers domain events; *eventbus.Bus satisfies it
type Publisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// SetPublisher sets the event publisher for configuration and promo events
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// publishEvent publishes an event asynchronously after the write committed
func (s *Service) publishEvent(ctx context.Context, subject string, data interface{}) {
	if s.publisher == nil {
		return
	}
	publisher := s.publisher

	async.GoWithTimeout(ctx, "publish "+subject, eventPublishTimeout, func(ctx context.Context) error {
		evt, err := eventbus.NewEvent(subject, eventSource, data)
		if err != nil {
			return err
		}
		return publisher.Publish(ctx, subject, evt)
	})
}

func configChanged(cfg *PricingConfiguration, actorID *uuid.UUID) eventbus.ConfigChangedData {
	return eventbus.ConfigChangedData{
		ConfigID:  cfg.ID,
		Code:      cfg.Code,
		Name:      cfg.Name,
		Version:   cfg.Version,
		IsActive:  cfg.IsActive,
		IsDefault: cfg.IsDefault,
		ActorID:   actorID,
		ChangedAt: time.Now().UTC(),
	}
}
