package pricing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/agency-pricing/pkg/common"
	"github.com/richxcame/agency-pricing/pkg/config"
	"github.com/richxcame/agency-pricing/pkg/eventbus"
	"github.com/richxcame/agency-pricing/pkg/logger"
	"github.com/richxcame/agency-pricing/pkg/tracing"
	"github.com/richxcame/agency-pricing/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// promo counters outlive the promotion window by this much
const promoCounterGrace = 24 * time.Hour

// Service handles pricing business logic
type Service struct {
	repo       RepositoryInterface
	calculator *Calculator
	conditions *ConditionEvaluator
	promos     *PromoCounter
	rateTable  *RateTable
	publisher  Publisher
	cfg        config.PricingConfig
	now        func() time.Time
}

// NewService creates a new pricing service. promos may be nil, in which case
// promo caps are checked against the stored currentUses only.
func NewService(repo RepositoryInterface, table *RateTable, conditions *ConditionEvaluator, promos *PromoCounter, cfg config.PricingConfig) *Service {
	var static []DistanceEntry
	if table != nil {
		static = table.StaticMatrix
	}

	return &Service{
		repo:       repo,
		calculator: NewCalculator(NewDistanceResolver(static), conditions, table),
		conditions: conditions,
		promos:     promos,
		rateTable:  table,
		cfg:        cfg,
		now:        time.Now,
	}
}

// ========================================
// CONFIGURATIONS
// ========================================

// CreateConfig validates and stores a new configuration
func (s *Service) CreateConfig(ctx context.Context, in ConfigInput, actorID *uuid.UUID) (*PricingConfiguration, error) {
	in.Code = normalizeCode(in.Code)
	if err := ValidateConfig(in, s.conditions); err != nil {
		return nil, validationError(err)
	}

	cfg := newConfiguration(in)
	cfg.CreatedBy = actorID
	cfg.UpdatedBy = actorID

	if err := s.repo.CreateConfig(ctx, cfg); err != nil {
		return nil, mapRepoError(err, "failed to create pricing configuration")
	}

	logger.InfoContext(ctx, "pricing configuration created",
		zap.String("config_id", cfg.ID.String()),
		zap.String("code", cfg.Code),
		zap.Bool("is_default", cfg.IsDefault),
	)
	s.publishEvent(ctx, eventbus.SubjectConfigCreated, configChanged(cfg, actorID))
	if cfg.IsActiveDefault() {
		s.publishEvent(ctx, eventbus.SubjectConfigActivated, configChanged(cfg, actorID))
	}
	return cfg, nil
}

// UpdateConfig applies a partial update. The write only succeeds if nobody
// else changed the configuration since it was read.
func (s *Service) UpdateConfig(ctx context.Context, id uuid.UUID, req UpdateConfigRequest, actorID *uuid.UUID) (*PricingConfiguration, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	existing, err := s.repo.GetConfigByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to get pricing configuration")
	}
	if req.Version != nil && *req.Version != existing.Version {
		return nil, common.NewConflictError("pricing configuration was modified, reload and retry", ErrVersionConflict)
	}
	wasActiveDefault := existing.IsActiveDefault()

	in := configInput(existing)
	req.apply(&in)
	in.Code = normalizeCode(in.Code)
	if err := ValidateConfig(in, s.conditions); err != nil {
		return nil, validationError(err)
	}

	updated := newConfiguration(in)
	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedBy = actorID

	if err := s.repo.UpdateConfig(ctx, updated, existing.Version); err != nil {
		return nil, mapRepoError(err, "failed to update pricing configuration")
	}

	s.publishEvent(ctx, eventbus.SubjectConfigUpdated, configChanged(updated, actorID))
	if updated.IsActiveDefault() && !wasActiveDefault {
		s.publishEvent(ctx, eventbus.SubjectConfigActivated, configChanged(updated, actorID))
	}
	return updated, nil
}

// CloneConfig copies a configuration. The copy is never the default.
func (s *Service) CloneConfig(ctx context.Context, id uuid.UUID, req CloneConfigRequest, actorID *uuid.UUID) (*PricingConfiguration, error) {
	src, err := s.repo.GetConfigByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to get pricing configuration")
	}

	in := configInput(src)
	in.IsDefault = false
	in.Name = src.Name + " (Copy)"
	if req.Name != "" {
		in.Name = req.Name
	}
	in.Code = src.Code + "_COPY"
	if req.Code != "" {
		in.Code = req.Code
	}

	return s.CreateConfig(ctx, in, actorID)
}

// ActivateConfig makes the configuration the single active default
func (s *Service) ActivateConfig(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*PricingConfiguration, error) {
	cfg, err := s.repo.ActivateConfig(ctx, id, actorID)
	if err != nil {
		return nil, mapRepoError(err, "failed to activate pricing configuration")
	}

	logger.InfoContext(ctx, "pricing configuration activated",
		zap.String("config_id", cfg.ID.String()),
		zap.String("code", cfg.Code),
	)
	s.publishEvent(ctx, eventbus.SubjectConfigActivated, configChanged(cfg, actorID))
	return cfg, nil
}

// DeleteConfig removes a configuration unless it is the active default
func (s *Service) DeleteConfig(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error {
	cfg, err := s.repo.GetConfigByID(ctx, id)
	if err != nil {
		return mapRepoError(err, "failed to get pricing configuration")
	}
	if cfg.IsActiveDefault() {
		return common.NewInvariantViolationError("cannot delete the active default configuration", ErrDeleteActiveDefault)
	}

	if err := s.repo.DeleteConfig(ctx, id); err != nil {
		return mapRepoError(err, "failed to delete pricing configuration")
	}

	logger.InfoContext(ctx, "pricing configuration deleted",
		zap.String("config_id", id.String()),
		zap.String("code", cfg.Code),
	)
	s.publishEvent(ctx, eventbus.SubjectConfigDeleted, configChanged(cfg, actorID))
	return nil
}

// ListConfigs lists configurations, default first then newest first
func (s *Service) ListConfigs(ctx context.Context, filter ListConfigsFilter) ([]*PricingConfiguration, int64, error) {
	configs, total, err := s.repo.ListConfigs(ctx, filter)
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list pricing configurations", err)
	}
	return configs, total, nil
}

// GetConfig returns a configuration by ID
func (s *Service) GetConfig(ctx context.Context, id uuid.UUID) (*PricingConfiguration, error) {
	cfg, err := s.repo.GetConfigByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to get pricing configuration")
	}
	return cfg, nil
}

// GetActiveConfig returns the active default configuration effective at the
// given time, or now when at is nil
func (s *Service) GetActiveConfig(ctx context.Context, at *time.Time) (*PricingConfiguration, error) {
	when := s.now()
	if at != nil {
		when = *at
	}

	cfg, err := s.repo.GetActiveDefault(ctx, when)
	if errors.Is(err, ErrConfigNotFound) {
		return nil, common.NewNotFoundError("no active pricing configuration", ErrNoActiveConfiguration)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to get active pricing configuration", err)
	}
	return cfg, nil
}

// ImportSeed stores the seed configuration of the rate table
func (s *Service) ImportSeed(ctx context.Context, actorID *uuid.UUID) (*PricingConfiguration, error) {
	if s.rateTable == nil {
		return nil, common.NewInternalError("rate table is not loaded", nil)
	}
	in, err := s.rateTable.SeedConfig()
	if err != nil {
		return nil, common.NewInternalError("failed to read seed configuration", err)
	}

	_, err = s.repo.GetConfigByCode(ctx, in.Code)
	switch {
	case err == nil:
		return nil, common.NewBadRequestError("configuration "+normalizeCode(in.Code)+" already exists", ErrDuplicateCode)
	case !errors.Is(err, ErrConfigNotFound):
		return nil, common.NewInternalError("failed to check existing configuration", err)
	}

	return s.CreateConfig(ctx, in, actorID)
}

// ========================================
// CALCULATION
// ========================================

// CalculatePrice prices a request against the named configuration, the
// active default, or the fallback rate table when neither exists
func (s *Service) CalculatePrice(ctx context.Context, req RateRequest) (*PriceResult, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, validationError(err)
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "pricing.calculate")
	defer span.End()

	cfg, err := s.resolveConfig(ctx, req.ConfigID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	result, err := s.calculate(ctx, cfg, req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return result, nil
}

// CalculateBatch prices several requests against one configuration.
// A failing item does not fail the batch.
func (s *Service) CalculateBatch(ctx context.Context, req BatchCalculateRequest) (*BatchCalculateResponse, error) {
	if len(req.Items) == 0 {
		return nil, common.NewValidationError("items must not be empty")
	}
	if limit := s.cfg.BatchMaxItems; limit > 0 && len(req.Items) > limit {
		return nil, common.NewValidationError("too many items in batch")
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "pricing.calculate_batch")
	defer span.End()

	cfg, err := s.resolveConfig(ctx, req.ConfigID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	resp := &BatchCalculateResponse{Results: make([]BatchItemResult, len(req.Items))}
	if cfg != nil {
		id := cfg.ID
		resp.ConfigID = &id
		resp.ConfigName = cfg.Name
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.BatchConcurrency, 1))
	for i, item := range req.Items {
		i, item := i, item
		g.Go(func() error {
			out := BatchItemResult{Index: i}
			if err := validation.ValidateStruct(item); err != nil {
				out.Error = errorInfo(validationError(err))
			} else if result, err := s.calculate(gctx, cfg, item); err != nil {
				out.Error = errorInfo(err)
			} else {
				out.Result = result
			}
			resp.Results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return resp, nil
}

// resolveConfig returns the requested configuration, the active default, or
// nil when the fallback table should be used
func (s *Service) resolveConfig(ctx context.Context, id *uuid.UUID) (*PricingConfiguration, error) {
	if id != nil {
		cfg, err := s.repo.GetConfigByID(ctx, *id)
		if err != nil {
			return nil, mapRepoError(err, "failed to get pricing configuration")
		}
		return cfg, nil
	}

	cfg, err := s.repo.GetActiveDefault(ctx, s.now())
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return nil, common.NewInternalError("failed to get active pricing configuration", err)
	}
	if !s.cfg.FallbackEnabled {
		return nil, common.NewNotFoundError("no active pricing configuration", ErrNoActiveConfiguration)
	}
	return nil, nil
}

func (s *Service) calculate(ctx context.Context, cfg *PricingConfiguration, req RateRequest) (*PriceResult, error) {
	start := time.Now()
	env := CalcEnv{Now: s.now()}

	var (
		result *PriceResult
		err    error
	)
	if cfg == nil {
		logger.WarnContext(ctx, "no active pricing configuration, using fallback rate table",
			zap.String("from", req.From),
			zap.String("to", req.To),
		)
		result, err = s.calculator.CalculateFallback(req, env)
	} else {
		env.PromoUses = s.promoUses(ctx, cfg, req.PromoCode)
		result, err = s.calculator.Calculate(cfg, req, env)
	}

	if errors.Is(err, ErrDistanceBandNotFound) {
		computationGapsTotal.Inc()
		return nil, common.NewComputationGapError("no distance band covers the route distance", err)
	}
	if errors.Is(err, ErrNoActiveConfiguration) {
		return nil, common.NewNotFoundError("no active pricing configuration", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to calculate price", err)
	}

	recordCalculation(result, time.Since(start).Seconds())

	configID := ""
	if result.ConfigID != nil {
		configID = result.ConfigID.String()
	}
	distance := 0.0
	if result.Distance != nil {
		distance = *result.Distance
	}
	tracing.AddSpanAttributes(ctx, tracing.QuoteAttributes(
		configID, string(result.Source), string(result.DistanceSource), distance, result.Price, result.Fallback,
	)...)

	return result, nil
}

// promoUses reads the shared redemption counter. Counter failures fall back
// to the stored currentUses.
func (s *Service) promoUses(ctx context.Context, cfg *PricingConfiguration, code string) int64 {
	if s.promos == nil || strings.TrimSpace(code) == "" {
		return 0
	}
	uses, err := s.promos.Uses(ctx, cfg.ID, code)
	if err != nil {
		logger.WarnContext(ctx, "failed to read promo usage",
			zap.String("config_id", cfg.ID.String()),
			zap.Error(err),
		)
		return 0
	}
	return uses
}

// ========================================
// QUOTES
// ========================================

// CreateQuote calculates a price and persists it
func (s *Service) CreateQuote(ctx context.Context, req RateRequest, actorID *uuid.UUID) (*PriceQuote, error) {
	result, err := s.CalculatePrice(ctx, req)
	if err != nil {
		return nil, err
	}

	quote := &PriceQuote{
		ID:          uuid.New(),
		ConfigID:    result.ConfigID,
		ConfigName:  result.ConfigName,
		Origin:      req.From,
		Destination: req.To,
		Price:       result.Price,
		Request:     req,
		Result:      *result,
		CreatedBy:   actorID,
	}
	if err := s.repo.CreateQuote(ctx, quote); err != nil {
		return nil, common.NewInternalError("failed to save price quote", err)
	}
	return quote, nil
}

// GetQuote returns a persisted quote. Its result is reported as coming from
// the database.
func (s *Service) GetQuote(ctx context.Context, id uuid.UUID) (*PriceQuote, error) {
	quote, err := s.repo.GetQuote(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to get price quote")
	}
	quote.Result.Source = SourceDatabase
	return quote, nil
}

// ========================================
// PROMOTIONS
// ========================================

// RedeemPromoCode records one use of a promotional code
func (s *Service) RedeemPromoCode(ctx context.Context, req RedeemPromoRequest, actorID *uuid.UUID) (*RedeemPromoResponse, error) {
	if s.promos == nil {
		return nil, common.NewInternalError("promo redemption is not available", nil)
	}

	cfg, err := s.resolveConfig(ctx, req.ConfigID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, common.NewNotFoundError("no active pricing configuration", ErrNoActiveConfiguration)
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var promo *PromotionalDiscount
	for i := range cfg.Discounts.PromotionalDiscounts {
		if strings.EqualFold(strings.TrimSpace(cfg.Discounts.PromotionalDiscounts[i].Code), code) {
			promo = &cfg.Discounts.PromotionalDiscounts[i]
			break
		}
	}
	if promo == nil {
		return nil, common.NewNotFoundError("promotional code not found", ErrPromoNotFound)
	}

	now := s.now()
	if (!promo.ValidFrom.IsZero() && now.Before(promo.ValidFrom)) || (!promo.ValidTo.IsZero() && now.After(promo.ValidTo)) {
		return nil, common.NewBadRequestError("promotional code is not valid at this time", nil)
	}

	maxUses := int64(-1)
	if promo.MaxUses != nil {
		maxUses = int64(*promo.MaxUses)
	}
	var ttl time.Duration
	if !promo.ValidTo.IsZero() {
		ttl = promo.ValidTo.Sub(now) + promoCounterGrace
	}

	uses, err := s.promos.Redeem(ctx, cfg.ID, code, int64(promo.CurrentUses), maxUses, ttl)
	if errors.Is(err, ErrPromoExhausted) {
		return nil, common.NewConflictError("promotional code has reached its usage limit", err)
	}
	if err != nil {
		return nil, common.NewInternalError("failed to redeem promotional code", err)
	}

	resp := &RedeemPromoResponse{
		ConfigID: cfg.ID,
		Code:     code,
		Uses:     uses,
		MaxUses:  promo.MaxUses,
	}
	evt := eventbus.PromoRedeemedData{
		ConfigID:   cfg.ID,
		Code:       code,
		Uses:       uses,
		RedeemedBy: actorID,
		RedeemedAt: now.UTC(),
	}
	if maxUses >= 0 {
		remaining := maxUses - uses
		resp.Remaining = &remaining
		evt.MaxUses = int(maxUses)
	}

	s.publishEvent(ctx, eventbus.SubjectPromoRedeemed, evt)
	return resp, nil
}

// ========================================
// HELPERS
// ========================================

func newConfiguration(in ConfigInput) *PricingConfiguration {
	return &PricingConfiguration{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(in.Name),
		Code:               in.Code,
		Description:        in.Description,
		MinimumPrice:       in.MinimumPrice,
		BaseFee:            in.BaseFee,
		DistanceRates:      in.DistanceRates,
		ServiceAdjustments: in.ServiceAdjustments,
		AdditionalCharges:  in.AdditionalCharges,
		Discounts:          in.Discounts,
		SAPCodeAdjustments: in.SAPCodeAdjustments,
		FixedRoutes:        in.FixedRoutes,
		DistanceMatrix:     in.DistanceMatrix,
		Locations:          in.Locations,
		TimeBasedPricing:   in.TimeBasedPricing,
		RoundingRules:      in.RoundingRules,
		IsActive:           in.IsActive,
		IsDefault:          in.IsDefault,
		EffectiveFrom:      in.EffectiveFrom,
		EffectiveTo:        in.EffectiveTo,
		Version:            1,
	}
}

func configInput(cfg *PricingConfiguration) ConfigInput {
	return ConfigInput{
		Name:               cfg.Name,
		Code:               cfg.Code,
		Description:        cfg.Description,
		MinimumPrice:       cfg.MinimumPrice,
		BaseFee:            cfg.BaseFee,
		DistanceRates:      cfg.DistanceRates,
		ServiceAdjustments: cfg.ServiceAdjustments,
		AdditionalCharges:  cfg.AdditionalCharges,
		Discounts:          cfg.Discounts,
		SAPCodeAdjustments: cfg.SAPCodeAdjustments,
		FixedRoutes:        cfg.FixedRoutes,
		DistanceMatrix:     cfg.DistanceMatrix,
		Locations:          cfg.Locations,
		TimeBasedPricing:   cfg.TimeBasedPricing,
		RoundingRules:      cfg.RoundingRules,
		IsActive:           cfg.IsActive,
		IsDefault:          cfg.IsDefault,
		EffectiveFrom:      cfg.EffectiveFrom,
		EffectiveTo:        cfg.EffectiveTo,
	}
}

// apply overlays the set fields of r onto in
func (r UpdateConfigRequest) apply(in *ConfigInput) {
	if r.Name != nil {
		in.Name = *r.Name
	}
	if r.Code != nil {
		in.Code = *r.Code
	}
	if r.Description != nil {
		in.Description = *r.Description
	}
	if r.MinimumPrice != nil {
		in.MinimumPrice = *r.MinimumPrice
	}
	if r.BaseFee != nil {
		in.BaseFee = *r.BaseFee
	}
	if r.DistanceRates != nil {
		in.DistanceRates = *r.DistanceRates
	}
	if r.ServiceAdjustments != nil {
		in.ServiceAdjustments = *r.ServiceAdjustments
	}
	if r.AdditionalCharges != nil {
		in.AdditionalCharges = *r.AdditionalCharges
	}
	if r.Discounts != nil {
		in.Discounts = *r.Discounts
	}
	if r.SAPCodeAdjustments != nil {
		in.SAPCodeAdjustments = *r.SAPCodeAdjustments
	}
	if r.FixedRoutes != nil {
		in.FixedRoutes = *r.FixedRoutes
	}
	if r.DistanceMatrix != nil {
		in.DistanceMatrix = *r.DistanceMatrix
	}
	if r.Locations != nil {
		in.Locations = *r.Locations
	}
	if r.TimeBasedPricing != nil {
		in.TimeBasedPricing = *r.TimeBasedPricing
	}
	if r.RoundingRules != nil {
		in.RoundingRules = *r.RoundingRules
	}
	if r.IsActive != nil {
		in.IsActive = *r.IsActive
	}
	if r.IsDefault != nil {
		in.IsDefault = *r.IsDefault
	}
	if r.EffectiveFrom != nil {
		in.EffectiveFrom = r.EffectiveFrom
	}
	if r.EffectiveTo != nil {
		in.EffectiveTo = r.EffectiveTo
	}
	if r.ClearEffectiveFrom {
		in.EffectiveFrom = nil
	}
	if r.ClearEffectiveTo {
		in.EffectiveTo = nil
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validationError turns a field validation failure into a 400
func validationError(err error) error {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		return common.NewValidationError(verr.Error())
	}
	return common.NewBadRequestError("invalid request", err)
}

// mapRepoError translates repository sentinels to API errors
func mapRepoError(err error, fallback string) error {
	switch {
	case errors.Is(err, ErrConfigNotFound):
		return common.NewNotFoundError("pricing configuration not found", err)
	case errors.Is(err, ErrQuoteNotFound):
		return common.NewNotFoundError("price quote not found", err)
	case errors.Is(err, ErrDuplicateCode):
		return common.NewConflictError("a configuration with this code already exists", err)
	case errors.Is(err, ErrVersionConflict):
		return common.NewConflictError("pricing configuration was modified, reload and retry", err)
	case errors.Is(err, ErrDefaultConflict):
		return common.NewConflictError("another configuration was activated at the same time, retry", err)
	case errors.Is(err, ErrDeleteActiveDefault):
		return common.NewInvariantViolationError("cannot delete the active default configuration", err)
	}
	return common.NewInternalError(fallback, err)
}

// errorInfo renders an error the way the response envelope does
func errorInfo(err error) *common.ErrorInfo {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return &common.ErrorInfo{Code: appErr.Code, ErrorCode: appErr.ErrorCode, Message: appErr.Message}
	}
	return &common.ErrorInfo{Code: http.StatusInternalServerError, ErrorCode: common.CodeInternal, Message: "internal error"}
}
