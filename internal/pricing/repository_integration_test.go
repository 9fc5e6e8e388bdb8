//go:build integration

package pricing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/agency-pricing/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationRepo(t *testing.T) *Repository {
	t.Helper()
	pool := helpers.SetupTestDatabase(t)
	helpers.ResetTables(t, pool, "price_quotes", "pricing_configurations")
	return NewRepository(pool)
}

func storedConfig(t *testing.T, repo *Repository, code string, activeDefault bool) *PricingConfiguration {
	t.Helper()
	in := validInput()
	in.Code = code
	in.Name = "Config " + code
	in.IsActive = activeDefault
	in.IsDefault = activeDefault
	in.FixedRoutes = []FixedRoute{{From: "HOTEL PTY", To: "PTY PORT", Price: 60, Conditions: "passengerCount <= 4"}}
	in.Discounts.PromotionalDiscounts = []PromotionalDiscount{{
		Code:       "SUMMER",
		Percentage: 10,
		ValidFrom:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:    time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		MaxUses:    intPtr(100),
	}}

	cfg := newConfiguration(in)
	require.NoError(t, repo.CreateConfig(context.Background(), cfg))
	return cfg
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()
	created := storedConfig(t, repo, "CREW", true)

	got, err := repo.GetConfigByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Code, got.Code)
	assert.Equal(t, created.DistanceRates, got.DistanceRates)
	assert.Equal(t, created.FixedRoutes, got.FixedRoutes)
	assert.Equal(t, 1, got.Version)
	require.Len(t, got.Discounts.PromotionalDiscounts, 1)
	assert.True(t, got.Discounts.PromotionalDiscounts[0].ValidTo.Equal(created.Discounts.PromotionalDiscounts[0].ValidTo))

	byCode, err := repo.GetConfigByCode(ctx, " crew ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)

	_, err = repo.GetConfigByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrConfigNotFound)

	dup := newConfiguration(validInput())
	dup.Code = "CREW"
	assert.ErrorIs(t, repo.CreateConfig(ctx, dup), ErrDuplicateCode)
}

func TestRepository_SingleDefault(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	first := storedConfig(t, repo, "FIRST", true)
	second := storedConfig(t, repo, "SECOND", true)

	active, err := repo.GetActiveDefault(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	reloaded, err := repo.GetConfigByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)
}

func TestRepository_ConcurrentActivation(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = storedConfig(t, repo, fmt.Sprintf("CFG%d", i), false).ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := repo.ActivateConfig(ctx, id, nil)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	active := true
	configs, total, err := repo.ListConfigs(ctx, ListConfigsFilter{IsActive: &active, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(len(ids)), total)

	defaults := 0
	for _, cfg := range configs {
		if cfg.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	assert.True(t, configs[0].IsDefault, "default is listed first")
}

func TestRepository_UpdateVersioning(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()
	cfg := storedConfig(t, repo, "CREW", false)

	cfg.Name = "Renamed"
	require.NoError(t, repo.UpdateConfig(ctx, cfg, 1))
	assert.Equal(t, 2, cfg.Version)

	stale := *cfg
	stale.Name = "Lost update"
	assert.ErrorIs(t, repo.UpdateConfig(ctx, &stale, 1), ErrVersionConflict)

	missing := newConfiguration(validInput())
	assert.ErrorIs(t, repo.UpdateConfig(ctx, missing, 1), ErrConfigNotFound)
}

func TestRepository_Delete(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()
	def := storedConfig(t, repo, "DEFAULT", true)
	other := storedConfig(t, repo, "OTHER", false)

	assert.ErrorIs(t, repo.DeleteConfig(ctx, def.ID), ErrDeleteActiveDefault)
	require.NoError(t, repo.DeleteConfig(ctx, other.ID))
	assert.ErrorIs(t, repo.DeleteConfig(ctx, other.ID), ErrConfigNotFound)
}

func TestRepository_EffectiveWindow(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	in := validInput()
	in.IsActive, in.IsDefault = true, true
	in.EffectiveFrom = &from
	cfg := newConfiguration(in)
	require.NoError(t, repo.CreateConfig(ctx, cfg))

	_, err := repo.GetActiveDefault(ctx, from.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrConfigNotFound)

	got, err := repo.GetActiveDefault(ctx, from.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, got.ID)
}

func TestRepository_Quotes(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()
	cfg := storedConfig(t, repo, "CREW", true)

	distance := 15.0
	quote := &PriceQuote{
		ID:          uuid.New(),
		ConfigID:    &cfg.ID,
		ConfigName:  cfg.Name,
		Origin:      "HOTEL PTY",
		Destination: "PTY PORT",
		Price:       85,
		Request:     RateRequest{From: "HOTEL PTY", To: "PTY PORT"},
		Result:      PriceResult{Price: 85, Source: SourceCalculated, Distance: &distance},
	}
	require.NoError(t, repo.CreateQuote(ctx, quote))
	assert.False(t, quote.CreatedAt.IsZero())

	got, err := repo.GetQuote(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.Price)
	assert.Equal(t, "PTY PORT", got.Request.To)
	assert.Equal(t, SourceCalculated, got.Result.Source)

	_, err = repo.GetQuote(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrQuoteNotFound)
}
