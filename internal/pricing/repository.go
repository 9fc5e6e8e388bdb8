package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/agency-pricing/pkg/database"
	"github.com/richxcame/agency-pricing/pkg/tracing"
)

const (
	tracerName = "pricing"

	codeConstraint    = "pricing_configurations_code_key"
	defaultConstraint = "pricing_configurations_single_default"

	// Serializes every write that can make a configuration the active default
	defaultLockKey int64 = 0x70726963696e67 // "pricing"
)

const configColumns = `
	id, name, code, COALESCE(description, ''), minimum_price, base_fee,
	distance_rates, service_adjustments, additional_charges, discounts,
	sap_code_adjustments, fixed_routes, distance_matrix, locations,
	time_based_pricing, rounding_rules,
	is_active, is_default, effective_from, effective_to,
	created_by, updated_by, version, created_at, updated_at`

// RepositoryInterface defines the persistence operations used by the service
type RepositoryInterface interface {
	CreateConfig(ctx context.Context, cfg *PricingConfiguration) error
	GetConfigByID(ctx context.Context, id uuid.UUID) (*PricingConfiguration, error)
	GetConfigByCode(ctx context.Context, code string) (*PricingConfiguration, error)
	GetActiveDefault(ctx context.Context, at time.Time) (*PricingConfiguration, error)
	ListConfigs(ctx context.Context, filter ListConfigsFilter) ([]*PricingConfiguration, int64, error)
	UpdateConfig(ctx context.Context, cfg *PricingConfiguration, expectedVersion int) error
	ActivateConfig(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*PricingConfiguration, error)
	DeleteConfig(ctx context.Context, id uuid.UUID) error
	CreateQuote(ctx context.Context, quote *PriceQuote) error
	GetQuote(ctx context.Context, id uuid.UUID) (*PriceQuote, error)
}

// Repository handles database operations for pricing configurations
type Repository struct {
	db    *pgxpool.Pool
	retry database.RetryConfig
}

// NewRepository creates a new pricing repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, retry: database.DefaultTxRetryConfig()}
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ========================================
// CONFIGURATIONS
// ========================================

// CreateConfig inserts a configuration. When it is the active default, every
// other configuration loses its default flag in the same transaction.
func (r *Repository) CreateConfig(ctx context.Context, cfg *PricingConfiguration) error {
	rules, err := marshalRules(cfg)
	if err != nil {
		return err
	}

	return tracing.TraceDB(ctx, tracerName, "insert", "pricing_configurations", func(ctx context.Context) error {
		err := database.RetryableTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
			if cfg.IsActiveDefault() {
				if err := unsetOtherDefaults(ctx, tx, cfg.ID); err != nil {
					return err
				}
			}

			query := `
				INSERT INTO pricing_configurations (
					id, name, code, description, minimum_price, base_fee,
					distance_rates, service_adjustments, additional_charges, discounts,
					sap_code_adjustments, fixed_routes, distance_matrix, locations,
					time_based_pricing, rounding_rules,
					is_active, is_default, effective_from, effective_to,
					created_by, updated_by, version
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
				          $17, $18, $19, $20, $21, $22, $23)
				RETURNING created_at, updated_at
			`
			args := append([]any{cfg.ID, cfg.Name, cfg.Code, cfg.Description, cfg.MinimumPrice, cfg.BaseFee}, rules...)
			args = append(args,
				cfg.IsActive, cfg.IsDefault, cfg.EffectiveFrom, cfg.EffectiveTo,
				cfg.CreatedBy, cfg.UpdatedBy, cfg.Version,
			)
			return tx.QueryRow(ctx, query, args...).Scan(&cfg.CreatedAt, &cfg.UpdatedAt)
		})
		if sentinel := uniqueViolation(err); sentinel != nil {
			return sentinel
		}
		if err != nil {
			return fmt.Errorf("failed to create pricing configuration: %w", err)
		}
		return nil
	})
}

// GetConfigByID retrieves a configuration by ID
func (r *Repository) GetConfigByID(ctx context.Context, id uuid.UUID) (*PricingConfiguration, error) {
	query := `SELECT ` + configColumns + ` FROM pricing_configurations WHERE id = $1`
	return r.getOne(ctx, r.db, query, id)
}

// GetConfigByCode retrieves a configuration by its unique code
func (r *Repository) GetConfigByCode(ctx context.Context, code string) (*PricingConfiguration, error) {
	query := `SELECT ` + configColumns + ` FROM pricing_configurations WHERE code = $1`
	return r.getOne(ctx, r.db, query, strings.ToUpper(strings.TrimSpace(code)))
}

// GetActiveDefault returns the active default configuration effective at the given time
func (r *Repository) GetActiveDefault(ctx context.Context, at time.Time) (*PricingConfiguration, error) {
	query := `SELECT ` + configColumns + `
		FROM pricing_configurations
		WHERE is_default = true
		  AND is_active = true
		  AND (effective_from IS NULL OR effective_from <= $1)
		  AND (effective_to IS NULL OR effective_to > $1)
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, r.db, query, at)
}

// ListConfigs lists configurations, default first then newest first
func (r *Repository) ListConfigs(ctx context.Context, filter ListConfigsFilter) ([]*PricingConfiguration, int64, error) {
	whereClause := "WHERE 1=1"
	args := make([]interface{}, 0)
	argIndex := 1

	if filter.IsActive != nil {
		whereClause += fmt.Sprintf(" AND is_active = $%d", argIndex)
		args = append(args, *filter.IsActive)
		argIndex++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		whereClause += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex, argIndex)
		args = append(args, "%"+search+"%")
		argIndex++
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM pricing_configurations %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count pricing configurations: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM pricing_configurations %s
		ORDER BY is_default DESC, created_at DESC
		LIMIT $%d OFFSET $%d
	`, configColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	configs := make([]*PricingConfiguration, 0)
	err := tracing.TraceDB(ctx, tracerName, "select", "pricing_configurations", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			cfg, err := scanConfig(rows)
			if err != nil {
				return err
			}
			configs = append(configs, cfg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pricing configurations: %w", err)
	}

	return configs, total, nil
}

// UpdateConfig writes every field of cfg if the stored version still equals
// expectedVersion, then bumps the version.
func (r *Repository) UpdateConfig(ctx context.Context, cfg *PricingConfiguration, expectedVersion int) error {
	rules, err := marshalRules(cfg)
	if err != nil {
		return err
	}

	return tracing.TraceDB(ctx, tracerName, "update", "pricing_configurations", func(ctx context.Context) error {
		err := database.RetryableTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
			if cfg.IsActiveDefault() {
				if err := unsetOtherDefaults(ctx, tx, cfg.ID); err != nil {
					return err
				}
			}

			query := `
				UPDATE pricing_configurations SET
					name = $2, code = $3, description = $4, minimum_price = $5, base_fee = $6,
					distance_rates = $7, service_adjustments = $8, additional_charges = $9,
					discounts = $10, sap_code_adjustments = $11, fixed_routes = $12,
					distance_matrix = $13, locations = $14, time_based_pricing = $15,
					rounding_rules = $16, is_active = $17, is_default = $18,
					effective_from = $19, effective_to = $20, updated_by = $21,
					version = version + 1, updated_at = NOW()
				WHERE id = $1 AND version = $22
				RETURNING version, updated_at
			`
			args := append([]any{cfg.ID, cfg.Name, cfg.Code, cfg.Description, cfg.MinimumPrice, cfg.BaseFee}, rules...)
			args = append(args,
				cfg.IsActive, cfg.IsDefault, cfg.EffectiveFrom, cfg.EffectiveTo,
				cfg.UpdatedBy, expectedVersion,
			)

			err := tx.QueryRow(ctx, query, args...).Scan(&cfg.Version, &cfg.UpdatedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				return r.missingOrConflict(ctx, tx, cfg.ID)
			}
			return err
		})
		if err == nil || errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrVersionConflict) {
			return err
		}
		if sentinel := uniqueViolation(err); sentinel != nil {
			return sentinel
		}
		return fmt.Errorf("failed to update pricing configuration: %w", err)
	})
}

// ActivateConfig makes a configuration the single active default
func (r *Repository) ActivateConfig(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*PricingConfiguration, error) {
	var cfg *PricingConfiguration
	err := tracing.TraceDB(ctx, tracerName, "update", "pricing_configurations", func(ctx context.Context) error {
		return database.RetryableTransaction(ctx, r.db, r.retry, func(tx pgx.Tx) error {
			if err := unsetOtherDefaults(ctx, tx, id); err != nil {
				return err
			}

			query := `
				UPDATE pricing_configurations SET
					is_active = true, is_default = true, updated_by = $2,
					version = version + 1, updated_at = NOW()
				WHERE id = $1
				RETURNING ` + configColumns
			c, err := scanConfig(tx.QueryRow(ctx, query, id, actorID))
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrConfigNotFound
			}
			if err != nil {
				return err
			}
			cfg = c
			return nil
		})
	})
	if errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}
	if sentinel := uniqueViolation(err); sentinel != nil {
		return nil, sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("failed to activate pricing configuration: %w", err)
	}
	return cfg, nil
}

// DeleteConfig deletes a configuration unless it is the active default
func (r *Repository) DeleteConfig(ctx context.Context, id uuid.UUID) error {
	return tracing.TraceDB(ctx, tracerName, "delete", "pricing_configurations", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			DELETE FROM pricing_configurations
			WHERE id = $1 AND NOT (is_default AND is_active)
		`, id)
		if err != nil {
			return fmt.Errorf("failed to delete pricing configuration: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pricing_configurations WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check pricing configuration: %w", err)
		}
		if exists {
			return ErrDeleteActiveDefault
		}
		return ErrConfigNotFound
	})
}

// uniqueViolation maps a unique constraint violation to its sentinel, or nil
func uniqueViolation(err error) error {
	switch {
	case database.IsUniqueViolation(err, codeConstraint):
		return ErrDuplicateCode
	case database.IsUniqueViolation(err, defaultConstraint):
		return ErrDefaultConflict
	}
	return nil
}

// unsetOtherDefaults takes the default lock and clears is_default everywhere but keepID
func unsetOtherDefaults(ctx context.Context, tx pgx.Tx, keepID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, defaultLockKey); err != nil {
		return fmt.Errorf("failed to lock default configuration: %w", err)
	}
	_, err := tx.Exec(ctx, `
		UPDATE pricing_configurations SET is_default = false, updated_at = NOW()
		WHERE is_default = true AND id <> $1
	`, keepID)
	if err != nil {
		return fmt.Errorf("failed to unset default configurations: %w", err)
	}
	return nil
}

func (r *Repository) missingOrConflict(ctx context.Context, q querier, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pricing_configurations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrVersionConflict
	}
	return ErrConfigNotFound
}

func (r *Repository) getOne(ctx context.Context, q querier, query string, args ...any) (*PricingConfiguration, error) {
	var cfg *PricingConfiguration
	err := tracing.TraceDB(ctx, tracerName, "select", "pricing_configurations", func(ctx context.Context) error {
		c, err := scanConfig(q.QueryRow(ctx, query, args...))
		if err != nil {
			return err
		}
		cfg = c
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing configuration: %w", err)
	}
	return cfg, nil
}

// scanConfig reads one row selected with configColumns
func scanConfig(row pgx.Row) (*PricingConfiguration, error) {
	cfg := &PricingConfiguration{}
	var (
		distanceRates, serviceAdjustments, additionalCharges, discounts []byte
		sapAdjustments, fixedRoutes, distanceMatrix, locations          []byte
		timeBased, rounding                                             []byte
	)

	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.Code, &cfg.Description, &cfg.MinimumPrice, &cfg.BaseFee,
		&distanceRates, &serviceAdjustments, &additionalCharges, &discounts,
		&sapAdjustments, &fixedRoutes, &distanceMatrix, &locations,
		&timeBased, &rounding,
		&cfg.IsActive, &cfg.IsDefault, &cfg.EffectiveFrom, &cfg.EffectiveTo,
		&cfg.CreatedBy, &cfg.UpdatedBy, &cfg.Version, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		name string
		raw  []byte
		dst  interface{}
	}{
		{"distance_rates", distanceRates, &cfg.DistanceRates},
		{"service_adjustments", serviceAdjustments, &cfg.ServiceAdjustments},
		{"additional_charges", additionalCharges, &cfg.AdditionalCharges},
		{"discounts", discounts, &cfg.Discounts},
		{"sap_code_adjustments", sapAdjustments, &cfg.SAPCodeAdjustments},
		{"fixed_routes", fixedRoutes, &cfg.FixedRoutes},
		{"distance_matrix", distanceMatrix, &cfg.DistanceMatrix},
		{"locations", locations, &cfg.Locations},
		{"time_based_pricing", timeBased, &cfg.TimeBasedPricing},
		{"rounding_rules", rounding, &cfg.RoundingRules},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
	}

	return cfg, nil
}

// marshalRules encodes the JSONB rule columns in column order
func marshalRules(cfg *PricingConfiguration) ([]any, error) {
	values := []interface{}{
		nonNil(cfg.DistanceRates), cfg.ServiceAdjustments, cfg.AdditionalCharges, cfg.Discounts,
		nonNil(cfg.SAPCodeAdjustments), nonNil(cfg.FixedRoutes), nonNil(cfg.DistanceMatrix), nonNil(cfg.Locations),
		cfg.TimeBasedPricing, cfg.RoundingRules,
	}
	out := make([]any, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pricing rules: %w", err)
		}
		out[i] = b
	}
	return out, nil
}

// nonNil keeps empty collections as [] rather than null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ========================================
// QUOTES
// ========================================

// CreateQuote persists a calculated price
func (r *Repository) CreateQuote(ctx context.Context, quote *PriceQuote) error {
	request, err := json.Marshal(quote.Request)
	if err != nil {
		return fmt.Errorf("failed to encode quote request: %w", err)
	}
	result, err := json.Marshal(quote.Result)
	if err != nil {
		return fmt.Errorf("failed to encode quote result: %w", err)
	}

	err = tracing.TraceDB(ctx, tracerName, "insert", "price_quotes", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			INSERT INTO price_quotes (id, config_id, config_name, origin, destination, price, request, result, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`, quote.ID, quote.ConfigID, quote.ConfigName, quote.Origin, quote.Destination,
			quote.Price, request, result, quote.CreatedBy,
		).Scan(&quote.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create price quote: %w", err)
	}
	return nil
}

// GetQuote retrieves a persisted quote
func (r *Repository) GetQuote(ctx context.Context, id uuid.UUID) (*PriceQuote, error) {
	q := &PriceQuote{}
	var request, result []byte
	var configName *string

	err := tracing.TraceDB(ctx, tracerName, "select", "price_quotes", func(ctx context.Context) error {
		return r.db.QueryRow(ctx, `
			SELECT id, config_id, config_name, origin, destination, price, request, result, created_by, created_at
			FROM price_quotes WHERE id = $1
		`, id).Scan(
			&q.ID, &q.ConfigID, &configName, &q.Origin, &q.Destination, &q.Price,
			&request, &result, &q.CreatedBy, &q.CreatedAt,
		)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price quote: %w", err)
	}

	if configName != nil {
		q.ConfigName = *configName
	}
	if err := json.Unmarshal(request, &q.Request); err != nil {
		return nil, fmt.Errorf("failed to parse quote request: %w", err)
	}
	if err := json.Unmarshal(result, &q.Result); err != nil {
		return nil, fmt.Errorf("failed to parse quote result: %w", err)
	}
	return q, nil
}
