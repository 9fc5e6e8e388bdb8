package pricing

import "errors"

var (
	ErrConfigNotFound        = errors.New("pricing configuration not found")
	ErrQuoteNotFound         = errors.New("price quote not found")
	ErrDistanceBandNotFound  = errors.New("no distance band covers the resolved distance")
	ErrDeleteActiveDefault   = errors.New("cannot delete the active default configuration")
	ErrDuplicateCode         = errors.New("a configuration with this code already exists")
	ErrVersionConflict       = errors.New("configuration was modified concurrently")
	ErrDefaultConflict       = errors.New("another configuration became the active default concurrently")
	ErrPromoExhausted        = errors.New("promotional code has reached its usage limit")
	ErrPromoNotFound         = errors.New("promotional code not found")
	ErrNoActiveConfiguration = errors.New("no active pricing configuration")
)
