package pagination

import (
	"math"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/agency-pricing/pkg/common"
)

const (
	// DefaultLimit is the default number of items per page
	DefaultLimit = 20
	// MaxLimit is the maximum number of items per page
	MaxLimit = 100
)

// Params represents pagination parameters
type Params struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
	// Page is 1-indexed and, when set, takes precedence over Offset.
	Page int `form:"page" json:"page"`
}

// ParseParams extracts and sanitizes pagination parameters from the query string.
// Malformed values fall back to defaults.
func ParseParams(c *gin.Context) Params {
	var params Params
	if err := c.ShouldBindQuery(&params); err != nil {
		return Params{Limit: DefaultLimit}
	}
	return params.normalize()
}

func (p Params) normalize() Params {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Page > 0 {
		p.Offset = (p.Page - 1) * p.Limit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	p.Page = p.Offset/p.Limit + 1
	return p
}

// BuildMeta creates pagination metadata for responses
func BuildMeta(limit, offset int, total int64) *common.Meta {
	meta := &common.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	}
	if limit > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return meta
}
