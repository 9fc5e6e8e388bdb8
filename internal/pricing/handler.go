package pricing

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/agency-pricing/pkg/common"
	"github.com/richxcame/agency-pricing/pkg/middleware"
	"github.com/richxcame/agency-pricing/pkg/pagination"
)

// Handler handles HTTP requests for agency pricing
type Handler struct {
	service *Service
}

// NewHandler creates a new pricing handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ========================================
// CALCULATION
// ========================================

// Calculate prices a single route
func (h *Handler) Calculate(c *gin.Context) {
	var req RateRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.service.CalculatePrice(c.Request.Context(), req)
	if common.HandleServiceError(c, err, "failed to calculate price") {
		return
	}

	common.SuccessResponse(c, result)
}

// CalculateBatch prices several routes against one configuration
func (h *Handler) CalculateBatch(c *gin.Context) {
	var req BatchCalculateRequest
	if !common.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.CalculateBatch(c.Request.Context(), req)
	if common.HandleServiceError(c, err, "failed to calculate batch") {
		return
	}

	common.SuccessResponse(c, resp)
}

// ========================================
// CONFIGURATIONS
// ========================================

// GetActiveConfig returns the active default configuration
func (h *Handler) GetActiveConfig(c *gin.Context) {
	var at *time.Time
	if raw := c.Query("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid at, expected RFC3339 timestamp")
			return
		}
		at = &t
	}

	cfg, err := h.service.GetActiveConfig(c.Request.Context(), at)
	if common.HandleServiceError(c, err, "failed to get active pricing configuration") {
		return
	}

	common.SuccessResponse(c, cfg)
}

// ListConfigs lists configurations with pagination
func (h *Handler) ListConfigs(c *gin.Context) {
	params := pagination.ParseParams(c)
	filter := ListConfigsFilter{
		Search: c.Query("search"),
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid is_active")
			return
		}
		filter.IsActive = &active
	}

	configs, total, err := h.service.ListConfigs(c.Request.Context(), filter)
	if common.HandleServiceError(c, err, "failed to list pricing configurations") {
		return
	}

	common.SuccessResponseWithMeta(c, configs, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// GetConfig returns a configuration by ID
func (h *Handler) GetConfig(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "configuration ID")
	if !ok {
		return
	}

	cfg, err := h.service.GetConfig(c.Request.Context(), id)
	if common.HandleServiceError(c, err, "failed to get pricing configuration") {
		return
	}

	common.SuccessResponse(c, cfg)
}

// CreateConfig creates a configuration
func (h *Handler) CreateConfig(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req ConfigInput
	if !common.BindJSON(c, &req) {
		return
	}

	cfg, err := h.service.CreateConfig(c.Request.Context(), req, &userID)
	if common.HandleServiceError(c, err, "failed to create pricing configuration") {
		return
	}

	common.CreatedResponse(c, cfg)
}

// UpdateConfig partially updates a configuration
func (h *Handler) UpdateConfig(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id", "configuration ID")
	if !ok {
		return
	}

	var req UpdateConfigRequest
	if !common.BindJSON(c, &req) {
		return
	}

	cfg, err := h.service.UpdateConfig(c.Request.Context(), id, req, &userID)
	if common.HandleServiceError(c, err, "failed to update pricing configuration") {
		return
	}

	common.SuccessResponse(c, cfg)
}

// DeleteConfig deletes a configuration
func (h *Handler) DeleteConfig(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id", "configuration ID")
	if !ok {
		return
	}

	err := h.service.DeleteConfig(c.Request.Context(), id, &userID)
	if common.HandleServiceError(c, err, "failed to delete pricing configuration") {
		return
	}

	common.SuccessResponse(c, gin.H{"message": "pricing configuration deleted"})
}

// CloneConfig copies a configuration
func (h *Handler) CloneConfig(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id", "configuration ID")
	if !ok {
		return
	}

	var req CloneConfigRequest
	if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
		return
	}

	cfg, err := h.service.CloneConfig(c.Request.Context(), id, req, &userID)
	if common.HandleServiceError(c, err, "failed to clone pricing configuration") {
		return
	}

	common.CreatedResponse(c, cfg)
}

// ActivateConfig makes a configuration the active default
func (h *Handler) ActivateConfig(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id", "configuration ID")
	if !ok {
		return
	}

	cfg, err := h.service.ActivateConfig(c.Request.Context(), id, &userID)
	if common.HandleServiceError(c, err, "failed to activate pricing configuration") {
		return
	}

	common.SuccessResponse(c, cfg)
}

// ImportSeed stores the built-in seed configuration
func (h *Handler) ImportSeed(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	cfg, err := h.service.ImportSeed(c.Request.Context(), &userID)
	if common.HandleServiceError(c, err, "failed to import seed configuration") {
		return
	}

	common.CreatedResponse(c, cfg)
}

// ========================================
// QUOTES & PROMOTIONS
// ========================================

// CreateQuote calculates and persists a price
func (h *Handler) CreateQuote(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req RateRequest
	if !common.BindJSON(c, &req) {
		return
	}

	quote, err := h.service.CreateQuote(c.Request.Context(), req, &userID)
	if common.HandleServiceError(c, err, "failed to create price quote") {
		return
	}

	common.CreatedResponse(c, quote)
}

// GetQuote returns a persisted quote
func (h *Handler) GetQuote(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "quoteId", "quote ID")
	if !ok {
		return
	}

	quote, err := h.service.GetQuote(c.Request.Context(), id)
	if common.HandleServiceError(c, err, "failed to get price quote") {
		return
	}

	common.SuccessResponse(c, quote)
}

// RedeemPromo records one use of a promotional code
func (h *Handler) RedeemPromo(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req RedeemPromoRequest
	if !common.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.RedeemPromoCode(c.Request.Context(), req, &userID)
	if common.HandleServiceError(c, err, "failed to redeem promotional code") {
		return
	}

	common.SuccessResponse(c, resp)
}

// RegisterRoutes registers agency pricing routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, jwtSecret, jwtIssuer string) {
	pricing := rg.Group("/agency-pricing")

	public := pricing.Group("")
	public.Use(middleware.OptionalAuth(jwtSecret, jwtIssuer))
	{
		public.POST("/calculate", h.Calculate)
		public.POST("/calculate/batch", h.CalculateBatch)
		public.GET("/active", h.GetActiveConfig)
		public.GET("", h.ListConfigs)
		public.GET("/:id", h.GetConfig)
		public.GET("/quotes/:quoteId", h.GetQuote)
	}

	protected := pricing.Group("")
	protected.Use(middleware.AuthMiddleware(jwtSecret, jwtIssuer))
	{
		protected.POST("", h.CreateConfig)
		protected.PUT("/:id", h.UpdateConfig)
		protected.DELETE("/:id", h.DeleteConfig)
		protected.POST("/:id/clone", h.CloneConfig)
		protected.POST("/:id/activate", h.ActivateConfig)
		protected.POST("/import/seed", h.ImportSeed)
		protected.POST("/quotes", h.CreateQuote)
		protected.POST("/promotions/redeem", h.RedeemPromo)
	}
}
