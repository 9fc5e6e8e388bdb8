package common_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/agency-pricing/pkg/common"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		fallbackMsg    string
		expectHandled  bool
		expectStatus   int
		expectContains string
	}{
		{
			name:          "nil error returns false",
			err:           nil,
			fallbackMsg:   "failed",
			expectHandled: false,
		},
		{
			name:           "AppError is handled",
			err:            common.NewNotFoundError("pricing configuration not found", nil),
			fallbackMsg:    "failed to get configuration",
			expectHandled:  true,
			expectStatus:   http.StatusNotFound,
			expectContains: "pricing configuration not found",
		},
		{
			name:           "regular error uses fallback",
			err:            errors.New("connection reset by peer"),
			fallbackMsg:    "failed to calculate price",
			expectHandled:  true,
			expectStatus:   http.StatusInternalServerError,
			expectContains: "failed to calculate price",
		},
		{
			name:           "bad request AppError",
			err:            common.NewBadRequestError("at must be RFC3339", nil),
			fallbackMsg:    "failed",
			expectHandled:  true,
			expectStatus:   http.StatusBadRequest,
			expectContains: "at must be RFC3339",
		},
		{
			name:           "invariant violation keeps its error code",
			err:            common.NewInvariantViolationError("cannot delete the active default configuration", nil),
			fallbackMsg:    "failed",
			expectHandled:  true,
			expectStatus:   http.StatusBadRequest,
			expectContains: common.CodeInvariantViolation,
		},
		{
			name:           "wrapped AppError",
			err:            fmt.Errorf("calculate: %w", common.NewComputationGapError("no distance band covers the route distance", nil)),
			fallbackMsg:    "failed",
			expectHandled:  true,
			expectStatus:   http.StatusBadRequest,
			expectContains: common.CodeComputationGap,
		},
		{
			name:           "conflict",
			err:            common.NewConflictError("a configuration with this code already exists", nil),
			fallbackMsg:    "failed",
			expectHandled:  true,
			expectStatus:   http.StatusConflict,
			expectContains: common.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			handled := common.HandleServiceError(c, tt.err, tt.fallbackMsg)
			assert.Equal(t, tt.expectHandled, handled)

			if tt.expectHandled {
				assert.Equal(t, tt.expectStatus, w.Code)
				assert.Contains(t, w.Body.String(), tt.expectContains)
			}
		})
	}
}

func TestParseUUIDParam(t *testing.T) {
	tests := []struct {
		name         string
		paramValue   string
		expectOK     bool
		expectStatus int
	}{
		{
			name:       "valid UUID",
			paramValue: "550e8400-e29b-41d4-a716-446655440000",
			expectOK:   true,
		},
		{
			name:         "invalid UUID",
			paramValue:   "not-a-uuid",
			expectOK:     false,
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "empty UUID",
			paramValue:   "",
			expectOK:     false,
			expectStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Params = gin.Params{{Key: "id", Value: tt.paramValue}}
			c.Request = httptest.NewRequest(http.MethodGet, "/agency-pricing/"+tt.paramValue, nil)

			id, ok := common.ParseUUIDParam(c, "id", "configuration ID")
			assert.Equal(t, tt.expectOK, ok)

			if tt.expectOK {
				assert.NotEqual(t, uuid.Nil, id)
			} else {
				assert.Equal(t, tt.expectStatus, w.Code)
			}
		})
	}
}

func TestBindJSON(t *testing.T) {
	type rateRequest struct {
		From           string `json:"from" binding:"required"`
		To             string `json:"to" binding:"required"`
		PassengerCount int    `json:"passengerCount"`
	}

	tests := []struct {
		name         string
		body         string
		expectOK     bool
		expectStatus int
	}{
		{
			name:     "valid JSON",
			body:     `{"from": "HOTEL PTY", "to": "PTY PORT", "passengerCount": 2}`,
			expectOK: true,
		},
		{
			name:         "missing required field",
			body:         `{"from": "HOTEL PTY"}`,
			expectOK:     false,
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "invalid JSON",
			body:         `{invalid}`,
			expectOK:     false,
			expectStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var req rateRequest
			ok := common.BindJSON(c, &req)
			assert.Equal(t, tt.expectOK, ok)

			if !tt.expectOK {
				assert.Equal(t, tt.expectStatus, w.Code)
			}
		})
	}
}

func TestBindQuery(t *testing.T) {
	type listQuery struct {
		Limit    int    `form:"limit" binding:"required,min=1"`
		IsActive *bool  `form:"is_active"`
		Search   string `form:"search"`
	}

	tests := []struct {
		name         string
		query        string
		expectOK     bool
		expectStatus int
	}{
		{
			name:     "valid query",
			query:    "?limit=10&is_active=true&search=crew",
			expectOK: true,
		},
		{
			name:         "missing required field",
			query:        "?search=crew",
			expectOK:     false,
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "malformed boolean",
			query:        "?limit=10&is_active=maybe",
			expectOK:     false,
			expectStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/agency-pricing"+tt.query, nil)

			var req listQuery
			ok := common.BindQuery(c, &req)
			assert.Equal(t, tt.expectOK, ok)

			if !tt.expectOK {
				assert.Equal(t, tt.expectStatus, w.Code)
			}
		})
	}
}

func TestRequireUserID(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name      string
		getUserID func(*gin.Context) (uuid.UUID, error)
		expectOK  bool
	}{
		{
			name:      "authenticated",
			getUserID: func(*gin.Context) (uuid.UUID, error) { return userID, nil },
			expectOK:  true,
		},
		{
			name:      "anonymous",
			getUserID: func(*gin.Context) (uuid.UUID, error) { return uuid.Nil, common.ErrUnauthorized },
			expectOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/test", nil)

			id, ok := common.RequireUserID(c, tt.getUserID)
			assert.Equal(t, tt.expectOK, ok)

			if tt.expectOK {
				assert.Equal(t, userID, id)
			} else {
				assert.Equal(t, http.StatusUnauthorized, w.Code)
			}
		})
	}
}
