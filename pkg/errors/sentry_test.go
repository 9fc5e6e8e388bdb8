package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/richxcame/agency-pricing/pkg/common"
	"github.com/stretchr/testify/assert"
)

func TestShouldReportError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   bool
	}{
		{"nil", nil, http.StatusInternalServerError, false},
		{"computation gap", common.NewComputationGapError("no band", nil), http.StatusBadRequest, false},
		{"wrapped not found", fmt.Errorf("get: %w", common.NewNotFoundError("missing", nil)), http.StatusNotFound, false},
		{"internal app error", common.NewInternalError("boom", nil), http.StatusInternalServerError, true},
		{"plain error on 500", errors.New("db down"), http.StatusInternalServerError, true},
		{"plain error on 400", errors.New("bad"), http.StatusBadRequest, false},
		{"rate limited", errors.New("slow down"), http.StatusTooManyRequests, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReportError(tt.err, tt.status))
		})
	}
}

func TestInitSentryRequiresDSN(t *testing.T) {
	err := InitSentry(&SentryConfig{})
	assert.Error(t, err)
}
