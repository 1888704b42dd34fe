package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2beens/babygrowth/internal/middleware"
	"github.com/2beens/babygrowth/internal/telemetry/metrics"

	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestRateLimit(t *testing.T) {
	testCases := []struct {
		name           string
		result         *redis_rate.Result
		err            error
		expectedStatus int
		expectNext     bool
		expectLimited  float64
	}{
		{
			name:           "Allowed",
			result:         &redis_rate.Result{Allowed: 1, Remaining: 4},
			expectedStatus: http.StatusOK,
			expectNext:     true,
		},
		{
			name:           "Limited",
			result:         &redis_rate.Result{Allowed: 0, RetryAfter: 12 * time.Second},
			expectedStatus: http.StatusTooManyRequests,
			expectLimited:  1,
		},
		{
			name:           "LimiterError",
			err:            errors.New("redis down"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			limiter := NewMockRequestRateLimiter(ctrl)
			metricsManager := metrics.NewTestManager()

			limiter.EXPECT().
				Allow(gomock.Any(), "rate:export:localhost", redis_rate.PerMinute(5)).
				DoAndReturn(func(_ context.Context, _ string, _ redis_rate.Limit) (*redis_rate.Result, error) {
					return tc.result, tc.err
				})

			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
			})
			handler := middleware.RateLimit(limiter, "export", 5, metricsManager)(next)

			req := httptest.NewRequest(http.MethodGet, "/babies/active/export.csv", nil)
			req.RemoteAddr = "127.0.0.1:53211"
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectNext, nextCalled)
			assert.Equal(t, tc.expectLimited, testutil.ToFloat64(metricsManager.CounterRateLimitedRequests))
			if tc.expectedStatus == http.StatusTooManyRequests {
				assert.Equal(t, "13", rr.Header().Get("Retry-After"))
			}
		})
	}
}
