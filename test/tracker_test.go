//go:build integration_test || all_tests

package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/2beens/babygrowth/internal/store"
	"github.com/2beens/babygrowth/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) do(ctx context.Context, method, path, body string) (int, http.Header, []byte) {
	t := s.T()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, respBytes
}

func (s *IntegrationTestSuite) TestTrackerFlow() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, _, body := s.do(ctx, http.MethodPost, "/babies", `{"name":"Mia","gender":"female","birthDate":"2023-01-01"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	var baby tracker.Baby
	require.NoError(t, json.Unmarshal(body, &baby))

	status, _, body = s.do(ctx, http.MethodPut, "/settings", `{"weightUnit":"lb"}`)
	require.Equal(t, http.StatusOK, status, string(body))

	status, _, body = s.do(ctx, http.MethodPost, "/babies/"+baby.ID+"/observations", `{"date":"2023-02-01","weight":"11,02","height":"58"}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	status, _, body = s.do(ctx, http.MethodGet, "/babies/"+baby.ID+"/chart?metric=weight", "")
	require.Equal(t, http.StatusOK, status)
	var chart tracker.ChartView
	require.NoError(t, json.Unmarshal(body, &chart))
	var observed int
	for _, p := range chart.Points {
		if p.ObservedWeight != nil {
			observed++
			assert.InDelta(t, 11.02, *p.ObservedWeight, 0.001)
		}
	}
	assert.Equal(t, 1, observed)

	// the state document landed in postgres, in storage units
	var data []byte
	err := s.DB.QueryRow(ctx, `SELECT data FROM app_state WHERE key = $1;`, store.CurrentKey).Scan(&data)
	require.NoError(t, err)
	state, from, err := store.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, store.CurrentVersion, from)
	got, err := state.Baby(baby.ID)
	require.NoError(t, err)
	require.Len(t, got.Observations, 1)
	assert.InDelta(t, 4.9986, got.Observations[0].WeightKg, 0.001)
	assert.Equal(t, "lb", string(state.Settings.WeightUnit))

	status, _, _ = s.do(ctx, http.MethodPut, "/settings", `{"weightUnit":"kg"}`)
	require.Equal(t, http.StatusOK, status)
}

func (s *IntegrationTestSuite) TestExportRateLimit() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, _, body := s.do(ctx, http.MethodPost, "/babies", `{"name":"Leo","gender":"male"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	var baby tracker.Baby
	require.NoError(t, json.Unmarshal(body, &baby))

	for i := 0; i < testExportLimit; i++ {
		status, header, _ := s.do(ctx, http.MethodGet, "/babies/"+baby.ID+"/export.csv", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, `attachment; filename="leo_growth.csv"`, header.Get("Content-Disposition"))
	}

	status, header, _ := s.do(ctx, http.MethodGet, "/babies/"+baby.ID+"/export.pdf", "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.NotEmpty(t, header.Get("Retry-After"))

	// reads outside the export group are not limited
	status, _, _ = s.do(ctx, http.MethodGet, "/babies/"+baby.ID+"/summary", "")
	assert.Equal(t, http.StatusOK, status)
}

func (s *IntegrationTestSuite) TestMetricsEndpoint() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+serverHost+":9100/metrics", nil)
	require.NoError(t, err)
	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "babygrowth_main_state_saves")
	assert.Contains(t, string(body), "pgxpool_")
}
