package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/pkg/artifact"
	"salesforecast/pkg/config"
	"salesforecast/pkg/data"
	"salesforecast/pkg/dataprep"
	"salesforecast/pkg/pipeline"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{Addr: ":0", MaxBodyBytes: 1 << 20}
}

func saveBundle(t *testing.T, store artifact.Store) *artifact.Bundle {
	t.Helper()
	rows := make([][]string, 10)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("2023-01-%02d", i+1), fmt.Sprint(100 + 10*i), fmt.Sprint(10 + i)}
	}
	tbl, err := data.NewTable([]string{"Date", "Sales", "Profit"}, rows)
	require.NoError(t, err)

	train := pipeline.DefaultTrainOptions()
	train.Trees = 10
	res, err := pipeline.Run(context.Background(), tbl, pipeline.Options{
		Clean:    dataprep.CleanOptions{DateColumn: "Date"},
		Features: dataprep.FeatureOptions{Target: "Sales"},
		Train:    train,
	}, nil)
	require.NoError(t, err)

	b := artifact.NewBundle(res)
	require.NoError(t, store.Save(context.Background(), b))
	return b
}

func newTestServer(t *testing.T) (*Server, artifact.Store, *httptest.Server) {
	t.Helper()
	store, err := artifact.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	s := New(testConfig(), store, nil, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, store, ts
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestServerWithoutModel(t *testing.T) {
	_, _, ts := newTestServer(t)

	code, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no_model", body["status"])

	code, _ = do(t, http.MethodPost, ts.URL+"/api/predict", `{"columns":["Profit"],"rows":[[1]]}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, http.MethodGet, ts.URL+"/api/schema", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, body = do(t, http.MethodPost, ts.URL+"/api/reload", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])
}

func TestServerReloadAndPredict(t *testing.T) {
	s, store, ts := newTestServer(t)
	b := saveBundle(t, store)

	code, body := do(t, http.MethodPost, ts.URL+"/api/reload", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, b.RunID, body["run_id"])
	assert.Equal(t, b.RunID, s.RunID())

	code, body = do(t, http.MethodGet, ts.URL+"/api/schema", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"Profit", "Year", "Month", "Day"}, body["features"])

	code, body = do(t, http.MethodPost, ts.URL+"/api/predict",
		`{"columns":["Profit","Year","Month","Day"],"rows":[[20,2023,1,11],[12,2023,1,3]]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, b.RunID, body["run_id"])
	forecasts, ok := body["forecasts"].([]any)
	require.True(t, ok)
	assert.Len(t, forecasts, 2)

	code, body = do(t, http.MethodGet, ts.URL+"/api/report", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(8), body["train_rows"])
	assert.Equal(t, float64(2), body["test_rows"])
}

func TestServerPredictStatusCodes(t *testing.T) {
	s, store, ts := newTestServer(t)
	saveBundle(t, store)
	_, err := s.Reload(context.Background(), "")
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing column", `{"columns":["Profit","Year","Month"],"rows":[[1,2023,1]]}`, http.StatusUnprocessableEntity},
		{"short row", `{"columns":["Profit","Year","Month","Day"],"rows":[[1,2023]]}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"columns":`, http.StatusBadRequest},
		{"no columns", `{"rows":[[1]]}`, http.StatusBadRequest},
		{"non-numeric value", `{"columns":["Profit","Year","Month","Day"],"rows":[["x",2023,1,1]]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, http.MethodPost, ts.URL+"/api/predict", tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServerReloadUnknownRun(t *testing.T) {
	_, store, ts := newTestServer(t)
	saveBundle(t, store)

	code, _ := do(t, http.MethodPost, ts.URL+"/api/reload?run=2b1f4c1e-7a0d-4b8e-9f3a-5c6d7e8f9a0b", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, http.MethodPost, ts.URL+"/api/reload?run=not-a-run", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServerMetrics(t *testing.T) {
	s, store, ts := newTestServer(t)
	saveBundle(t, store)
	_, err := s.Reload(context.Background(), artifact.LatestRef)
	require.NoError(t, err)

	code, _ := do(t, http.MethodPost, ts.URL+"/api/predict", `{"columns":["Profit","Year","Month","Day"],"rows":[[1,2023,1,1]]}`)
	require.Equal(t, http.StatusOK, code)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, "forecast_predictions_total 1")
	assert.Contains(t, text, `forecast_model_reloads_total{result="ok"} 1`)
	assert.Contains(t, text, `forecast_http_requests_total{method="POST",route="/api/predict",status="200"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}
