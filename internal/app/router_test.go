package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/gudang/internal/rowstore"
	"github.com/odyssey-erp/gudang/jobs"
)

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func (c apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)
	return rr
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	budi, err := bcrypt.GenerateFromPassword([]byte("rahasia"), bcrypt.MinCost)
	require.NoError(t, err)
	sari, err := bcrypt.GenerateFromPassword([]byte("kepala"), bcrypt.MinCost)
	require.NoError(t, err)
	return &Config{
		AppEnv:            "test",
		AppRequestTimeout: 5 * time.Second,
		AppTimezone:       "Asia/Jakarta",
		RowStoreDriver:    DriverMemory,
		RowStoreTimeout:   time.Second,
		LockTTL:           5 * time.Second,
		LockWait:          2 * time.Second,
		IdempotencyTTL:    time.Hour,
		HistoryCacheTTL:   time.Minute,
		AuthTokens:        map[string]string{"budi": string(budi), "sari": string(sari)},
		AuthApprovers:     []string{"sari"},
		MutationRateLimit: 100,
	}
}

func newTestAPI(t *testing.T) (apiClient, *Components) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	components := Assemble(rowstore.WithRetry(rowstore.NewMemory(), cfg.RowStoreTimeout, logger), client, cfg, logger)
	router := NewRouter(components.RouterParams(jobs.NewHandler(nil, nil, logger)))
	return apiClient{t: t, router: router}, components
}

const (
	officer  = "budi.rahasia"
	approver = "sari.kepala"
)

func TestStockLifecycleOverHTTP(t *testing.T) {
	api, _ := newTestAPI(t)

	rr := api.do(http.MethodPost, "/api/products", officer, map[string]string{"name": "Kabel NYM", "departmentId": "GDG", "unit": "roll"})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(http.MethodPost, "/api/products", approver, map[string]string{"name": "Kabel NYM", "departmentId": "GDG", "unit": "roll"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var product struct {
		Code  string `json:"code"`
		Stock int    `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &product))
	require.Regexp(t, `^GDG-[0-9A-F]{3}-\d{4}$`, product.Code)
	require.Zero(t, product.Stock)

	rr = api.do(http.MethodPost, "/api/transactions", officer, map[string]any{"productCode": product.Code, "type": "IN", "quantity": 50})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var posted struct {
		NewBalance int `json:"newBalance"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &posted))
	require.Equal(t, 50, posted.NewBalance)

	rr = api.do(http.MethodPost, "/api/transactions", officer, map[string]any{"productCode": product.Code, "type": "OUT", "quantity": 60})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "short by 10")

	rr = api.do(http.MethodPost, "/api/opname/submit", officer, map[string]any{
		"items": []map[string]any{{"productCode": product.Code, "systemStock": 50, "physicalStock": 45}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var submitted struct {
		OpnameID string `json:"opnameId"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.OpnameID)

	approve := map[string]any{"opnameId": submitted.OpnameID, "productCode": product.Code, "newStock": 45}
	rr = api.do(http.MethodPost, "/api/opname/approve", officer, approve)
	require.Equal(t, http.StatusForbidden, rr.Code)
	rr = api.do(http.MethodPost, "/api/opname/approve", approver, approve)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = api.do(http.MethodPost, "/api/opname/approve", approver, approve)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(http.MethodGet, "/api/products/"+product.Code, officer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &product))
	require.Equal(t, 45, product.Stock)

	rr = api.do(http.MethodGet, "/api/balance-history?"+url.Values{"productCodes": {product.Code}, "granularity": {"day"}}.Encode(), officer, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var points []struct {
		Balances map[string]int `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &points))
	require.Len(t, points, 8)
	require.Equal(t, 45, points[len(points)-1].Balances[product.Code])

	rr = api.do(http.MethodGet, "/api/audit", approver, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var timeline struct {
		Rows []struct {
			Action string `json:"action"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &timeline))
	require.GreaterOrEqual(t, len(timeline.Rows), 2)
}

func TestAPIRequiresBearerCredential(t *testing.T) {
	api, _ := newTestAPI(t)

	rr := api.do(http.MethodGet, "/api/transactions", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = api.do(http.MethodGet, "/api/transactions", "budi.salah", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOpsEndpointsArePublic(t *testing.T) {
	api, components := newTestAPI(t)
	components.Metrics.ObservePosting("IN", "ok")

	rr := api.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `gudang_postings_total{outcome="ok",type="IN"} 1`)

	rr = api.do(http.MethodGet, "/jobs/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}

func TestMutationLimiterThrottlesPerActor(t *testing.T) {
	cfg := testConfig(t)
	cfg.MutationRateLimit = 2
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	components := Assemble(rowstore.NewMemory(), nil, cfg, logger)
	api := apiClient{t: t, router: NewRouter(components.RouterParams(nil))}

	body := map[string]any{"productCode": "GDG-000-0000", "type": "IN", "quantity": 1}
	for i := 0; i < 2; i++ {
		rr := api.do(http.MethodPost, "/api/transactions", officer, body)
		require.Equal(t, http.StatusNotFound, rr.Code)
	}
	rr := api.do(http.MethodPost, "/api/transactions", officer, body)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = api.do(http.MethodPost, "/api/transactions", approver, body)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(http.MethodGet, "/api/transactions", officer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}
