package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loyaltyDex/internal/dex"
	"loyaltyDex/internal/metrics"
	"loyaltyDex/internal/storage"
)

var (
	secret = []byte("test-secret")
	tokenX = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenY = common.HexToAddress("0x2000000000000000000000000000000000000002")
	alice  = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob    = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
)

type testEnv struct {
	server  *httptest.Server
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	m, err := metrics.New()
	require.NoError(t, err)

	svc := dex.NewService(storage.NewMemoryStore(), metrics.NewSink(m), zap.NewNop())
	srv := NewServer(svc, m, NewAuthMiddleware(secret, zap.NewNop()), zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, metrics: m}
}

func tokenFor(t *testing.T, caller common.Address) string {
	t.Helper()
	token, err := IssueToken(secret, caller, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, caller *common.Address, body any) (int, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *caller))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func dataMap(t *testing.T, resp Response) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "unexpected data %T", resp.Data)
	return m
}

func TestWalkthroughOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodPost, "/v1/pools", &alice, createPoolRequest{TokenA: tokenY.Hex(), TokenB: tokenX.Hex()})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, tokenX.Hex(), dataMap(t, resp)["token_a"])

	status, resp = env.do(t, http.MethodPost, "/v1/liquidity/add", &alice, addLiquidityRequest{
		TokenA: tokenX.Hex(), TokenB: tokenY.Hex(), AmountA: "1000", AmountB: "4000",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2000", dataMap(t, resp)["lp_minted"])

	status, resp = env.do(t, http.MethodPost, "/v1/liquidity/add", &bob, addLiquidityRequest{
		TokenA: tokenX.Hex(), TokenB: tokenY.Hex(), AmountA: "500", AmountB: "2000",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1000", dataMap(t, resp)["lp_minted"])

	status, resp = env.do(t, http.MethodGet, "/v1/quote?from="+tokenX.Hex()+"&to="+tokenY.Hex()+"&amount_in=150", &bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "543", dataMap(t, resp)["amount_out"])

	status, resp = env.do(t, http.MethodPost, "/v1/swap", &bob, swapRequest{
		FromToken: tokenX.Hex(), ToToken: tokenY.Hex(), AmountIn: "150", MinAmountOut: "543",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "543", dataMap(t, resp)["amount_out"])

	status, resp = env.do(t, http.MethodGet, "/v1/pools/"+tokenX.Hex()+"/"+tokenY.Hex(), &bob, nil)
	require.Equal(t, http.StatusOK, status)
	pool := dataMap(t, resp)
	assert.Equal(t, "1650", pool["reserve_a"])
	assert.Equal(t, "5457", pool["reserve_b"])
	assert.Equal(t, "3000", pool["lp_supply"])

	status, resp = env.do(t, http.MethodPost, "/v1/liquidity/remove", &alice, removeLiquidityRequest{
		TokenA: tokenX.Hex(), TokenB: tokenY.Hex(), LPAmount: "2000",
	})
	require.Equal(t, http.StatusOK, status)
	out := dataMap(t, resp)
	assert.Equal(t, "1100", out["amount_a"])
	assert.Equal(t, "3638", out["amount_b"])

	status, resp = env.do(t, http.MethodGet, "/v1/pools/"+tokenX.Hex()+"/"+tokenY.Hex()+"/rate", &bob, nil)
	require.Equal(t, http.StatusOK, status)
	rate := dataMap(t, resp)
	assert.Equal(t, "1819", rate["numerator"])
	assert.Equal(t, "550", rate["denominator"])

	status, resp = env.do(t, http.MethodGet, "/v1/pools/"+tokenX.Hex()+"/"+tokenY.Hex()+"/position", &bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1000", dataMap(t, resp)["shares"])
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodPost, "/v1/pools", &alice, createPoolRequest{TokenA: tokenX.Hex(), TokenB: tokenX.Hex()})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_token_pair", resp.Error.Kind)
	assert.Equal(t, uint32(6), resp.Error.Code)
	assert.Equal(t, dex.ModuleName, resp.Error.Codespace)

	status, resp = env.do(t, http.MethodGet, "/v1/pools/"+tokenX.Hex()+"/"+tokenY.Hex(), &alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "pool_not_found", resp.Error.Kind)

	status, _ = env.do(t, http.MethodPost, "/v1/pools", &alice, createPoolRequest{TokenA: tokenX.Hex(), TokenB: tokenY.Hex()})
	require.Equal(t, http.StatusOK, status)
	status, resp = env.do(t, http.MethodPost, "/v1/pools", &alice, createPoolRequest{TokenA: tokenY.Hex(), TokenB: tokenX.Hex()})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "pool_already_exists", resp.Error.Kind)

	status, resp = env.do(t, http.MethodPost, "/v1/swap", &alice, swapRequest{
		FromToken: tokenX.Hex(), ToToken: tokenY.Hex(), AmountIn: "10", MinAmountOut: "1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "insufficient_liquidity", resp.Error.Kind)

	status, _ = env.do(t, http.MethodPost, "/v1/liquidity/add", &alice, addLiquidityRequest{
		TokenA: tokenX.Hex(), TokenB: tokenY.Hex(), AmountA: "1000", AmountB: "4000",
	})
	require.Equal(t, http.StatusOK, status)

	status, resp = env.do(t, http.MethodPost, "/v1/swap", &bob, swapRequest{
		FromToken: tokenX.Hex(), ToToken: tokenY.Hex(), AmountIn: "150", MinAmountOut: "100000",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "slippage_exceeded", resp.Error.Kind)

	status, resp = env.do(t, http.MethodPost, "/v1/liquidity/remove", &bob, removeLiquidityRequest{
		TokenA: tokenX.Hex(), TokenB: tokenY.Hex(), LPAmount: "1",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "unauthorized", resp.Error.Kind)

	status, resp = env.do(t, http.MethodPost, "/v1/liquidity/add", &alice, addLiquidityRequest{
		TokenA: tokenX.Hex(), TokenB: tokenY.Hex(), AmountA: "-1", AmountB: "4000",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_amount", resp.Error.Kind)

	status, resp = env.do(t, http.MethodPost, "/v1/liquidity/add", &alice, addLiquidityRequest{
		TokenA: tokenX.Hex(), TokenB: tokenY.Hex(), AmountA: "1.5", AmountB: "4000",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", resp.Error.Kind)
	assert.Zero(t, resp.Error.Code)

	status, resp = env.do(t, http.MethodPost, "/v1/swap", &alice, map[string]string{"unknown": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", resp.Error.Kind)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodGet, "/v1/pools", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", resp.Error.Kind)

	wrong, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: alice.Hex()}}).SignedString([]byte("other"))
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/v1/pools", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+wrong)
	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	httpResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)

	notAddress, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}}).SignedString(secret)
	require.NoError(t, err)
	req, err = http.NewRequest(http.MethodGet, env.server.URL+"/v1/pools", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+notAddress)
	httpResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	httpResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, httpResp.StatusCode)

	status, _ = env.do(t, http.MethodGet, "/v1/pools", &alice, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	env.do(t, http.MethodPost, "/v1/pools", &alice, createPoolRequest{TokenA: tokenX.Hex(), TokenB: tokenY.Hex()})

	httpResp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer httpResp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(httpResp.Body)
	require.NoError(t, err)

	body := buf.String()
	assert.Contains(t, body, `dex_events_total{event="pool_created"} 1`)
	assert.Contains(t, body, `dex_requests_total{code="200",route="/v1/pools"} 1`)
}
