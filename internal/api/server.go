package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"loyaltyDex/internal/metrics"
	"loyaltyDex/internal/model"
)

// PoolService is the pool engine surface exposed over HTTP.
type PoolService interface {
	CreatePool(ctx context.Context, tokenA, tokenB common.Address) error
	AddLiquidity(ctx context.Context, provider, tokenA, tokenB common.Address, amountA, amountB math.Int) (math.Int, error)
	Swap(ctx context.Context, trader, fromToken, toToken common.Address, amountIn, minAmountOut math.Int) (math.Int, error)
	QuoteSwap(ctx context.Context, fromToken, toToken common.Address, amountIn math.Int) (math.Int, error)
	RemoveLiquidity(ctx context.Context, provider, tokenA, tokenB common.Address, lpAmount math.Int) (math.Int, math.Int, error)
	GetExchangeRate(ctx context.Context, tokenA, tokenB common.Address) (math.Int, math.Int, error)
	GetPool(ctx context.Context, tokenA, tokenB common.Address) (model.Pool, error)
	GetPosition(ctx context.Context, provider, tokenA, tokenB common.Address) (model.LiquidityPosition, error)
	ListPools(ctx context.Context) ([]model.Pool, error)
}

// Server routes HTTP requests to the pool service.
type Server struct {
	svc     PoolService
	metrics *metrics.Metrics
	auth    *AuthMiddleware
	logger  *zap.Logger
	router  *mux.Router
}

func NewServer(svc PoolService, m *metrics.Metrics, auth *AuthMiddleware, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		metrics: m,
		auth:    auth,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(s.observe)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	if s.auth != nil {
		v1.Use(s.auth.Handler)
	}
	v1.HandleFunc("/pools", s.handleListPools).Methods(http.MethodGet)
	v1.HandleFunc("/pools", s.handleCreatePool).Methods(http.MethodPost)
	v1.HandleFunc("/pools/{tokenA}/{tokenB}", s.handleGetPool).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{tokenA}/{tokenB}/rate", s.handleRate).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{tokenA}/{tokenB}/position", s.handlePosition).Methods(http.MethodGet)
	v1.HandleFunc("/liquidity/add", s.handleAddLiquidity).Methods(http.MethodPost)
	v1.HandleFunc("/liquidity/remove", s.handleRemoveLiquidity).Methods(http.MethodPost)
	v1.HandleFunc("/swap", s.handleSwap).Methods(http.MethodPost)
	v1.HandleFunc("/quote", s.handleQuote).Methods(http.MethodGet)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, rec.status)
		}
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		message = "internal error"
	}
	writeError(w, status, kind, code, message)
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", 0, "no authenticated caller")
	}
	return caller, ok
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty request body", errBadRequest)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pairFromPath(r *http.Request) (common.Address, common.Address, error) {
	vars := mux.Vars(r)
	tokenA, err := parseAddress("tokenA", vars["tokenA"])
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	tokenB, err := parseAddress("tokenB", vars["tokenB"])
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return tokenA, tokenB, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, map[string]string{"status": "ok"})
}

type poolView struct {
	TokenA   string `json:"token_a"`
	TokenB   string `json:"token_b"`
	ReserveA string `json:"reserve_a"`
	ReserveB string `json:"reserve_b"`
	LPSupply string `json:"lp_supply"`
}

func newPoolView(pool model.Pool) poolView {
	return poolView{
		TokenA:   pool.TokenA.Hex(),
		TokenB:   pool.TokenB.Hex(),
		ReserveA: pool.ReserveA.String(),
		ReserveB: pool.ReserveB.String(),
		LPSupply: pool.LPSupply.String(),
	}
}

func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.svc.ListPools(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]poolView, 0, len(pools))
	for _, pool := range pools {
		views = append(views, newPoolView(pool))
	}
	writeSuccess(w, views)
}

type createPoolRequest struct {
	TokenA string `json:"token_a"`
	TokenB string `json:"token_b"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tokenA, err := parseAddress("token_a", req.TokenA)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tokenB, err := parseAddress("token_b", req.TokenB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.CreatePool(r.Context(), tokenA, tokenB); err != nil {
		s.fail(w, r, err)
		return
	}
	pool, err := s.svc.GetPool(r.Context(), tokenA, tokenB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, newPoolView(pool))
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	tokenA, tokenB, err := pairFromPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pool, err := s.svc.GetPool(r.Context(), tokenA, tokenB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, newPoolView(pool))
}

type rateView struct {
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	tokenA, tokenB, err := pairFromPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	num, den, err := s.svc.GetExchangeRate(r.Context(), tokenA, tokenB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, rateView{Numerator: num.String(), Denominator: den.String()})
}

type positionView struct {
	Provider string `json:"provider"`
	TokenA   string `json:"token_a"`
	TokenB   string `json:"token_b"`
	Shares   string `json:"shares"`
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	tokenA, tokenB, err := pairFromPath(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	position, err := s.svc.GetPosition(r.Context(), caller, tokenA, tokenB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, positionView{
		Provider: position.Provider.Hex(),
		TokenA:   position.Pool.TokenA.Hex(),
		TokenB:   position.Pool.TokenB.Hex(),
		Shares:   position.Shares.String(),
	})
}

type addLiquidityRequest struct {
	TokenA  string `json:"token_a"`
	TokenB  string `json:"token_b"`
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
}

func (s *Server) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req addLiquidityRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tokenA, err := parseAddress("token_a", req.TokenA)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tokenB, err := parseAddress("token_b", req.TokenB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amountA, err := parseAmount("amount_a", req.AmountA)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amountB, err := parseAmount("amount_b", req.AmountB)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	minted, err := s.svc.AddLiquidity(r.Context(), caller, tokenA, tokenB, amountA, amountB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, map[string]string{"lp_minted": minted.String()})
}

type removeLiquidityRequest struct {
	TokenA   string `json:"token_a"`
	TokenB   string `json:"token_b"`
	LPAmount string `json:"lp_amount"`
}

func (s *Server) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req removeLiquidityRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tokenA, err := parseAddress("token_a", req.TokenA)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tokenB, err := parseAddress("token_b", req.TokenB)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lpAmount, err := parseAmount("lp_amount", req.LPAmount)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	amountA, amountB, err := s.svc.RemoveLiquidity(r.Context(), caller, tokenA, tokenB, lpAmount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, map[string]string{"amount_a": amountA.String(), "amount_b": amountB.String()})
}

type swapRequest struct {
	FromToken    string `json:"from_token"`
	ToToken      string `json:"to_token"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req swapRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	from, err := parseAddress("from_token", req.FromToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseAddress("to_token", req.ToToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amountIn, err := parseAmount("amount_in", req.AmountIn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	minOut, err := parseAmount("min_amount_out", req.MinAmountOut)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.svc.Swap(r.Context(), caller, from, to, amountIn, minOut)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, map[string]string{"amount_out": out.String()})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseAddress("from", q.Get("from"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseAddress("to", q.Get("to"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amountIn, err := parseAmount("amount_in", q.Get("amount_in"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.svc.QuoteSwap(r.Context(), from, to, amountIn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, map[string]string{"amount_out": out.String()})
}
