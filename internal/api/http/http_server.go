package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/olyamironova/deferswap/internal/api/dto"
	"github.com/olyamironova/deferswap/internal/core"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/middleware"
	"github.com/olyamironova/deferswap/internal/port"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Wallet is the account-side surface of a bank that lets callers grant
// allowances and, on test deployments, mint funds.
type Wallet interface {
	Mint(symbol string, to common.Address, amount decimal.Decimal)
	Approve(symbol string, owner common.Address, amount decimal.Decimal)
	Allowance(symbol string, owner common.Address) decimal.Decimal
}

type HTTPServer struct {
	Eng  *core.Engine
	Bank port.Bank

	wallet    Wallet
	faucet    bool
	hub       http.Handler
	rateLimit time.Duration
	log       *zap.SugaredLogger
}

type Option func(*HTTPServer)

func WithWallet(w Wallet, faucet bool) Option {
	return func(s *HTTPServer) { s.wallet, s.faucet = w, faucet }
}

// WithStream mounts h at /ws.
func WithStream(h http.Handler) Option {
	return func(s *HTTPServer) { s.hub = h }
}

func WithRateLimit(d time.Duration) Option {
	return func(s *HTTPServer) { s.rateLimit = d }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *HTTPServer) { s.log = l }
}

func NewHTTPServer(eng *core.Engine, bank port.Bank, opts ...Option) *HTTPServer {
	s := &HTTPServer{Eng: eng, Bank: bank, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(s.log))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/settings", s.getSettings)
	r.GET("/orders/:id", s.getOrder)
	r.GET("/orders/:id/trades", s.getTrades)
	r.GET("/balances/:account/:symbol", s.getBalance)
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}

	rl := middleware.NewRateLimiter(s.rateLimit)
	auth := r.Group("/", middleware.Account(), rl.Middleware())
	auth.POST("/orders", s.createOrder)
	auth.POST("/orders/:id/cancel", s.cancelOrder)
	auth.POST("/orders/:id/deal", s.dealOrder)
	auth.POST("/orders/:id/merge", s.mergeOrder)

	admin := auth.Group("/admin")
	admin.PUT("/fee-rate", s.setFeeRate)
	admin.PUT("/fee-sink", s.setFeeSink)
	admin.POST("/tokens", s.registerToken)
	admin.PUT("/hook", s.setHook)

	if s.wallet != nil {
		auth.POST("/wallet/approve", s.approve)
		if s.faucet {
			auth.POST("/wallet/faucet", s.fund)
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.AccountHeader},
	})
	return c.Handler(r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) createOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.Eng.Create(c.Request.Context(), core.CreateOrder{
		Owner:       middleware.Caller(c),
		BaseSymbol:  req.BaseSymbol,
		QuoteSymbol: req.QuoteSymbol,
		BaseAmount:  req.BaseAmount,
		QuoteAmount: req.QuoteAmount,
		IsSell:      req.IsSell(),
		Candidates:  req.Candidates,
		Payment:     domain.Payment{Value: req.Value},
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ConvertResult(res))
}

func (s *HTTPServer) cancelOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	res, err := s.Eng.Cancel(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConvertResult(res))
}

func (s *HTTPServer) dealOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req dto.DealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.Eng.Deal(c.Request.Context(), core.Deal{
		Caller:  middleware.Caller(c),
		OrderID: id,
		Amount:  req.Amount,
		Payment: domain.Payment{Value: req.Value},
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConvertResult(res))
}

func (s *HTTPServer) mergeOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req dto.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.Eng.Merge(c.Request.Context(), middleware.Caller(c), id, req.Candidates)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConvertResult(res))
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	o, err := s.Eng.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GetOrderResponse{Order: dto.ConvertOrder(o)})
}

func (s *HTTPServer) getTrades(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	trades, err := s.Eng.GetTradesForOrder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GetTradesResponse{Trades: dto.ConvertTrades(trades)})
}

func (s *HTTPServer) getBalance(c *gin.Context) {
	raw := c.Param("account")
	if !common.IsHexAddress(raw) {
		badRequest(c, errors.New("account must be a hex address"))
		return
	}
	account, symbol := common.HexToAddress(raw), c.Param("symbol")
	bal, err := s.Bank.Balance(c.Request.Context(), symbol, account)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := dto.BalanceResponse{Account: account.Hex(), Symbol: symbol, Balance: bal}
	if s.wallet != nil {
		resp.Allowance = s.wallet.Allowance(symbol, account)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ConvertSettings(s.Eng.Settings()))
}

func (s *HTTPServer) setFeeRate(c *gin.Context) {
	var req dto.FeeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.Eng.SetFeeRate(c.Request.Context(), middleware.Caller(c), *req.RateBps); err != nil {
		s.fail(c, err)
		return
	}
	s.getSettings(c)
}

func (s *HTTPServer) setFeeSink(c *gin.Context) {
	var req dto.FeeSinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !common.IsHexAddress(req.Sink) {
		badRequest(c, errors.New("sink must be a hex address"))
		return
	}
	if err := s.Eng.SetFeeSink(c.Request.Context(), middleware.Caller(c), common.HexToAddress(req.Sink)); err != nil {
		s.fail(c, err)
		return
	}
	s.getSettings(c)
}

func (s *HTTPServer) registerToken(c *gin.Context) {
	var req dto.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t := domain.Token{Symbol: req.Symbol, Decimals: req.Decimals}
	if req.Contract != "" {
		if !common.IsHexAddress(req.Contract) {
			badRequest(c, errors.New("contract must be a hex address"))
			return
		}
		t.Contract = common.HexToAddress(req.Contract)
	}
	if err := s.Eng.RegisterToken(c.Request.Context(), middleware.Caller(c), t); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *HTTPServer) setHook(c *gin.Context) {
	var req dto.HookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.Eng.SetHookEnabled(c.Request.Context(), middleware.Caller(c), *req.Enabled); err != nil {
		s.fail(c, err)
		return
	}
	s.getSettings(c)
}

func (s *HTTPServer) approve(c *gin.Context) {
	var req dto.FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Amount.IsNegative() {
		badRequest(c, errors.New("amount must not be negative"))
		return
	}
	caller := middleware.Caller(c)
	s.wallet.Approve(req.Symbol, caller, req.Amount)
	s.log.Infow("allowance_set", "account", caller.Hex(), "symbol", req.Symbol, "amount", req.Amount)
	s.balanceOf(c, caller, req.Symbol)
}

func (s *HTTPServer) fund(c *gin.Context) {
	var req dto.FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Amount.IsPositive() {
		badRequest(c, errors.New("amount must be positive"))
		return
	}
	caller := middleware.Caller(c)
	s.wallet.Mint(req.Symbol, caller, req.Amount)
	s.log.Infow("faucet_minted", "account", caller.Hex(), "symbol", req.Symbol, "amount", req.Amount)
	s.balanceOf(c, caller, req.Symbol)
}

func (s *HTTPServer) balanceOf(c *gin.Context, account common.Address, symbol string) {
	bal, err := s.Bank.Balance(c.Request.Context(), symbol, account)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{
		Account:   account.Hex(),
		Symbol:    symbol,
		Balance:   bal,
		Allowance: s.wallet.Allowance(symbol, account),
	})
}

func orderID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, errors.New("order id must be an unsigned integer"))
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Kind: string(domain.InvalidParameters)})
}

func (s *HTTPServer) fail(c *gin.Context, err error) {
	kind, ok := domain.KindOf(err)
	if !ok {
		s.log.Errorw("request_failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(StatusOf(kind), dto.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

// StatusOf maps a ledger error kind to an HTTP status code.
func StatusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.InvalidParameters, domain.UnregisteredAsset:
		return http.StatusBadRequest
	case domain.Unauthorized:
		return http.StatusForbidden
	case domain.OrderNotFound:
		return http.StatusNotFound
	case domain.OrderNotActive:
		return http.StatusConflict
	case domain.InsufficientFunds, domain.InsufficientAllowance,
		domain.PairMismatch, domain.SideMismatch, domain.PriceCrossViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
