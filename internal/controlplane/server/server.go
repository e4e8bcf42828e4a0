// Package server is the control plane: an HTTP surface over the orchestrator
// plus a sqlite journal of every submission it has made.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/predictfi/gomarket/internal/market"
)

// Intents is the orchestrator surface the control plane drives. It is an
// interface so handler tests can run without a chain.
type Intents interface {
	Buy(ctx context.Context, p market.BuyParams) (*market.Result, error)
	Sell(ctx context.Context, p market.SellParams) (*market.Result, error)
	CreateMarket(ctx context.Context, p market.CreateMarketParams) (*market.CreateMarketResult, error)
	AddFunding(ctx context.Context, p market.AddFundingParams) (*market.Result, error)
	RemoveFunding(ctx context.Context, p market.RemoveFundingParams) (*market.Result, error)
	Redeem(ctx context.Context, p market.RedeemParams) (*market.Result, error)
	IsProxyUpToDate(ctx context.Context) (bool, error)
	UpgradeProxy(ctx context.Context) (*market.Result, error)
	ResolveMarket(ctx context.Context, address common.Address) (market.MarketRef, error)
}

type Config struct {
	DBPath string
}

type Server struct {
	cfg     Config
	db      *sql.DB
	intents Intents
	log     *logrus.Entry
}

func New(cfg Config, intents Intents, log *logrus.Entry) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if intents == nil {
		return nil, errors.New("intents backend is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Server{cfg: cfg, db: db, intents: intents, log: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api")

	intents := api.Group("/intents")
	intents.POST("/buy", s.wrap(s.handleBuy))
	intents.POST("/sell", s.wrap(s.handleSell))
	intents.POST("/create-market", s.wrap(s.handleCreateMarket))
	intents.POST("/add-funding", s.wrap(s.handleAddFunding))
	intents.POST("/remove-funding", s.wrap(s.handleRemoveFunding))
	intents.POST("/redeem", s.wrap(s.handleRedeem))

	proxyGroup := api.Group("/proxy")
	proxyGroup.GET("/status", s.wrap(s.handleProxyStatus))
	proxyGroup.POST("/upgrade", s.wrap(s.handleProxyUpgrade))

	api.GET("/submissions", s.wrap(s.handleSubmissionsList))

	return r
}

// wrap adapts net/http handlers to gin so handlers stay framework-agnostic.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		h(c.Writer, c.Request)
	}
}
