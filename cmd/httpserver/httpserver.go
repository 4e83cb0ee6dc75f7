// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/go-petr/carmarket-wallet/internal/auctiondelivery"
	"github.com/go-petr/carmarket-wallet/internal/auctionservice"
	"github.com/go-petr/carmarket-wallet/internal/escrowdelivery"
	"github.com/go-petr/carmarket-wallet/internal/escrowservice"
	"github.com/go-petr/carmarket-wallet/internal/eventpub"
	"github.com/go-petr/carmarket-wallet/internal/ledgerdelivery"
	"github.com/go-petr/carmarket-wallet/internal/ledgerservice"
	"github.com/go-petr/carmarket-wallet/internal/ledgerstore"
	"github.com/go-petr/carmarket-wallet/internal/middleware"
	"github.com/go-petr/carmarket-wallet/internal/settlementdelivery"
	"github.com/go-petr/carmarket-wallet/internal/settlementservice"
	"github.com/go-petr/carmarket-wallet/internal/topupdelivery"
	"github.com/go-petr/carmarket-wallet/internal/topupservice"
	"github.com/go-petr/carmarket-wallet/pkg/configpkg"
	"github.com/go-petr/carmarket-wallet/pkg/tokenpkg"
	"github.com/go-petr/carmarket-wallet/pkg/web"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB         *sql.DB
	Engine     *gin.Engine
	Config     configpkg.Config
	Store      *ledgerstore.Store
	Ledger     *ledgerservice.Service
	Escrow     *escrowservice.Service
	Settlement *settlementservice.Service
	Auction    *auctionservice.Service
	TokenMaker tokenpkg.Maker
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
//
// Events are published to pub, or logged when pub is nil.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config, pub ledgerservice.Publisher) (*Server, error) {
	if pub == nil {
		pub = eventpub.Log{}
	}

	tokenMaker, err := tokenpkg.NewMaker(config.TokenType, config.TokenSymmetricKey)
	if err != nil {
		return nil, fmt.Errorf("cannot create token maker: %w", err)
	}

	if err := web.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("cannot register validators: %w", err)
	}

	store := ledgerstore.New(conn, ledgerstore.Options{
		MaxRetries:   config.TxMaxRetries,
		RetryBackoff: config.TxRetryBackoff,
		LockTimeout:  config.TxLockTimeout,
	})

	ledgerService := ledgerservice.New(store, pub)
	escrowService := escrowservice.New(ledgerService, config.EscrowDefaultTTL, config.EscrowMaxTTL)
	settlementService := settlementservice.New(ledgerService, escrowService)
	auctionService := auctionservice.New(ledgerService, escrowService, settlementService, config.BidHoldTTL)
	topupService := topupservice.New(ledgerService, config.TopupSecret)

	ledgerHandler := ledgerdelivery.NewHandler(ledgerService)
	escrowHandler := escrowdelivery.NewHandler(escrowService)
	settlementHandler := settlementdelivery.NewHandler(settlementService)
	auctionHandler := auctiondelivery.NewHandler(auctionService)
	topupHandler := topupdelivery.NewHandler(topupService)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.Metrics())
	engine.Use(gin.Recovery())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.POST("/topups/callback", topupHandler.Callback)

	authRoutes := engine.Group("/", middleware.AuthMiddleware(tokenMaker))

	authRoutes.POST("/accounts", ledgerHandler.CreateAccount)
	authRoutes.GET("/accounts", ledgerHandler.ListAccounts)
	authRoutes.GET("/accounts/:id/balance", ledgerHandler.GetBalance)
	authRoutes.GET("/accounts/:id/entries", ledgerHandler.ListEntries)

	authRoutes.POST("/transfers", ledgerHandler.Transfer)

	authRoutes.POST("/auctions/:id/status", auctionHandler.ManageStatus)
	authRoutes.POST("/auctions/:id/bids", auctionHandler.PlaceBid)

	serviceRoutes := engine.Group("/",
		middleware.AuthMiddleware(tokenMaker),
		middleware.RequireSubject(config.ServiceAccountList()),
	)

	serviceRoutes.POST("/ledger/credits", ledgerHandler.Credit)
	serviceRoutes.POST("/ledger/debits", ledgerHandler.Debit)
	serviceRoutes.POST("/ledger/reconcile/:id", ledgerHandler.Reconcile)

	serviceRoutes.POST("/escrow/holds", escrowHandler.Hold)
	serviceRoutes.GET("/escrow/holds/:id", escrowHandler.Get)
	serviceRoutes.POST("/escrow/holds/:id/release", escrowHandler.Release)

	serviceRoutes.POST("/settlements", settlementHandler.Settle)
	serviceRoutes.GET("/settlements/status", settlementHandler.Status)

	server := &Server{
		DB:         conn,
		Engine:     engine,
		Config:     config,
		Store:      store,
		Ledger:     ledgerService,
		Escrow:     escrowService,
		Settlement: settlementService,
		Auction:    auctionService,
		TokenMaker: tokenMaker,
	}

	return server, nil
}
