package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"propTradeSim/internal/app"
	"propTradeSim/internal/ports"
)

// Server exposes the simulation service over HTTP.
type Server struct {
	service *app.Service
	logger  ports.Logger
	http    *http.Server
}

// Config holds the HTTP server's dependencies.
type Config struct {
	Addr    string
	Service *app.Service
	Logger  ports.Logger
}

// NewServer builds the router and wraps it in an http.Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("service and logger are required for HTTP server")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{service: cfg.Service, logger: cfg.Logger}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/accounts", s.openAccount)
		api.GET("/accounts/:id", s.getAccount)
		api.POST("/accounts/:id/advance", s.advanceAccount)
		api.POST("/accounts/:id/reset", s.resetAccount)
		api.GET("/accounts/:id/orders", s.listOrders)
		api.GET("/accounts/:id/positions", s.listPositions)
		api.POST("/accounts/:id/positions/:symbol/close", s.closePosition)
		api.GET("/accounts/:id/performance", s.getPerformance)

		api.POST("/orders", s.submitOrder)
		api.DELETE("/orders/:id", s.cancelOrder)
		api.PATCH("/orders/:id", s.modifyOrder)

		api.GET("/market/:symbol/price", s.getPrice)
		api.GET("/market/:symbol/candles", s.getCandles)
		api.POST("/market/:symbol/tick", s.tickSymbol)
	}

	s.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run serves HTTP until the context is cancelled, then drains with a
// short shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP API listening", map[string]interface{}{"addr": s.http.Addr})
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP shutdown failed: %w", err)
		}
		return <-errCh
	}
}
