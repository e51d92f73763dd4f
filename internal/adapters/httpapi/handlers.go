package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/ports"
)

// Domain entities carry no JSON tags; the wire shape is owned here.

type orderResponse struct {
	ID                string    `json:"id"`
	AccountID         string    `json:"accountId"`
	Symbol            string    `json:"symbol"`
	Type              string    `json:"orderType"`
	Side              string    `json:"side"`
	Quantity          int64     `json:"quantity"`
	RemainingQuantity int64     `json:"remainingQuantity"`
	TimeInForce       string    `json:"timeInForce"`
	Status            string    `json:"status"`
	LimitPrice        *float64  `json:"limitPrice,omitempty"`
	StopPrice         *float64  `json:"stopPrice,omitempty"`
	TrailAmount       *float64  `json:"trailAmount,omitempty"`
	TrailStopPrice    *float64  `json:"trailStopPrice,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		AccountID:         o.AccountID,
		Symbol:            o.Symbol,
		Type:              string(o.Type),
		Side:              string(o.Side),
		Quantity:          o.Quantity,
		RemainingQuantity: o.RemainingQuantity,
		TimeInForce:       string(o.TimeInForce),
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if o.Limit != nil {
		resp.LimitPrice = &o.Limit.Price
	}
	if o.Stop != nil {
		resp.StopPrice = &o.Stop.Price
	}
	if o.Trail != nil {
		resp.TrailAmount = &o.Trail.Amount
		resp.TrailStopPrice = &o.Trail.StopPrice
	}
	return resp
}

type accountResponse struct {
	ID                  string    `json:"id"`
	Phase               string    `json:"phase"`
	Status              string    `json:"status"`
	Balance             float64   `json:"balance"`
	HighWaterMark       float64   `json:"highWaterMark"`
	CurrentDrawdown     float64   `json:"currentDrawdown"`
	DrawdownThreshold   float64   `json:"drawdownThreshold"`
	DayStartBalance     float64   `json:"dayStartBalance"`
	DailyLossLimitHit   bool      `json:"dailyLossLimitHit"`
	TradingDay          string    `json:"tradingDay"`
	TradingDays         int       `json:"tradingDays"`
	ProfitTargetReached bool      `json:"profitTargetReached"`
	ResetCount          int       `json:"resetCount"`
	Created             time.Time `json:"created"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:                  a.ID,
		Phase:               string(a.Phase),
		Status:              string(a.Status),
		Balance:             a.CurrentBalance,
		HighWaterMark:       a.HighWaterMark,
		CurrentDrawdown:     a.CurrentDrawdown,
		DrawdownThreshold:   a.DrawdownThreshold,
		DayStartBalance:     a.DayStartBalance,
		DailyLossLimitHit:   a.DailyLossLimitHit,
		TradingDay:          a.TradingDay,
		TradingDays:         a.TradingDays,
		ProfitTargetReached: a.ProfitTargetReached,
		ResetCount:          a.ResetCount,
		Created:             a.Created,
	}
}

type positionResponse struct {
	AccountID     string    `json:"accountId"`
	Symbol        string    `json:"symbol"`
	Quantity      int64     `json:"quantity"`
	AvgEntryPrice float64   `json:"avgEntryPrice"`
	RealizedPnl   float64   `json:"realizedPnl"`
	UnrealizedPnl float64   `json:"unrealizedPnl"`
	OpenedAt      time.Time `json:"openedAt"`
}

func toPositionResponse(p domain.Position) positionResponse {
	return positionResponse{
		AccountID:     p.AccountID,
		Symbol:        p.Symbol,
		Quantity:      p.Quantity,
		AvgEntryPrice: p.AvgEntryPrice,
		RealizedPnl:   p.RealizedPNL,
		UnrealizedPnl: p.UnrealizedPNL,
		OpenedAt:      p.OpenedAt,
	}
}

type candleResponse struct {
	OpenTime  time.Time `json:"openTime"`
	CloseTime time.Time `json:"closeTime"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	IsFinal   bool      `json:"isFinal"`
}

func toCandleResponse(c domain.Candle) candleResponse {
	return candleResponse{
		OpenTime:  c.OpenTime,
		CloseTime: c.CloseTime,
		Symbol:    c.Symbol,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		IsFinal:   c.IsFinal,
	}
}

// respondError maps domain sentinels onto HTTP statuses: unknown
// resources are 404, state-machine refusals are 422, everything else
// falls through to 500.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ports.ErrUnknownAccount),
		errors.Is(err, ports.ErrOrderNotFound),
		errors.Is(err, ports.ErrUnknownSymbol),
		errors.Is(err, ports.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ports.ErrInvalidState),
		errors.Is(err, ports.ErrNoOpenPosition),
		errors.Is(err, ports.ErrInvalidRequest),
		errors.Is(err, ports.ErrDuplicateEntry):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error(c.Request.Context(), err, "Request failed", map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type openAccountRequest struct {
	AccountID string `json:"accountId" binding:"required"`
}

func (s *Server) openAccount(c *gin.Context) {
	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account payload"})
		return
	}
	acct, err := s.service.OpenAccount(c.Request.Context(), req.AccountID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAccountResponse(acct))
}

func (s *Server) getAccount(c *gin.Context) {
	acct, err := s.service.Account(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(acct))
}

func (s *Server) advanceAccount(c *gin.Context) {
	acct, err := s.service.AdvanceAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(acct))
}

func (s *Server) resetAccount(c *gin.Context) {
	acct, err := s.service.ResetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(acct))
}

func (s *Server) submitOrder(c *gin.Context) {
	var req domain.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order payload"})
		return
	}
	order, validation, err := s.service.SubmitOrder(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !validation.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"violations": validation.Violations})
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (s *Server) cancelOrder(c *gin.Context) {
	if err := s.service.CancelOrder(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) modifyOrder(c *gin.Context) {
	var req domain.ModifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid modify payload"})
		return
	}
	order, err := s.service.ModifyOrder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) listOrders(c *gin.Context) {
	orders := s.service.Orders(c.Param("id"))
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listPositions(c *gin.Context) {
	positions, err := s.service.OpenPositions(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, toPositionResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) closePosition(c *gin.Context) {
	order, validation, err := s.service.ClosePosition(c.Request.Context(), c.Param("id"), c.Param("symbol"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !validation.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"violations": validation.Violations})
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (s *Server) getPerformance(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Performance(c.Param("id")))
}

func (s *Server) getPrice(c *gin.Context) {
	symbol := c.Param("symbol")
	price, err := s.service.CurrentPrice(symbol)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

func (s *Server) getCandles(c *gin.Context) {
	count := 100
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
			return
		}
		count = parsed
	}
	candles, err := s.service.HistoricalCandles(c.Param("symbol"), count)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]candleResponse, 0, len(candles))
	for _, candle := range candles {
		out = append(out, toCandleResponse(candle))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) tickSymbol(c *gin.Context) {
	tick, err := s.service.TickSymbol(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": tick.Symbol,
		"seq":    tick.Seq,
		"price":  tick.Price,
		"time":   tick.Time,
	})
}
