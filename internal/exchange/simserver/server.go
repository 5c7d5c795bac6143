// Package simserver exposes a paper exchange over the exchange HTTP protocol.
package simserver

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/exchange/paper"
	"github.com/betbot/deltamm/internal/exchange/wire"
)

type Server struct {
	ex  *paper.Exchange
	log *logrus.Entry
}

func New(ex *paper.Exchange) *Server {
	return &Server{ex: ex, log: logrus.WithField("component", "simserver")}
}

// Router 路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/instruments", s.handleInstruments)
	api.GET("/books/:id", s.handleBook)
	api.PUT("/books/:id", s.handleSetBook)
	api.GET("/positions", s.handlePositions)
	api.GET("/orders", s.handleOrders)
	api.POST("/orders", s.handleInsert)
	api.DELETE("/orders/:id", s.handleCancel)
	api.POST("/orders/:id/fill", s.handleFill)
	api.GET("/trades", s.handleTrades)
	return r
}

func (s *Server) handleInstruments(c *gin.Context) {
	all, err := s.ex.ListInstruments(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]wire.Instrument, 0, len(all))
	for _, inst := range all {
		out = append(out, wire.FromInstrument(inst))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleBook(c *gin.Context) {
	book, err := s.ex.GetOrderBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.FromOrderBook(book))
}

func (s *Server) handleSetBook(c *gin.Context) {
	var req wire.SetBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	b := wire.OrderBook{Bids: req.Bids, Asks: req.Asks}.Domain()
	s.ex.SetBook(c.Param("id"), b.Bids, b.Asks)
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePositions(c *gin.Context) {
	pos, err := s.ex.GetPositions(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, map[string]int(pos))
}

func (s *Server) handleOrders(c *gin.Context) {
	id := strings.TrimSpace(c.Query("instrument"))
	if id == "" {
		writeBadRequest(c, "instrument is required")
		return
	}
	orders, err := s.ex.GetOutstandingOrders(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]wire.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, wire.FromOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleInsert(c *gin.Context) {
	var req wire.InsertOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	order := req.Domain()
	if err := order.Validate(); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	id, err := s.ex.InsertOrder(c.Request.Context(), order)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.InsertOrderResponse{OrderID: id})
}

func (s *Server) handleCancel(c *gin.Context) {
	if err := s.ex.CancelOrder(c.Request.Context(), c.Query("instrument"), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFill(c *gin.Context) {
	var req wire.FillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	if req.Volume <= 0 {
		writeBadRequest(c, "volume must be > 0")
		return
	}
	if err := s.ex.Fill(c.Param("id"), req.Volume); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTrades(c *gin.Context) {
	id := strings.TrimSpace(c.Query("instrument"))
	if id == "" {
		writeBadRequest(c, "instrument is required")
		return
	}
	trades, err := s.ex.PollTrades(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]wire.Trade, 0, len(trades))
	for _, t := range trades {
		out = append(out, wire.FromTrade(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, wire.ErrorResponse{Code: wire.CodeOrderNotFound, Message: err.Error()})
	case errors.Is(err, domain.ErrUnknownInstrument):
		c.JSON(http.StatusNotFound, wire.ErrorResponse{Code: wire.CodeUnknownInstrument, Message: err.Error()})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		s.log.WithError(err).WithField("path", c.FullPath()).Warn("request failed")
		c.JSON(http.StatusInternalServerError, wire.ErrorResponse{Code: wire.CodeInternal, Message: err.Error()})
	}
}

func writeBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, wire.ErrorResponse{Code: wire.CodeBadRequest, Message: msg})
}
