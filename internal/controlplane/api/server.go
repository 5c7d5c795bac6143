// Package api is the operator HTTP surface: status, halt/resume and journal queries.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/journal"
	"github.com/betbot/deltamm/internal/risk"
	"github.com/betbot/deltamm/internal/strategy"
)

// StatusProvider is satisfied by *strategy.Loop.
type StatusProvider interface {
	Status() strategy.Status
}

// History is satisfied by *journal.Journal.
type History interface {
	RecentFills(ctx context.Context, instrumentID string, limit int) ([]journal.Fill, error)
	RecentHedges(ctx context.Context, limit int) ([]journal.Hedge, error)
	RecentCycles(ctx context.Context, limit int) ([]domain.CycleReport, error)
}

type Server struct {
	status  StatusProvider
	breaker *risk.CircuitBreaker
	history History // nil when the journal is disabled
	log     *logrus.Entry
}

func New(status StatusProvider, breaker *risk.CircuitBreaker, history History) *Server {
	return &Server{
		status:  status,
		breaker: breaker,
		history: history,
		log:     logrus.WithField("component", "controlplane"),
	}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/halt", s.handleHalt)
	api.POST("/resume", s.handleResume)
	api.GET("/fills", s.handleFills)
	api.GET("/hedges", s.handleHedges)
	api.GET("/cycles", s.handleCycles)
	return r
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Status())
}

func (s *Server) handleHalt(c *gin.Context) {
	s.breaker.Halt()
	s.log.Warn("trading halted by operator")
	c.JSON(http.StatusOK, s.breaker.State())
}

func (s *Server) handleResume(c *gin.Context) {
	s.breaker.Resume()
	s.log.Warn("trading resumed by operator")
	c.JSON(http.StatusOK, s.breaker.State())
}

func (s *Server) handleFills(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	items, err := s.history.RecentFills(ctx, strings.TrimSpace(c.Query("instrument")), parseLimit(c, 200, 2000))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "db list fills: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": items})
}

func (s *Server) handleHedges(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	items, err := s.history.RecentHedges(ctx, parseLimit(c, 50, 500))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "db list hedges: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"hedges": items})
}

func (s *Server) handleCycles(c *gin.Context) {
	if !s.requireHistory(c) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	items, err := s.history.RecentCycles(ctx, parseLimit(c, 50, 500))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "db list cycles: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": items})
}

func (s *Server) requireHistory(c *gin.Context) bool {
	if s.history == nil {
		writeError(c, http.StatusNotFound, "journal disabled")
		return false
	}
	return true
}

func parseLimit(c *gin.Context, def, max int) int {
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
