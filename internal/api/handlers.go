package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"market-signals/internal/auth"
	"market-signals/internal/scoring"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleMarkets(c *gin.Context) {
	markets := scoring.Markets()
	out := make([]gin.H, 0, len(markets))
	for _, m := range markets {
		out = append(out, gin.H{
			"market":  m,
			"symbols": len(s.engine.Symbols(m)),
		})
	}
	c.JSON(http.StatusOK, gin.H{"markets": out})
}

// handleSignal scores one symbol live.
//
//	GET /api/v1/signal/:symbol?market=SP500&mode=HIGH_CONF
func (s *Server) handleSignal(c *gin.Context) {
	symbol := c.Param("symbol")
	market := scoring.ResolveMarket(c.Query("market"))
	mode := scoring.ResolveMode(c.Query("mode"))

	signal, err := s.engine.LiveSignal(c.Request.Context(), symbol, market, mode)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, signal)
}

// handleAudit runs (or serves the cached) strategy audit for a market.
//
//	GET /api/v1/audit/:market?mode=STANDARD
func (s *Server) handleAudit(c *gin.Context) {
	market := scoring.ResolveMarket(c.Param("market"))
	mode := scoring.ResolveMode(c.Query("mode"))

	report, err := s.engine.RunAudit(c.Request.Context(), market, mode)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleValidation runs (or serves the cached) leave-one-out validation.
//
//	GET /api/v1/validation/:market?mode=STANDARD
func (s *Server) handleValidation(c *gin.Context) {
	market := scoring.ResolveMarket(c.Param("market"))
	mode := scoring.ResolveMode(c.Query("mode"))

	report, err := s.engine.RunValidation(c.Request.Context(), market, mode)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ============================================================================
// AUTH + FAVORITES
// ============================================================================

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, user, err := s.authService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrEmailTaken) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, user, err := s.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (s *Server) handleListFavorites(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok || s.repo == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	favorites, err := s.repo.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load favorites"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

type favoriteRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Market string `json:"market"`
}

func (s *Server) handleAddFavorite(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok || s.repo == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	market := string(scoring.ResolveMarket(req.Market))
	if err := s.repo.AddFavorite(c.Request.Context(), userID, req.Symbol, market); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save favorite"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"symbol": req.Symbol, "market": market})
}

func (s *Server) handleRemoveFavorite(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok || s.repo == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	symbol := c.Param("symbol")
	if err := s.repo.RemoveFavorite(c.Request.Context(), userID, symbol); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove favorite"})
		return
	}
	c.Status(http.StatusNoContent)
}
