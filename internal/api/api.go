// Package api exposes the score and leaderboard operations over REST.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bananagame/banago/internal/errors"
	"github.com/bananagame/banago/internal/identity"
	"github.com/bananagame/banago/internal/leaderboard"
	"github.com/bananagame/banago/internal/score"
	"github.com/bananagame/banago/internal/telemetry"
)

const defaultTop = 10

type Config struct {
	Engine      *gin.Engine
	Identity    *identity.Service
	Score       *score.Service
	Leaderboard *leaderboard.Service
	Metrics     *telemetry.Metrics
}

type API struct {
	ids     *identity.Service
	ss      *score.Service
	ls      *leaderboard.Service
	metrics *telemetry.Metrics
}

func New(c Config) *API {
	a := &API{
		ids:     c.Identity,
		ss:      c.Score,
		ls:      c.Leaderboard,
		metrics: c.Metrics,
	}

	c.Engine.POST("/api/auth/login", a.Login)

	game := c.Engine.Group("/api/game", identity.Middleware(c.Identity))
	game.POST("/submit-score", a.SubmitScore)
	game.GET("/leaderboard", a.GetLeaderboard)
	game.GET("/get-highest-score", a.GetHighestScore)

	return a
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := a.ids.Login(req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "username": req.Username})
}

type submitScoreRequest struct {
	Username string    `json:"username"`
	Points   int       `json:"points"`
	Date     time.Time `json:"date"`
}

func (a *API) SubmitScore(c *gin.Context) {
	p, ok := identity.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated principal"})
		return
	}

	var req submitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.metrics.ScoreSubmissions.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	err := a.ss.SubmitScore(c.Request.Context(), score.SubmitScoreRequest{
		Principal: p,
		Username:  req.Username,
		Points:    req.Points,
		Date:      req.Date,
	})
	if err != nil {
		a.metrics.ScoreSubmissions.WithLabelValues(outcome(err)).Inc()
		writeError(c, err)
		return
	}

	a.metrics.ScoreSubmissions.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Score submitted successfully."})
}

func (a *API) GetLeaderboard(c *gin.Context) {
	top := defaultTop
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid number of leaderboard entries"})
			return
		}
		top = n
	}

	a.metrics.LeaderboardReads.Inc()

	entries, err := a.ls.Top(c.Request.Context(), top)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scores found"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

type highestScoreResponse struct {
	Username     string `json:"username"`
	HighestScore int    `json:"highestScore"`
}

// GetHighestScore reports the personal best of the authenticated user. No
// stored record yields 404, which the client treats as a normal outcome.
func (a *API) GetHighestScore(c *gin.Context) {
	p, ok := identity.PrincipalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authenticated principal"})
		return
	}

	points, found, err := a.ss.GetHighestScore(c.Request.Context(), p.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scores found for the user"})
		return
	}

	c.JSON(http.StatusOK, highestScoreResponse{
		Username:     p.Username,
		HighestScore: points,
	})
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.JSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}

func outcome(err error) string {
	switch errors.Convert(err).Code {
	case errors.CodeInvalidArgument:
		return "invalid"
	case errors.CodeUnauthenticated:
		return "unauthorized"
	default:
		return "error"
	}
}
