package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/podium/internal/voting"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultHeartbeatInterval = 25 * time.Second

var (
	errMissingRepository  = errors.New("voting repository dependency required")
	errMissingTallyEngine = errors.New("tally engine dependency required")
)

// VotingRepository is the write side and listing surface of the voting core.
type VotingRepository interface {
	CreateCategory(ctx context.Context, name string) (voting.Category, error)
	DeleteCategory(ctx context.Context, name string) error
	ListCategories(ctx context.Context) ([]voting.Category, error)
	CreateCompetitor(ctx context.Context, category, competitor string) (voting.Competitor, error)
	DeleteCompetitor(ctx context.Context, category, competitor string) error
	ListCompetitors(ctx context.Context, category string) ([]voting.Competitor, error)
	CastVote(ctx context.Context, category, competitor string) (voting.TallyRow, error)
}

// TallyReader exposes ranked tallies.
type TallyReader interface {
	GetTallies(ctx context.Context, category string) ([]voting.TallyRow, error)
	GetWinner(ctx context.Context, category string) (voting.TallyRow, error)
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Dependencies struct {
	Repository        VotingRepository
	Tallies           TallyReader
	Health            HealthChecker
	Logger            *zap.Logger
	Realtime          *RealtimeDispatcher
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Repository == nil {
		return nil, errMissingRepository
	}
	if deps.Tallies == nil {
		return nil, errMissingTallyEngine
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(logger))
	router.Use(corsMiddleware())

	handler := &httpHandler{
		repository:        deps.Repository,
		tallies:           deps.Tallies,
		health:            deps.Health,
		logger:            logger,
		realtime:          realtime,
		heartbeatInterval: heartbeat,
	}

	router.GET("/healthz", handler.handleHealth)

	categories := router.Group("/categories")
	categories.GET("", handler.handleListCategories)
	categories.POST("", handler.handleCreateCategory)
	categories.DELETE("/:category", handler.handleDeleteCategory)
	categories.GET("/:category/competitors", handler.handleListCompetitors)
	categories.POST("/:category/competitors", handler.handleCreateCompetitor)
	categories.DELETE("/:category/competitors/:competitor", handler.handleDeleteCompetitor)
	categories.POST("/:category/competitors/:competitor/votes", handler.handleCastVote)
	categories.GET("/:category/tallies", handler.handleGetTallies)
	categories.GET("/:category/winner", handler.handleGetWinner)
	categories.GET("/:category/chart", handler.handleGetChart)
	categories.GET("/:category/stream", handler.handleTallyStream)

	return router, nil
}

type httpHandler struct {
	repository        VotingRepository
	tallies           TallyReader
	health            HealthChecker
	logger            *zap.Logger
	realtime          *RealtimeDispatcher
	heartbeatInterval time.Duration
}

type namePayload struct {
	Name string `json:"name"`
}

type categoryPayload struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type competitorPayload struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Votes    *int64 `json:"votes,omitempty"`
}

type tallyPayload struct {
	Competitor string `json:"competitor"`
	Votes      int64  `json:"votes"`
}

type winnerPayload struct {
	Winner *tallyPayload `json:"winner"`
	Notice string        `json:"notice,omitempty"`
}

type errorPayload struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.health != nil {
		if err := h.health.PingContext(c.Request.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	categories, err := h.repository.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	response := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		response = append(response, categoryPayload{ID: category.ID, Name: category.Name})
	}
	c.JSON(http.StatusOK, gin.H{"categories": response})
}

func (h *httpHandler) handleCreateCategory(c *gin.Context) {
	var request namePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "invalid_request", Severity: "error"})
		return
	}
	category, err := h.repository.CreateCategory(c.Request.Context(), request.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, categoryPayload{ID: category.ID, Name: category.Name})
}

func (h *httpHandler) handleDeleteCategory(c *gin.Context) {
	category := c.Param("category")
	if err := h.repository.DeleteCategory(c.Request.Context(), category); err != nil {
		h.respondError(c, err)
		return
	}
	h.notifyTallyChange(category)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListCompetitors(c *gin.Context) {
	category := c.Param("category")
	competitors, err := h.repository.ListCompetitors(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response := make([]competitorPayload, 0, len(competitors))
	for _, competitor := range competitors {
		response = append(response, competitorPayload{ID: competitor.ID, Name: competitor.Name, Category: category})
	}
	c.JSON(http.StatusOK, gin.H{"competitors": response})
}

func (h *httpHandler) handleCreateCompetitor(c *gin.Context) {
	category := c.Param("category")
	var request namePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "invalid_request", Severity: "error"})
		return
	}
	competitor, err := h.repository.CreateCompetitor(c.Request.Context(), category, request.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.notifyTallyChange(category)
	response := competitorPayload{ID: competitor.ID, Name: competitor.Name, Category: category}
	if competitor.Tally != nil {
		votes := competitor.Tally.Votes
		response.Votes = &votes
	}
	c.JSON(http.StatusCreated, response)
}

func (h *httpHandler) handleDeleteCompetitor(c *gin.Context) {
	category := c.Param("category")
	if err := h.repository.DeleteCompetitor(c.Request.Context(), category, c.Param("competitor")); err != nil {
		h.respondError(c, err)
		return
	}
	h.notifyTallyChange(category)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCastVote(c *gin.Context) {
	category := c.Param("category")
	row, err := h.repository.CastVote(c.Request.Context(), category, c.Param("competitor"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.notifyTallyChange(category)
	c.JSON(http.StatusOK, tallyPayload{Competitor: row.Competitor, Votes: row.Votes})
}

func (h *httpHandler) handleGetTallies(c *gin.Context) {
	tallies, err := h.tallies.GetTallies(c.Request.Context(), c.Param("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tallies": toTallyPayloads(tallies)})
}

func (h *httpHandler) handleGetWinner(c *gin.Context) {
	winner, err := h.tallies.GetWinner(c.Request.Context(), c.Param("category"))
	if errors.Is(err, voting.ErrNoCompetitors) {
		c.JSON(http.StatusOK, winnerPayload{Notice: "no_competitors"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, winnerPayload{Winner: &tallyPayload{Competitor: winner.Competitor, Votes: winner.Votes}})
}

func (h *httpHandler) handleGetChart(c *gin.Context) {
	category := c.Param("category")
	tallies, err := h.tallies.GetTallies(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildTallyChart(category, tallies))
}

// handleTallyStream emits the category's tallies on connect and after every change.
func (h *httpHandler) handleTallyStream(c *gin.Context) {
	category := c.Param("category")
	ctx := c.Request.Context()

	tallies, err := h.tallies.GetTallies(ctx, category)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if name, err := voting.NewCategoryName(category); err == nil {
		category = name.String()
	}
	stream, cleanup := h.realtime.Subscribe(ctx, category)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent(RealtimeEventTallyChanged, gin.H{"category": category, "tallies": toTallyPayloads(tallies)})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-stream:
			if !ok {
				return false
			}
			current, err := h.tallies.GetTallies(ctx, category)
			if err != nil {
				h.logger.Warn("tally stream refresh failed", zap.String("category", category), zap.Error(err))
				return false
			}
			c.SSEvent(RealtimeEventTallyChanged, gin.H{"category": category, "tallies": toTallyPayloads(current)})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"source": realtimeSourceBackend})
			return true
		}
	})
}

func (h *httpHandler) notifyTallyChange(category string) {
	h.realtime.PublishTallyChange(category)
}

// respondError maps voting error kinds onto HTTP statuses. Rejections that leave state
// unchanged are reported with severity "warning".
func (h *httpHandler) respondError(c *gin.Context, err error) {
	payload := errorPayload{
		Code:     voting.ErrorCode(err),
		Message:  voting.ErrorMessage(err),
		Severity: "error",
	}
	if voting.IsWarning(err) {
		payload.Severity = "warning"
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, voting.ErrInvalidInput):
		status, payload.Error = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, voting.ErrNotFound):
		status, payload.Error = http.StatusNotFound, "not_found"
	case errors.Is(err, voting.ErrDuplicateName):
		status, payload.Error = http.StatusConflict, "duplicate_name"
	case errors.Is(err, voting.ErrNoCompetitors):
		status, payload.Error = http.StatusNotFound, "no_competitors"
	case errors.Is(err, voting.ErrStoreUnavailable):
		status, payload.Error = http.StatusServiceUnavailable, "store_unavailable"
	default:
		payload.Error = "internal_error"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, payload)
}

func toTallyPayloads(rows []voting.TallyRow) []tallyPayload {
	payloads := make([]tallyPayload, 0, len(rows))
	for _, row := range rows {
		payloads = append(payloads, tallyPayload{Competitor: row.Competitor, Votes: row.Votes})
	}
	return payloads
}
