package handler

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mortgage-deed-signing/internal/api_gateway/service"
)

// DefaultTimelineDays is used when the days query parameter is absent
const DefaultTimelineDays = 30

// StatsHandler serves the portfolio statistics
type StatsHandler struct {
	statsService service.StatsService
	logger       *slog.Logger
}

func NewStatsHandler(logger *slog.Logger, statsService service.StatsService) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		logger:       logger,
	}
}

// Summary counts deeds per status
func (h *StatsHandler) Summary(c *gin.Context) {
	summary, err := h.statsService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to compute summary")
		return
	}
	RespondOK(c, summary)
}

// StatusDurations reports average, min and max hours spent in each status
// over intervals deeds have already left
func (h *StatsHandler) StatusDurations(c *gin.Context) {
	averages, err := h.statsService.AverageStatusDurations(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to compute status durations")
		return
	}
	RespondOK(c, averages)
}

func (h *StatsHandler) Timeline(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(DefaultTimelineDays)))
	if err != nil {
		RespondBadRequest(c, "Invalid days parameter")
		return
	}

	points, err := h.statsService.Timeline(c.Request.Context(), days)
	if err != nil {
		respondError(c, h.logger, err, "Failed to compute timeline")
		return
	}
	RespondOK(c, points)
}
