package reporting

import (
	"errors"
	"net/http"
	"strconv"

	httperr "github.com/ea7klk/bm-lh-react-sub000/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all reporting API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/activity/talkgroups", s.HandleTalkgroupLeaderboard)
	r.GET("/v1/activity/talkgroups/:destination_id/sources", s.HandleSourcesForTalkgroup)
	r.GET("/v1/activity/hourly", s.HandleHourlyActivity)

	r.GET("/v1/admin/runs", s.HandleRecentRuns)
	r.GET("/v1/admin/statistics", s.HandleStatistics)
}

// HandleTalkgroupLeaderboard handles GET /v1/activity/talkgroups
// Query parameters: start, end (epoch seconds), limit
func (s *Service) HandleTalkgroupLeaderboard(c *gin.Context) {
	var query ActivityQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		writeInvalidQuery(c, "Invalid query parameters", err)
		return
	}

	resp, err := s.TalkgroupLeaderboard(c.Request.Context(), query)
	if err != nil {
		writeServiceError(c, "Failed to query talkgroup activity", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleSourcesForTalkgroup handles GET /v1/activity/talkgroups/:destination_id/sources
func (s *Service) HandleSourcesForTalkgroup(c *gin.Context) {
	destinationID, err := strconv.ParseInt(c.Param("destination_id"), 10, 64)
	if err != nil {
		writeInvalidQuery(c, "Invalid destination_id path parameter", err)
		return
	}

	var query ActivityQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		writeInvalidQuery(c, "Invalid query parameters", err)
		return
	}

	resp, err := s.SourcesForTalkgroup(c.Request.Context(), destinationID, query)
	if err != nil {
		writeServiceError(c, "Failed to query talkgroup sources", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleHourlyActivity handles GET /v1/activity/hourly
// Query parameters: start, end (epoch seconds), optional destination_id
func (s *Service) HandleHourlyActivity(c *gin.Context) {
	var query ActivityQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		writeInvalidQuery(c, "Invalid query parameters", err)
		return
	}

	var destinationID *int64
	if raw := c.Query("destination_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeInvalidQuery(c, "Invalid destination_id query parameter", err)
			return
		}
		destinationID = &parsed
	}

	resp, err := s.HourlyActivity(c.Request.Context(), query, destinationID)
	if err != nil {
		writeServiceError(c, "Failed to query hourly activity", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleRecentRuns handles GET /v1/admin/runs
func (s *Service) HandleRecentRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeInvalidQuery(c, "Invalid limit query parameter", err)
			return
		}
		limit = parsed
	}

	resp, err := s.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, "Failed to query processing runs", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleStatistics handles GET /v1/admin/statistics
func (s *Service) HandleStatistics(c *gin.Context) {
	resp, err := s.Statistics(c.Request.Context())
	if err != nil {
		writeServiceError(c, "Failed to query store statistics", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func writeInvalidQuery(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.HttpInvalidQueryError,
		Message:   message,
		Details:   err.Error(),
	})
}

func writeServiceError(c *gin.Context, message string, err error) {
	if errors.Is(err, ErrInvalidQuery) {
		writeInvalidQuery(c, message, err)
		return
	}

	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   message,
		Details:   err.Error(),
	})
}
