package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inf-mc/NoteBot-sub001/executor"
	"github.com/inf-mc/NoteBot-sub001/models"
	"github.com/inf-mc/NoteBot-sub001/ops"
)

// Scrape returns a handler for POST /api/v1/scrape.
func Scrape(ex *executor.Executor, policy *ops.DomainPolicy, blockedTypes []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		op := ops.Scrape(ops.ScrapeOptions{
			URL:                  req.URL,
			Stealth:              req.Stealth,
			Headers:              req.Headers,
			Cookies:              req.Cookies,
			Actions:              req.Actions,
			BlockedResourceTypes: blockedTypes,
		}, policy)

		v, err := ex.Do(c.Request.Context(), op, execOptions(req.TimeoutS))
		if err != nil {
			respondError(c, err, start)
			return
		}
		result := v.(*ops.ScrapeResult)

		c.JSON(http.StatusOK, models.ScrapeResponse{
			Success:   true,
			HTML:      result.HTML,
			Title:     result.Title,
			FinalURL:  result.FinalURL,
			Links:     result.Links,
			ElapsedMs: time.Since(start).Milliseconds(),
		})
	}
}

// execOptions caps a caller-supplied timeout in seconds; zero means the
// executor default.
func execOptions(timeoutS int) executor.Options {
	const maxTimeout = 120 * time.Second
	if timeoutS <= 0 {
		return executor.Options{}
	}
	t := time.Duration(timeoutS) * time.Second
	if t > maxTimeout {
		t = maxTimeout
	}
	return executor.Options{Timeout: t}
}

// respondError maps a typed engine error to the right HTTP status and
// writes a structured JSON error body.
func respondError(c *gin.Context, err error, start time.Time) {
	typed := models.AsError(err)
	c.JSON(statusFor(typed), models.ScrapeResponse{
		Success:   false,
		Error:     typed.ToDetail(),
		ElapsedMs: time.Since(start).Milliseconds(),
	})
}

// statusFor translates error codes to HTTP status codes.
func statusFor(e *models.Error) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeDisconnected:
		return http.StatusBadGateway // 502
	case models.ErrCodeResourceLimit:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeSecurity:
		return http.StatusForbidden // 403
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
