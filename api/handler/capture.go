package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inf-mc/NoteBot-sub001/executor"
	"github.com/inf-mc/NoteBot-sub001/models"
	"github.com/inf-mc/NoteBot-sub001/ops"
)

// Screenshot returns a handler for POST /api/v1/screenshot. The response
// body is the PNG itself.
func Screenshot(ex *executor.Executor, policy *ops.DomainPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}

		op := ops.Screenshot(ops.CaptureOptions{
			URL:      req.URL,
			Stealth:  req.Stealth,
			FullPage: req.FullPage,
			Actions:  req.Actions,
		}, policy)

		v, err := ex.Do(c.Request.Context(), op, execOptions(req.TimeoutS))
		if err != nil {
			respondError(c, err, start)
			return
		}

		c.Data(http.StatusOK, "image/png", v.([]byte))
	}
}

// PDF returns a handler for POST /api/v1/pdf. The response body is the
// PDF document.
func PDF(ex *executor.Executor, policy *ops.DomainPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}

		op := ops.PDF(ops.CaptureOptions{
			URL:     req.URL,
			Stealth: req.Stealth,
			Actions: req.Actions,
		}, policy)

		v, err := ex.Do(c.Request.Context(), op, execOptions(req.TimeoutS))
		if err != nil {
			respondError(c, err, start)
			return
		}

		c.Data(http.StatusOK, "application/pdf", v.([]byte))
	}
}
