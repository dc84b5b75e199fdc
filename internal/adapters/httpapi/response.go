package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"admissions/internal/core"
)

// Response is the envelope written by every JSON endpoint.
type Response struct {
	Success   bool         `json:"success"`
	Data      any          `json:"data,omitempty"`
	Warnings  []Warning    `json:"warnings,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// ErrorDetail carries a stable code and a readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Warning is a non-blocking rule outcome attached to a successful action.
type Warning struct {
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	EntityID string `json:"entityId,omitempty"`
}

const (
	CodeNotFound    = "NOT_FOUND"
	CodeValidation  = "VALIDATION_ERROR"
	CodeIneligible  = "INELIGIBLE"
	CodeRuleBlocked = "RULE_VIOLATION"
	CodeBadRequest  = "BAD_REQUEST"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL_ERROR"
)

func writeData(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

func writeResult(c *gin.Context, status int, data any, res core.Result) {
	var warnings []Warning
	for _, v := range res.Warnings() {
		warnings = append(warnings, Warning{Rule: v.Rule, Message: v.Message, EntityID: v.EntityID})
	}
	c.JSON(status, Response{Success: true, Data: data, Warnings: warnings, Timestamp: time.Now().UTC()})
}

func writeError(c *gin.Context, status int, detail ErrorDetail) {
	c.AbortWithStatusJSON(status, Response{Error: &detail, Timestamp: time.Now().UTC()})
}

// handleError maps service errors onto HTTP statuses.
func handleError(c *gin.Context, err error) {
	var (
		notFound   core.ErrNotFound
		validation core.ValidationError
		blocked    core.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(c, http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: err.Error()})
	case errors.As(err, &validation):
		writeError(c, http.StatusUnprocessableEntity, ErrorDetail{Code: CodeValidation, Message: validation.Message, Field: validation.Field})
	case errors.Is(err, core.ErrIneligible):
		writeError(c, http.StatusUnprocessableEntity, ErrorDetail{Code: CodeIneligible, Message: err.Error()})
	case errors.As(err, &blocked):
		msg := err.Error()
		for _, v := range blocked.Result.Violations {
			if v.Severity == core.SeverityBlock {
				msg = v.Message
				break
			}
		}
		writeError(c, http.StatusConflict, ErrorDetail{Code: CodeRuleBlocked, Message: msg})
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal server error"})
	}
}
