// Package httpapi exposes the admission workflow over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"admissions/internal/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves the dashboard views and the gated actions.
type Handler struct {
	Service *core.Service
	// Exporter is optional; archive endpoints answer 503 without it.
	Exporter        *core.Exporter
	Summarizer      core.Summarizer
	InsightsTimeout time.Duration
}

// StudentDetail is one record plus the actions currently open to it.
type StudentDetail struct {
	core.Student
	Completed int               `json:"completed"`
	Progress  string            `json:"progress"`
	Actions   []core.GateAction `json:"actions"`
}

// Insight is the advisory text returned by the insights endpoint.
type Insight struct {
	Summary string `json:"summary"`
}

func detail(st core.Student) StudentDetail {
	actions := core.EligibleActions(st)
	if actions == nil {
		actions = []core.GateAction{}
	}
	done := st.CompletedStages()
	return StudentDetail{
		Student:   st,
		Completed: done,
		Progress:  core.ProgressLabel(done),
		Actions:   actions,
	}
}

func (h *Handler) overview(c *gin.Context) {
	writeData(c, http.StatusOK, core.Overview(h.Service.State()))
}

func (h *Handler) headmaster(c *gin.Context) {
	writeData(c, http.StatusOK, core.Headmaster(h.Service.State()))
}

func (h *Handler) secretary(c *gin.Context) {
	writeData(c, http.StatusOK, core.Secretary(h.Service.State()))
}

func (h *Handler) accountant(c *gin.Context) {
	writeData(c, http.StatusOK, core.Accountant(h.Service.State(), h.Service.StandardFee()))
}

func (h *Handler) dataEntry(c *gin.Context) {
	writeData(c, http.StatusOK, core.DataEntry(h.Service.State()))
}

func (h *Handler) rector(c *gin.Context) {
	writeData(c, http.StatusOK, core.Rector(h.Service.State()))
}

func (h *Handler) listStudents(c *gin.Context) {
	students := core.NewestFirst(h.Service.State().Students)
	out := make([]StudentDetail, 0, len(students))
	for _, st := range students {
		out = append(out, detail(st))
	}
	writeData(c, http.StatusOK, out)
}

func (h *Handler) getStudent(c *gin.Context) {
	st, err := h.Service.Student(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	writeData(c, http.StatusOK, detail(st))
}

func (h *Handler) issueSlip(c *gin.Context) {
	var req core.IssueSlipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, ErrorDetail{Code: CodeBadRequest, Message: "invalid request body"})
		return
	}
	st, res, err := h.Service.IssueSlip(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	writeResult(c, http.StatusCreated, detail(st), res)
}

type gatedCall func(ctx context.Context, id string) (core.Student, core.Result, error)

func (h *Handler) gated(call gatedCall) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, res, err := call(c.Request.Context(), c.Param("id"))
		if err != nil {
			handleError(c, err)
			return
		}
		writeResult(c, http.StatusOK, detail(st), res)
	}
}

// recordPayment accepts an empty body, which charges the standard fee.
func (h *Handler) recordPayment(c *gin.Context) {
	var req core.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, ErrorDetail{Code: CodeBadRequest, Message: "invalid request body"})
		return
	}
	st, res, err := h.Service.RecordPayment(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		handleError(c, err)
		return
	}
	writeResult(c, http.StatusOK, detail(st), res)
}

func (h *Handler) review(c *gin.Context) {
	var req core.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, ErrorDetail{Code: CodeValidation, Message: "approve is required", Field: "approve"})
		return
	}
	st, res, err := h.Service.Review(c.Request.Context(), c.Param("id"), *req.Approve)
	if err != nil {
		handleError(c, err)
		return
	}
	writeResult(c, http.StatusOK, detail(st), res)
}

func (h *Handler) insights(c *gin.Context) {
	text := h.Service.Insights(c.Request.Context(), h.Summarizer, h.InsightsTimeout)
	writeData(c, http.StatusOK, Insight{Summary: text})
}

func (h *Handler) requireExporter(c *gin.Context) {
	if h.Exporter == nil {
		writeError(c, http.StatusServiceUnavailable, ErrorDetail{Code: CodeUnavailable, Message: "archive not configured"})
		return
	}
	c.Next()
}

func (h *Handler) listBackups(c *gin.Context) {
	infos, err := h.Exporter.Backups(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	writeData(c, http.StatusOK, infos)
}

func (h *Handler) exportSnapshot(c *gin.Context) {
	out, err := h.Exporter.ExportSnapshot(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	writeData(c, http.StatusCreated, out)
}

func (h *Handler) exportRoster(c *gin.Context) {
	out, err := h.Exporter.ExportRoster(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	writeData(c, http.StatusCreated, out)
}

func (h *Handler) restoreBackup(c *gin.Context) {
	var req core.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, ErrorDetail{Code: CodeValidation, Message: "key is required", Field: "key"})
		return
	}
	state, err := h.Exporter.ImportSnapshot(c.Request.Context(), req.Key)
	if err != nil {
		handleError(c, err)
		return
	}
	writeData(c, http.StatusOK, core.Overview(state))
}

// downloadRoster streams the roster workbook without archiving it. Rows follow
// the same order as the archived roster.
func (h *Handler) downloadRoster(c *gin.Context) {
	payload, err := core.RenderRoster(h.Service.State().Students)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="shs-admission-roster.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, payload)
}
