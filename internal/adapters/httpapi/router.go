package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter wires the middleware and routes. /metrics is mounted only when
// gatherer is non-nil; /debug/vars always serves the process expvars.
func NewRouter(h *Handler, logger zerolog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/overview", h.overview)
		v1.GET("/insights", h.insights)

		views := v1.Group("/views")
		{
			views.GET("/headmaster", h.headmaster)
			views.GET("/secretary", h.secretary)
			views.GET("/accountant", h.accountant)
			views.GET("/dataentry", h.dataEntry)
			views.GET("/rector", h.rector)
		}

		students := v1.Group("/students")
		{
			students.GET("", h.listStudents)
			students.POST("", h.issueSlip)
			students.GET("/:id", h.getStudent)
			students.POST("/:id/sell", h.gated(h.Service.SellForm))
			students.POST("/:id/pay", h.recordPayment)
			students.POST("/:id/biodata", h.gated(h.Service.LogBioData))
			students.POST("/:id/transcript", h.gated(h.Service.LogTranscript))
			students.POST("/:id/review", h.review)
		}

		v1.GET("/reports/roster.xlsx", h.downloadRoster)

		archive := v1.Group("", h.requireExporter)
		{
			archive.GET("/backups", h.listBackups)
			archive.POST("/backups", h.exportSnapshot)
			archive.POST("/backups/restore", h.restoreBackup)
			archive.POST("/reports/roster", h.exportRoster)
		}
	}
	return r
}
