package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/services"
)

type handlers struct {
	assistant *services.Assistant
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type statusResponse struct {
	models.KBStatus
	AnswerLatencyP50Ms float64 `json:"answer_latency_p50_ms"`
	AnswerLatencyP95Ms float64 `json:"answer_latency_p95_ms"`
}

func (h *handlers) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	// Degraded outcomes travel in the answer's status field, not in the
	// HTTP status code.
	c.JSON(http.StatusOK, h.assistant.Ask(c.Request.Context(), req.Question))
}

func (h *handlers) refresh(c *gin.Context) {
	h.assistant.Refresh()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started"})
}

func (h *handlers) status(c *gin.Context) {
	p50, p95 := h.assistant.AnswerLatency()
	c.JSON(http.StatusOK, statusResponse{
		KBStatus:           h.assistant.Status(),
		AnswerLatencyP50Ms: float64(p50.Microseconds()) / 1000,
		AnswerLatencyP95Ms: float64(p95.Microseconds()) / 1000,
	})
}

func (h *handlers) listServices(c *gin.Context) {
	records := h.assistant.Services()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(records),
		"services": records,
	})
}

func (h *handlers) getService(c *gin.Context) {
	record, ok := h.assistant.Service(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
