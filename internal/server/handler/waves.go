// Package handler contains the gin HTTP handlers and middleware for the
// waveledger API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/waveportal/waveledger/internal/ledger"
	"github.com/waveportal/waveledger/internal/waves"
)

// SubmitWaveRequest is the payload for POST /waves. The sender is an
// opaque identity token supplied by the caller; the server does not
// authenticate it. The message may be empty.
type SubmitWaveRequest struct {
	Sender  string `json:"sender" binding:"required"`
	Message string `json:"message"`
}

// WaveHandler exposes the submission and query surfaces of the ledger.
type WaveHandler struct {
	svc    *waves.Service
	logger *zap.Logger
}

// NewWaveHandler creates a new WaveHandler.
func NewWaveHandler(svc *waves.Service, logger *zap.Logger) *WaveHandler {
	return &WaveHandler{svc: svc, logger: logger}
}

// Register mounts the wave routes on the given router group.
func (h *WaveHandler) Register(rg *gin.RouterGroup) {
	w := rg.Group("/waves")
	{
		w.POST("", h.Submit)
		w.GET("", h.List)
		w.GET("/count", h.Count)
		w.GET("/:idx", h.GetWave)
	}
}

// Submit handles POST /waves — appends a wave and returns its record,
// including the assigned index.
func (h *WaveHandler) Submit(c *gin.Context) {
	var req SubmitWaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.svc.Append(c.Request.Context(), req.Sender, req.Message)
	if err != nil {
		h.logger.Error("append wave", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append wave"})
		return
	}

	RecordWaveAppend()
	c.JSON(http.StatusCreated, w)
}

// List handles GET /waves — returns the full history in append order.
func (h *WaveHandler) List(c *gin.Context) {
	all, err := h.svc.All(c.Request.Context())
	if err != nil {
		h.logger.Error("list waves", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query waves"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"waves": all,
		"count": len(all),
	})
}

// Count handles GET /waves/count.
func (h *WaveHandler) Count(c *gin.Context) {
	n, err := h.svc.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("count waves", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query wave count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": n})
}

// GetWave handles GET /waves/:idx — returns a single wave by position.
func (h *WaveHandler) GetWave(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be an integer"})
		return
	}

	w, err := h.svc.Get(c.Request.Context(), idx)
	if err != nil {
		if errors.Is(err, ledger.ErrOutOfRange) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wave index out of range"})
			return
		}
		h.logger.Error("get wave", zap.Int("idx", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query wave"})
		return
	}

	c.JSON(http.StatusOK, w)
}
