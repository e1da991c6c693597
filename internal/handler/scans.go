package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gateattend/internal/auth"
	"gateattend/internal/model"
)

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		healthy := check(c.Request.Context()) == nil
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (h *Handler) registerStation(c *gin.Context) {
	var req struct {
		StationID string `json:"station_id" binding:"required"`
		EnrollKey string `json:"enroll_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.auth.EnrollKey != "" && subtle.ConstantTimeCompare([]byte(req.EnrollKey), []byte(h.auth.EnrollKey)) != 1 {
		h.log.Warn("station enrollment rejected", zap.String("station_id", req.StationID), zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid enroll key"})
		return
	}

	tok, err := auth.Issue(req.StationID, auth.RoleStation, h.auth.Issuer, h.auth.SigningKey, h.auth.TTL)
	if err != nil {
		h.log.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	h.log.Info("station registered", zap.String("station_id", req.StationID))
	c.JSON(http.StatusCreated, gin.H{
		"access_token": tok.AccessToken,
		"expires_at":   tok.ExpiresAt.Unix(),
	})
}

type scanRequest struct {
	RawToken   string     `json:"raw_token" binding:"required"`
	Source     string     `json:"source"`
	CapturedAt *time.Time `json:"captured_at"`
	Direction  string     `json:"direction"`
}

func (h *Handler) postScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evt := model.ScanEvent{RawToken: req.RawToken, Source: model.SourceAPI}
	switch model.Source(req.Source) {
	case "", model.SourceAPI:
	case model.SourceWebcam, model.SourcePhysicalScanner:
		evt.Source = model.Source(req.Source)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "source must be webcam, physical_scanner or api"})
		return
	}
	if req.CapturedAt != nil {
		evt.CapturedAt = *req.CapturedAt
	}
	if claims, ok := auth.FromContext(c); ok {
		evt.StationID = claims.StationID
	}

	var dir model.Direction
	if req.Direction != "" {
		d, ok := model.ParseDirection(req.Direction)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be entry or exit"})
			return
		}
		dir = d
	}

	out, err := h.proc.Process(c.Request.Context(), evt, dir)
	switch {
	case errors.Is(err, model.ErrEmptyToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found", "key": out.Key})
	case errors.Is(err, model.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable", "retryable": true})
	case err != nil:
		h.log.Error("scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	case out.Duplicate:
		c.JSON(http.StatusAccepted, out)
	case out.Created:
		c.JSON(http.StatusCreated, out)
	default:
		c.JSON(http.StatusOK, out)
	}
}
