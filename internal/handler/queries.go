package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gateattend/internal/attendance"
	"gateattend/internal/model"
	"gateattend/internal/schedule"
)

func (h *Handler) storeError(c *gin.Context, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable", "retryable": true})
}

func (h *Handler) studentAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	date := c.Query("date")
	if date == "" {
		date = h.now().In(h.loc).Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	st, err := h.store.FindStudent(ctx, model.FieldID, id)
	if err != nil {
		h.storeError(c, "find student", err)
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	records, err := h.store.ListRecords(ctx, id, date)
	if err != nil {
		h.storeError(c, "list records", err)
		return
	}
	if records == nil {
		records = []model.AttendanceRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": attendance.Summarize(id, date, records),
		"records": records,
	})
}

func (h *Handler) studentStatus(c *gin.Context) {
	live, err := h.store.GetLiveStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, "get live status", err)
		return
	}
	if live == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no attendance recorded yet"})
		return
	}
	c.JSON(http.StatusOK, live)
}

func (h *Handler) getSchedule(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"windows": h.schedules.Windows()})
}

func (h *Handler) resolveSchedule(c *gin.Context) {
	level, label := c.Query("grade_level"), c.Query("grade_label")
	c.JSON(http.StatusOK, gin.H{
		"bracket": schedule.Classify(level, label),
		"window":  h.schedules.Resolve(level, label),
	})
}

// putSchedule merges the posted keys into the stored settings and swaps the
// resolver table in place.
func (h *Handler) putSchedule(c *gin.Context) {
	ctx := c.Request.Context()
	var settings map[string]string
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(settings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no settings given"})
		return
	}
	if bad := schedule.ValidateSettings(settings); len(bad) > 0 {
		sort.Strings(bad)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule settings", "keys": bad})
		return
	}

	merged, err := h.store.GetScheduleConfig(ctx)
	if err != nil {
		h.storeError(c, "load schedule", err)
		return
	}
	if merged == nil {
		merged = make(map[string]string, len(settings))
	}
	for k, v := range settings {
		merged[k] = v
	}
	if _, bad := schedule.BuildTable(merged); len(bad) > 0 {
		sort.Strings(bad)
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule windows must end after they start", "keys": bad})
		return
	}

	if err := h.store.SaveScheduleConfig(ctx, settings); err != nil {
		h.storeError(c, "save schedule", err)
		return
	}
	h.schedules.Apply(merged)
	h.log.Info("schedule updated", zap.Int("keys", len(settings)))
	c.JSON(http.StatusOK, gin.H{"windows": h.schedules.Windows()})
}
