// Package handler exposes the attendance engine over HTTP.
package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gateattend/internal/auth"
	"gateattend/internal/model"
	"gateattend/internal/scan"
	"gateattend/internal/schedule"
)

// Store is the read side the API needs beyond the scan pipeline.
type Store interface {
	FindStudent(ctx context.Context, field model.StudentField, value string) (*model.Student, error)
	ListRecords(ctx context.Context, studentID, date string) ([]model.AttendanceRecord, error)
	GetLiveStatus(ctx context.Context, studentID string) (*model.LiveStatus, error)
	GetScheduleConfig(ctx context.Context) (map[string]string, error)
	SaveScheduleConfig(ctx context.Context, settings map[string]string) error
}

// AuthConfig controls station registration and token checks.
type AuthConfig struct {
	Issuer     string
	SigningKey string
	TTL        time.Duration
	// EnrollKey, when set, must accompany every registration.
	EnrollKey string
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	proc      *scan.Processor
	store     Store
	schedules *schedule.Resolver
	loc       *time.Location
	auth      AuthConfig
	health    map[string]HealthCheck
	log       *zap.Logger
	now       func() time.Time
}

func New(proc *scan.Processor, store Store, schedules *schedule.Resolver, loc *time.Location, authCfg AuthConfig, log *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		proc:      proc,
		store:     store,
		schedules: schedules,
		loc:       loc,
		auth:      authCfg,
		health:    make(map[string]HealthCheck),
		log:       log,
		now:       time.Now,
	}
}

// AddHealthCheck registers a dependency check reported by /healthz.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.health[name] = check
}

// Routes mounts every endpoint on r. limit runs after authentication so it can
// key on the station.
func (h *Handler) Routes(r gin.IRouter, limit gin.HandlerFunc) {
	r.GET("/healthz", h.healthz)
	r.POST("/v1/stations/register", h.registerStation)

	v1 := r.Group("/v1", auth.StationAuth(h.auth.SigningKey, h.auth.Issuer))
	if limit != nil {
		v1.Use(limit)
	}
	v1.POST("/scans", h.postScan)
	v1.GET("/students/:id/attendance", h.studentAttendance)
	v1.GET("/students/:id/status", h.studentStatus)
	v1.GET("/schedule", h.getSchedule)
	v1.GET("/schedule/resolve", h.resolveSchedule)
	v1.PUT("/schedule", h.putSchedule)
}
