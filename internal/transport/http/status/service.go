// Package status reports process and attachment health over HTTP.
package status

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	domainattach "inkwell-server-go/internal/domain/attach"
	"inkwell-server-go/internal/platform/config"
	"inkwell-server-go/internal/platform/errors"
	"inkwell-server-go/internal/platform/logging"
)

// Service serves the status endpoint.
type Service struct {
	logger      *logging.Logger
	config      *config.Config
	attachments *domainattach.AttachmentService
	startedAt   time.Time
}

// NewService creates the status HTTP service.
func NewService(
	config *config.Config,
	logger *logging.Logger,
	attachments *domainattach.AttachmentService,
) (*Service, error) {
	if config == nil {
		return nil, errors.New(errors.KindConfig, "status.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "status.new", "logger is required")
	}
	if attachments == nil {
		return nil, errors.New(errors.KindConfig, "status.new", "attachment service is required")
	}

	return &Service{
		logger:      logger,
		config:      config,
		attachments: attachments,
		startedAt:   time.Now(),
	}, nil
}

// Register mounts the status route.
func (s *Service) Register(ctx context.Context, api *gin.RouterGroup) error {
	api.GET("/status", s.handleStatus)
	s.logger.InfoTag("HTTP", "status route registered")
	return nil
}

// handleStatus reports process health and attachment counters.
// @Summary Server status
// @Description Returns uptime, host resource usage, and attachment pipeline counters.
// @Tags Status
// @Produce json
// @Success 200 {object} object
// @Router /status [get]
func (s *Service) handleStatus(c *gin.Context) {
	system := gin.H{
		"goroutines": runtime.NumGoroutine(),
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		system["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		system["memory_percent"] = vm.UsedPercent
		system["memory_total_mb"] = vm.Total / 1024 / 1024
	}

	payload := gin.H{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"system":         system,
	}
	if stats, err := s.attachments.Stats(c.Request.Context()); err == nil {
		payload["attachments"] = stats
	} else {
		s.logger.Warn("status attachment stats failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payload,
		"message": "ok",
		"code":    http.StatusOK,
	})
}
