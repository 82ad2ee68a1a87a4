// Package attach exposes the attachment sink: the HTTP surface editor
// clients post images to, plus listing and deletion for tooling.
package attach

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainattach "inkwell-server-go/internal/domain/attach"
	"inkwell-server-go/internal/domain/eventbus"
	"inkwell-server-go/internal/platform/config"
	"inkwell-server-go/internal/platform/errors"
	"inkwell-server-go/internal/platform/logging"
)

// maxUploadMemory bounds the multipart parse buffer; the image pipeline
// enforces the real payload limit.
const maxUploadMemory = 10 * 1024 * 1024

// Service is the HTTP transport for the attachment domain.
type Service struct {
	logger      *logging.Logger
	config      *config.Config
	attachments *domainattach.AttachmentService
}

// NewService creates the attachment HTTP service.
func NewService(
	config *config.Config,
	logger *logging.Logger,
	attachments *domainattach.AttachmentService,
) (*Service, error) {
	if config == nil {
		return nil, errors.New(errors.KindConfig, "attach.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "attach.new", "logger is required")
	}
	if attachments == nil {
		return nil, errors.New(errors.KindConfig, "attach.new", "attachment service is required")
	}

	return &Service{
		logger:      logger,
		config:      config,
		attachments: attachments,
	}, nil
}

// Register mounts the attachment routes. Deletion goes on the secured
// group when one exists; everything else is open to editor clients.
func (s *Service) Register(ctx context.Context, api, secured *gin.RouterGroup) error {
	api.POST("/attach", s.handlePost)
	api.GET("/attach", s.handleList)
	api.GET("/attach/:id", s.handleGet)
	api.OPTIONS("/attach", s.handleOptions)

	deleteGroup := secured
	if deleteGroup == nil {
		deleteGroup = api
	}
	deleteGroup.DELETE("/attach/:id", s.handleDelete)

	s.logger.InfoTag("HTTP", "attachment routes registered")
	return nil
}

// handleOptions answers CORS preflight requests.
func (s *Service) handleOptions(c *gin.Context) {
	s.addCORSHeaders(c)
	c.Status(http.StatusOK)
}

// handlePost receives one multipart image upload.
// @Summary Store an editor image upload
// @Description Accepts a multipart image, validates it, stores the blob, and returns the public URL. Repeated content within the dedupe TTL answers with the already stored attachment.
// @Tags Attach
// @Accept multipart/form-data
// @Produce json
// @Param X-Editor-Session header string false "Editor session id"
// @Param image formData file true "Image file"
// @Success 200 {object} domainattach.AcceptResult
// @Failure 400 {object} object
// @Failure 403 {object} object
// @Failure 500 {object} object
// @Router /attach [post]
func (s *Service) handlePost(c *gin.Context) {
	s.addCORSHeaders(c)

	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		s.respondError(c, http.StatusBadRequest, "failed to parse multipart form")
		s.logger.Warn("attach form parse failed: %v", err)
		return
	}

	if !s.csrfValid(c) {
		s.respondError(c, http.StatusForbidden, "csrf check failed")
		return
	}

	fieldName := s.config.Upload.FieldName
	if fieldName == "" {
		fieldName = "image"
	}
	file, header, err := c.Request.FormFile(fieldName)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, fieldName+" field is required")
		return
	}
	defer file.Close()

	sessionID := c.GetHeader("X-Editor-Session")
	if sessionID == "" {
		sessionID = c.GetHeader("Client-Id")
	}

	result, err := s.attachments.Accept(c.Request.Context(), domainattach.AcceptRequest{
		SessionID: sessionID,
		FileName:  header.Filename,
		MIME:      header.Header.Get("Content-Type"),
		Reader:    file,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.IsKind(err, errors.KindDomain) {
			status = http.StatusBadRequest
		}

		eventbus.Publish(eventbus.EventUploadFailed, eventbus.UploadEventData{
			SessionID: sessionID,
			FileName:  header.Filename,
			Reason:    err.Error(),
		})
		s.logger.WarnTag("Attach", "upload rejected: %v", err)
		s.respondError(c, status, err.Error())
		return
	}

	eventbus.Publish(eventbus.EventUploadCompleted, eventbus.UploadEventData{
		SessionID:    sessionID,
		AttachmentID: result.ID,
		FileName:     header.Filename,
		Size:         result.Size,
		URL:          result.URL,
	})
	// Raw top-level JSON, no envelope: upload clients feed this body
	// straight to their insert callback and expect a url key.
	c.JSON(http.StatusOK, result)
}

// handleList returns recent attachments.
// @Summary List recent attachments
// @Tags Attach
// @Produce json
// @Param limit query int false "Maximum records to return" default(50)
// @Success 200 {array} aggregate.Attachment
// @Router /attach [get]
func (s *Service) handleList(c *gin.Context) {
	s.addCORSHeaders(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	attachments, err := s.attachments.List(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondSuccess(c, http.StatusOK, gin.H{
		"attachments": attachments,
		"count":       len(attachments),
	}, "attachments listed")
}

// handleGet returns a single attachment record.
// @Summary Get one attachment
// @Tags Attach
// @Produce json
// @Param id path string true "Attachment id"
// @Success 200 {object} aggregate.Attachment
// @Failure 404 {object} object
// @Router /attach/{id} [get]
func (s *Service) handleGet(c *gin.Context) {
	s.addCORSHeaders(c)

	attachment, err := s.attachments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if attachment == nil {
		s.respondError(c, http.StatusNotFound, "attachment not found")
		return
	}

	s.respondSuccess(c, http.StatusOK, attachment, "attachment found")
}

// handleDelete removes an attachment: blob, dedupe entry, and record.
// @Summary Delete an attachment
// @Tags Attach
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attachment id"
// @Success 200 {object} object
// @Failure 404 {object} object
// @Router /attach/{id} [delete]
func (s *Service) handleDelete(c *gin.Context) {
	s.addCORSHeaders(c)

	id := c.Param("id")
	if err := s.attachments.Delete(c.Request.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.IsKind(err, errors.KindDomain) {
			status = http.StatusNotFound
		}
		s.respondError(c, status, err.Error())
		return
	}

	s.respondSuccess(c, http.StatusOK, gin.H{"id": id}, "attachment deleted")
}

// csrfValid enforces the configured CSRF form field. With no token
// configured every request passes.
func (s *Service) csrfValid(c *gin.Context) bool {
	token := s.config.Upload.CSRFToken
	if token == "" {
		return true
	}
	return c.Request.FormValue(token) == s.config.Upload.CSRFHash
}

// addCORSHeaders adds the per-route CORS headers.
func (s *Service) addCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Headers", "client-id, content-type, x-editor-session, authorization")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
}

// respondSuccess writes a success envelope.
func (s *Service) respondSuccess(c *gin.Context, statusCode int, data interface{}, message string) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
		"message": message,
		"code":    statusCode,
	})
}

// respondError writes a failure envelope.
func (s *Service) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"data":    gin.H{"error": message},
		"message": message,
		"code":    statusCode,
	})
}
