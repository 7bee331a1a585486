package handlers

import (
	"net/http"
	"path"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/storage"
	"github.com/spec-kit/service-desk/pkg/util"
)

const maxUploadBytes = 20 << 20

// FilesHandler stores and serves request attachments. Uploads land in a
// per-upload namespace; the returned key is what create payloads carry
// in their file-key fields.
type FilesHandler struct {
	store storage.FileStore
}

// NewFilesHandler constructs handler.
func NewFilesHandler(store storage.FileStore) *FilesHandler {
	return &FilesHandler{store: store}
}

// Upload POST /files.
func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	if _, err := auth.UserFromContext(c); err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return util.NewValidationError("multipart field 'file' required", nil)
	}
	if header.Size > maxUploadBytes {
		return util.NewValidationError("file exceeds upload limit", nil)
	}
	file, err := header.Open()
	if err != nil {
		return util.NewValidationError("unreadable upload", nil)
	}
	defer file.Close()

	key := storage.Key("uploads/"+uuid.NewString(), path.Base(header.Filename))
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.store.Store(c.Context(), key, file, header.Size, contentType); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"key": key}})
}

// Download GET /files/*.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	if _, err := auth.UserFromContext(c); err != nil {
		return err
	}
	key := c.Params("*")
	if key == "" {
		return util.NewValidationError("file key required", nil)
	}
	object, err := h.store.Retrieve(c.Context(), key)
	if err != nil {
		return util.NewNotFound("file", map[string]any{"key": key})
	}
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+path.Base(key)+`"`)
	return c.SendStream(object)
}
