package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
)

// FileHandler serves stored images: avatars and official photos.
type FileHandler struct {
	DB    *gorm.DB
	Blobs storage.BlobStore
}

// Avatar handles GET /api/files/avatar/:id
// @Summary Serve a user's avatar image
// @Tags Files
// @Param id path string true "User ID"
// @Success 200 {file} binary
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /files/avatar/{id} [get]
func (h *FileHandler) Avatar(c *fiber.Ctx) error {
	var user models.User
	if err := h.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFoundError("user not found")
		}
		return err
	}
	if user.AvatarKey == "" {
		return types.NotFoundError("no avatar set")
	}
	return h.serveBlob(c, user.AvatarKey)
}

// OfficialPhoto handles GET /api/files/official/:id
// @Summary Serve an official's roster photo
// @Tags Files
// @Param id path string true "Official ID"
// @Success 200 {file} binary
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /files/official/{id} [get]
func (h *FileHandler) OfficialPhoto(c *fiber.Ctx) error {
	var official models.Official
	if err := h.DB.First(&official, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFoundError("official not found")
		}
		return err
	}
	if official.PhotoKey == "" {
		return types.NotFoundError("no photo set")
	}
	return h.serveBlob(c, official.PhotoKey)
}

func (h *FileHandler) serveBlob(c *fiber.Ctx, key string) error {
	rc, info, err := h.Blobs.Get(c.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.NotFoundError("file not found")
		}
		return types.DependencyError("load file: " + err.Error())
	}
	if info.ContentType != "" {
		c.Set(fiber.HeaderContentType, info.ContentType)
	}
	return c.SendStream(rc, int(info.Size))
}
