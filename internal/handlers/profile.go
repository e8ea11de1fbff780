package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"github.com/openbrgy/portal/internal/utils"
	"gorm.io/gorm"
)

// ProfileHandler handles self-service account routes.
type ProfileHandler struct {
	DB    *gorm.DB
	Blobs storage.BlobStore
}

// Get handles GET /api/profile
// @Summary Return the caller's profile
// @Tags Profile
// @Produce json
// @Success 200 {object} models.User
// @Router /profile [get]
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, middleware.CurrentUser(c), fiber.StatusOK)
}

// Update handles PUT /api/profile
// @Summary Update the caller's profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param body body services.ProfileInput true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /profile [put]
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var in services.ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	user, err := services.UpdateProfile(h.DB, middleware.CurrentUser(c).ID, in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, user, fiber.StatusOK)
}

// UploadAvatar handles PUT /api/profile/avatar
// @Summary Upload the caller's avatar image
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image file"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /profile/avatar [put]
func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	data, header, err := readFormFile(c, "file")
	if err != nil {
		return err
	}
	user := middleware.CurrentUser(c)
	contentType := header.Header.Get("Content-Type")
	if err := services.SetAvatar(c.Context(), h.DB, h.Blobs, user, data, contentType); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}
