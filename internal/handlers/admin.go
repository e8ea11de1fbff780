package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"github.com/openbrgy/portal/internal/utils"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only management routes.
type AdminHandler struct {
	DB       *gorm.DB
	Notifier *services.Notifier
	Stats    *services.StatsCache
	Blobs    storage.BlobStore
}

// ListUsers handles GET /api/admin/users
// @Summary List accounts
// @Tags Admin
// @Produce json
// @Param role query string false "Role filter"
// @Param active query bool false "Active filter"
// @Success 200 {array} models.User
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit, offset := paging(c)
	filter := services.UserFilter{Role: c.Query("role"), Limit: limit, Offset: offset}
	if c.Query("active") != "" {
		active := queryBool(c, "active")
		filter.Active = &active
	}
	users, err := services.ListUsers(h.DB, filter)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, users, fiber.StatusOK)
}

// UpdateUser handles PATCH /api/admin/users/:id
// @Summary Change an account's role or activation
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body services.AdminUserUpdate true "Role and active flags"
// @Success 200 {object} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /admin/users/{id} [patch]
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	var in services.AdminUserUpdate
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	user, err := services.UpdateUser(h.DB, h.Notifier, c.Params("id"), in)
	if err != nil {
		return err
	}
	if h.Stats != nil {
		h.Stats.Invalidate()
	}
	return utils.SuccessResponse(c, user, fiber.StatusOK)
}

// Statistics handles GET /api/admin/statistics
// @Summary Dashboard statistics
// @Tags Admin
// @Produce json
// @Success 200 {object} services.Statistics
// @Router /admin/statistics [get]
func (h *AdminHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.Stats.Get(h.DB)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, stats, fiber.StatusOK)
}

// CreateOfficial handles POST /api/admin/officials
// @Summary Add a roster entry
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body services.OfficialInput true "Official"
// @Success 201 {object} models.Official
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /admin/officials [post]
func (h *AdminHandler) CreateOfficial(c *fiber.Ctx) error {
	var in services.OfficialInput
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	official, err := services.CreateOfficial(h.DB, in)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, official)
}

// ListOfficials handles GET /api/admin/officials
// @Summary List the full roster including inactive entries
// @Tags Admin
// @Produce json
// @Success 200 {array} models.Official
// @Router /admin/officials [get]
func (h *AdminHandler) ListOfficials(c *fiber.Ctx) error {
	officials, err := services.ListOfficials(h.DB, true)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, officials, fiber.StatusOK)
}

// UpdateOfficial handles PUT /api/admin/officials/:id
// @Summary Edit a roster entry
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Official ID"
// @Param body body services.OfficialInput true "Official"
// @Success 200 {object} models.Official
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /admin/officials/{id} [put]
func (h *AdminHandler) UpdateOfficial(c *fiber.Ctx) error {
	var in services.OfficialInput
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	official, err := services.UpdateOfficial(h.DB, c.Params("id"), in)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, official, fiber.StatusOK)
}

// DeleteOfficial handles DELETE /api/admin/officials/:id
// @Summary Remove a roster entry
// @Tags Admin
// @Produce json
// @Param id path string true "Official ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /admin/officials/{id} [delete]
func (h *AdminHandler) DeleteOfficial(c *fiber.Ctx) error {
	if err := services.DeleteOfficial(h.DB, c.Params("id")); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}

// UploadOfficialPhoto handles PUT /api/admin/officials/:id/photo
// @Summary Upload a roster photo
// @Tags Admin
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Official ID"
// @Param file formData file true "Image file"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /admin/officials/{id}/photo [put]
func (h *AdminHandler) UploadOfficialPhoto(c *fiber.Ctx) error {
	data, header, err := readFormFile(c, "file")
	if err != nil {
		return err
	}
	if err := services.SetOfficialPhoto(c.Context(), h.DB, h.Blobs, c.Params("id"),
		data, header.Header.Get("Content-Type")); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}

// GetSettings handles GET /api/admin/settings
// @Summary Read all system settings
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /admin/settings [get]
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := services.GetSettings(h.DB, false)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, settings, fiber.StatusOK)
}

// PutSetting handles PUT /api/admin/settings/:key
// @Summary Upsert one system setting
// @Tags Admin
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param body body object true "Value and public flag"
// @Success 200 {object} models.SystemSetting
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /admin/settings/{key} [put]
func (h *AdminHandler) PutSetting(c *fiber.Ctx) error {
	var in struct {
		Value  json.RawMessage `json:"value"`
		Public bool            `json:"public"`
	}
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	setting, err := services.PutSetting(h.DB, c.Params("key"), in.Value, in.Public, middleware.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, setting, fiber.StatusOK)
}
