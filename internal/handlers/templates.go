package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/utils"
	"gorm.io/gorm"
)

// TemplateHandler handles DOCX template management (staff/admin).
type TemplateHandler struct {
	DB    *gorm.DB
	Blobs storage.BlobStore
}

// Create handles POST /api/templates
// @Summary Upload a DOCX template
// @Description Uploads a template, extracts its placeholder fields and stores the binary.
// @Tags Templates
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "DOCX file"
// @Param name formData string true "Template name"
// @Param description formData string false "Description"
// @Success 201 {object} models.DocumentTemplate
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /templates [post]
func (h *TemplateHandler) Create(c *fiber.Ctx) error {
	data, header, err := readFormFile(c, "file")
	if err != nil {
		return err
	}
	tpl, err := services.CreateTemplate(c.Context(), h.DB, h.Blobs,
		c.FormValue("name"), c.FormValue("description"), header.Filename,
		data, middleware.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, tpl)
}

// List handles GET /api/templates
// @Summary List active templates
// @Tags Templates
// @Produce json
// @Success 200 {array} models.DocumentTemplate
// @Router /templates [get]
func (h *TemplateHandler) List(c *fiber.Ctx) error {
	templates, err := services.ListTemplates(h.DB)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, templates, fiber.StatusOK)
}

// Get handles GET /api/templates/:id
// @Summary Get one template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} models.DocumentTemplate
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *fiber.Ctx) error {
	tpl, err := services.GetTemplate(h.DB, c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, tpl, fiber.StatusOK)
}

// Fields handles GET /api/templates/:id/fields
// @Summary Get a template's placeholder fields
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {array} string
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /templates/{id}/fields [get]
func (h *TemplateHandler) Fields(c *fiber.Ctx) error {
	fields, err := services.TemplateFields(h.DB, c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"fields": fields}, fiber.StatusOK)
}

// Delete handles DELETE /api/templates/:id
// @Summary Delete a template
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Delete(c *fiber.Ctx) error {
	if err := services.DeleteTemplate(c.Context(), h.DB, h.Blobs, c.Params("id")); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}
