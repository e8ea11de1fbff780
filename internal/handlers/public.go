package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"github.com/openbrgy/portal/internal/utils"
	"gorm.io/gorm"
)

// PublicHandler handles unauthenticated routes.
type PublicHandler struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Blobs storage.BlobStore
}

// Officials handles GET /api/officials
// @Summary Public roster of barangay officials
// @Tags Public
// @Produce json
// @Success 200 {array} models.Official
// @Router /officials [get]
func (h *PublicHandler) Officials(c *fiber.Ctx) error {
	officials, err := services.ListOfficials(h.DB, false)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, officials, fiber.StatusOK)
}

// PublicSettings handles GET /api/settings/public
// @Summary Public system settings
// @Tags Public
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /settings/public [get]
func (h *PublicHandler) PublicSettings(c *fiber.Ctx) error {
	settings, err := services.GetSettings(h.DB, true)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, settings, fiber.StatusOK)
}

// Verify handles POST /api/verify
// @Summary Verify a document transaction code
// @Description Checks authenticity of an issued document by its QR transaction code. Every lookup is recorded.
// @Tags Public
// @Accept json
// @Produce json
// @Param body body object true "Transaction code and optional requester details"
// @Success 200 {object} services.VerificationResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /verify [post]
func (h *PublicHandler) Verify(c *fiber.Ctx) error {
	var in struct {
		Code          string `json:"code"`
		RequesterName string `json:"requesterName"`
		Contact       string `json:"contact"`
	}
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	result, err := services.VerifyTransactionCode(h.DB, in.Code, in.RequesterName, in.Contact)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, result, fiber.StatusOK)
}

// Health handles GET /healthz
// @Summary Service health
// @Tags Public
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /healthz [get]
func (h *PublicHandler) Health(c *fiber.Ctx) error {
	result := services.HealthCheck(h.Cfg, h.DB, h.Blobs)
	result.Details["api_version"] = middleware.APIVersion(c)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
