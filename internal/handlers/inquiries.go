package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/types"
	"github.com/openbrgy/portal/internal/utils"
	"gorm.io/gorm"
)

// InquiryHandler handles inquiry threads.
type InquiryHandler struct {
	DB       *gorm.DB
	Notifier *services.Notifier
}

// Create handles POST /api/inquiries
// @Summary Open an inquiry
// @Tags Inquiries
// @Accept json
// @Produce json
// @Param body body object true "Subject, category and first message"
// @Success 201 {object} models.Inquiry
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /inquiries [post]
func (h *InquiryHandler) Create(c *fiber.Ctx) error {
	var in struct {
		Subject  string `json:"subject"`
		Category string `json:"category"`
		Message  string `json:"message"`
	}
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	inquiry, err := services.CreateInquiry(h.DB, h.Notifier, middleware.CurrentUser(c), in.Subject, in.Category, in.Message)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, inquiry)
}

// List handles GET /api/inquiries
// @Summary List inquiries visible to the caller
// @Tags Inquiries
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {array} models.Inquiry
// @Router /inquiries [get]
func (h *InquiryHandler) List(c *fiber.Ctx) error {
	inquiries, err := services.ListInquiries(h.DB, middleware.CurrentUser(c), c.Query("status"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, inquiries, fiber.StatusOK)
}

// Get handles GET /api/inquiries/:id
// @Summary Get an inquiry with its thread
// @Tags Inquiries
// @Produce json
// @Param id path string true "Inquiry ID"
// @Success 200 {object} models.Inquiry
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /inquiries/{id} [get]
func (h *InquiryHandler) Get(c *fiber.Ctx) error {
	inquiry, err := services.GetInquiry(h.DB, middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, inquiry, fiber.StatusOK)
}

// AddMessage handles POST /api/inquiries/:id/messages
// @Summary Append a message to an inquiry
// @Tags Inquiries
// @Accept json
// @Produce json
// @Param id path string true "Inquiry ID"
// @Param body body object true "Message body"
// @Success 201 {object} models.InquiryMessage
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /inquiries/{id}/messages [post]
func (h *InquiryHandler) AddMessage(c *fiber.Ctx) error {
	var in struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	msg, err := services.AddInquiryMessage(h.DB, h.Notifier, middleware.CurrentUser(c), c.Params("id"), in.Message)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, msg)
}

// Update handles PATCH /api/inquiries/:id
// @Summary Assign or transition an inquiry (staff/admin)
// @Tags Inquiries
// @Accept json
// @Produce json
// @Param id path string true "Inquiry ID"
// @Param body body object true "Assignment and status"
// @Success 200 {object} models.Inquiry
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /inquiries/{id} [patch]
func (h *InquiryHandler) Update(c *fiber.Ctx) error {
	var in struct {
		AssignedTo *string `json:"assignedTo"`
		Status     string  `json:"status"`
	}
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	inquiry, err := services.UpdateInquiry(h.DB, h.Notifier, c.Params("id"), in.AssignedTo, in.Status)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, inquiry, fiber.StatusOK)
}
