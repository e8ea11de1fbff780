package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/mailer"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"github.com/openbrgy/portal/internal/utils"
	"gorm.io/gorm"
)

// RequestHandler handles the document request lifecycle.
type RequestHandler struct {
	DB        *gorm.DB
	Notifier  *services.Notifier
	Mailer    *mailer.Mailer
	Generator *services.Generator
	Stats     *services.StatsCache
}

// isStaff reports whether the caller may act on other users' requests.
func isStaff(user *models.User) bool {
	return user.Role == models.RoleStaff || user.Role == models.RoleAdmin
}

// Create handles POST /api/requests
// @Summary Submit a document request
// @Tags Requests
// @Accept json
// @Produce json
// @Param body body services.CreateRequestInput true "Request payload"
// @Success 201 {object} models.DocumentRequest
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /requests [post]
func (h *RequestHandler) Create(c *fiber.Ctx) error {
	var in services.CreateRequestInput
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	req, err := services.CreateRequest(h.DB, h.Notifier, middleware.CurrentUser(c), in)
	if err != nil {
		return err
	}
	if h.Stats != nil {
		h.Stats.Invalidate()
	}
	return utils.CreatedResponse(c, req)
}

// List handles GET /api/requests
// @Summary List document requests
// @Description Residents and guests see their own requests; staff and admin see all, with status/type filters.
// @Tags Requests
// @Produce json
// @Param status query string false "Status filter"
// @Param type query string false "Type filter"
// @Success 200 {array} models.DocumentRequest
// @Router /requests [get]
func (h *RequestHandler) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	limit, offset := paging(c)
	filter := services.RequestFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Limit:  limit,
		Offset: offset,
	}
	if !isStaff(user) {
		filter.RequesterID = user.ID
	}
	requests, err := services.ListRequests(h.DB, filter)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, requests, fiber.StatusOK)
}

// Get handles GET /api/requests/:id
// @Summary Get one document request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.DocumentRequest
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *fiber.Ctx) error {
	req, err := h.loadVisible(c)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, req, fiber.StatusOK)
}

// PatchStatus handles PATCH /api/requests/:id/status
// @Summary Transition a request's status
// @Description Staff/admin action. Approval assigns the sequential document number and validity window.
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param body body object true "Target status and optional remarks"
// @Success 200 {object} models.DocumentRequest
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /requests/{id}/status [patch]
func (h *RequestHandler) PatchStatus(c *fiber.Ctx) error {
	var in struct {
		Status  string `json:"status"`
		Remarks string `json:"remarks"`
	}
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	req, err := services.TransitionStatus(h.DB, h.Notifier, h.Mailer, c.Params("id"), in.Status, in.Remarks)
	if err != nil {
		return err
	}
	if h.Stats != nil {
		h.Stats.Invalidate()
	}
	return utils.SuccessResponse(c, req, fiber.StatusOK)
}

// Generate handles POST /api/requests/:id/generate
// @Summary Generate the document for a request
// @Description Fills the linked template, assigns the transaction code once and stores the binary.
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param body body object false "Field value overrides"
// @Success 200 {object} models.GeneratedDocument
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /requests/{id}/generate [post]
func (h *RequestHandler) Generate(c *fiber.Ctx) error {
	id := c.Params("id")
	req, err := services.GetRequest(h.DB, id)
	if err != nil {
		return err
	}

	var in struct {
		TemplateID  string            `json:"templateId"`
		FieldValues map[string]string `json:"fieldValues"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return types.ValidationError("invalid request body")
		}
	}
	templateID := in.TemplateID
	if templateID == "" {
		if req.TemplateID == nil {
			return types.ValidationError("request has no template; supply templateId")
		}
		templateID = *req.TemplateID
	}

	values := make(map[string]string)
	for k, v := range req.FieldValues {
		if s, ok := v.(string); ok {
			values[k] = s
		}
	}
	for k, v := range in.FieldValues {
		values[k] = v
	}

	result, err := h.Generator.Generate(c.Context(), templateID, values, &id, middleware.CurrentUser(c).ID)
	if err != nil {
		if errors.Is(err, services.ErrCodeAssignmentExhausted) {
			return types.ConflictError("could not assign a unique transaction code, retry")
		}
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{
		"document":        result.Document,
		"transactionCode": result.TransactionCode,
	}, fiber.StatusOK)
}

// Download handles GET /api/requests/:id/document
// @Summary Download the generated document
// @Tags Requests
// @Produce application/vnd.openxmlformats-officedocument.wordprocessingml.document
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /requests/{id}/document [get]
func (h *RequestHandler) Download(c *fiber.Ctx) error {
	req, err := h.loadVisible(c)
	if err != nil {
		return err
	}
	if req.GeneratedDocumentID == nil {
		return types.NotFoundError("no document generated for this request")
	}
	var doc models.GeneratedDocument
	if err := h.DB.First(&doc, "id = ?", *req.GeneratedDocumentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFoundError("generated document not found")
		}
		return err
	}

	rc, info, err := h.Generator.Blobs.Get(c.Context(), doc.BlobKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.DependencyError("document binary missing from blob store")
		}
		return types.DependencyError("load document: " + err.Error())
	}

	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+doc.Filename+`"`)
	return c.SendStream(rc, int(info.Size))
}

// loadVisible fetches the request and enforces ownership for non-staff callers.
func (h *RequestHandler) loadVisible(c *fiber.Ctx) (*models.DocumentRequest, error) {
	req, err := services.GetRequest(h.DB, c.Params("id"))
	if err != nil {
		return nil, err
	}
	user := middleware.CurrentUser(c)
	if !isStaff(user) && req.RequesterID != user.ID {
		return nil, types.ForbiddenError("not your request")
	}
	return req, nil
}
