package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/types"
	"github.com/openbrgy/portal/internal/utils"
)

// NotificationHandler handles per-user notification routes.
type NotificationHandler struct {
	Notifier *services.Notifier
}

// List handles GET /api/notifications
// @Summary List the caller's notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	limit, offset := paging(c)
	items, err := h.Notifier.List(middleware.CurrentUser(c).ID, queryBool(c, "unread"), limit, offset)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, items, fiber.StatusOK)
}

// UnreadCount handles GET /api/notifications/unread-count
// @Summary Count the caller's unread notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.Notifier.UnreadCount(middleware.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, fiber.Map{"unread": count}, fiber.StatusOK)
}

// MarkRead handles PATCH /api/notifications/:id/read
// @Summary Mark one notification read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.Notifier.MarkRead(middleware.CurrentUser(c).ID, c.Params("id")); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}

// MarkManyRead handles PATCH /api/notifications/read
// @Summary Mark a batch of notifications read
// @Description Accepts a single id or a list of ids.
// @Tags Notifications
// @Accept json
// @Produce json
// @Param body body object true "Notification ids"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /notifications/read [patch]
func (h *NotificationHandler) MarkManyRead(c *fiber.Ctx) error {
	var body struct {
		IDs types.FlexList[string] `json:"ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return types.ValidationError("invalid request body")
	}
	affected, err := h.Notifier.MarkManyRead(middleware.CurrentUser(c).ID, body.IDs.Slice())
	if err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, affected)
}
