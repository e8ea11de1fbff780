package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/ratelimit"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/types"
	"github.com/openbrgy/portal/internal/utils"
	"gorm.io/gorm"
)

// AuthHandler handles registration, login and guest access.
type AuthHandler struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Limiter *ratelimit.FixedWindowLimiter
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /api/auth/register
// @Summary Register a resident account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "Registration payload"
// @Success 201 {object} authResponse
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	user, token, err := services.Register(h.DB, h.Cfg, in)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, authResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login
// @Summary Log in with username and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body object true "Credentials"
// @Success 200 {object} authResponse
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 429 {object} utils.ErrorResponseStruct
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}

	// Keyed per username and source address: a flood against one account
	// does not lock out every account behind the same address.
	key := c.IP() + "|" + strings.TrimSpace(in.Username)
	if h.Limiter != nil && !h.Limiter.Allow(key) {
		return utils.ErrorResponse(c, "too many login attempts, try again later",
			fiber.StatusTooManyRequests, "rate_limit")
	}
	user, token, err := services.Login(h.DB, h.Cfg, in.Username, in.Password)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, authResponse{Token: token, User: user}, fiber.StatusOK)
}

// Guest handles POST /api/auth/guest
// @Summary Create a time-bounded guest identity
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body object true "Guest details"
// @Success 201 {object} authResponse
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /auth/guest [post]
func (h *AuthHandler) Guest(c *fiber.Ctx) error {
	var in struct {
		Name    string `json:"name"`
		Contact string `json:"contact"`
		Intent  string `json:"intent"`
	}
	if err := c.BodyParser(&in); err != nil {
		return types.ValidationError("invalid request body")
	}
	user, token, err := services.CreateGuest(h.DB, h.Cfg, in.Name, in.Contact, in.Intent)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, authResponse{Token: token, User: user})
}

// Me handles GET /api/auth/me
// @Summary Return the authenticated account
// @Tags Auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, middleware.CurrentUser(c), fiber.StatusOK)
}
