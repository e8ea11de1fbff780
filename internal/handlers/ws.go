package handlers

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/realtime"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
)

// WSHandler upgrades notification streams onto the realtime registry.
type WSHandler struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Registry *realtime.Registry
}

// Upgrade gates /ws routes to websocket upgrade requests. Browsers cannot set
// an Authorization header on a websocket dial, so the token rides in the
// query string and is validated before the upgrade.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	claims, err := services.ParseToken(h.Cfg, c.Query("token"))
	if err != nil {
		return err
	}
	user, err := services.GetActiveUser(h.DB, claims.Subject)
	if err != nil {
		return err
	}
	if user == nil {
		return types.AuthError("not authenticated")
	}
	c.Locals("recipientID", user.ID)
	return c.Next()
}

// Notifications handles GET /ws/notifications once upgraded. The connection
// stays registered until the client goes away; pushed events are written by
// the registry, the read loop only detects disconnects.
func (h *WSHandler) Notifications() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		recipientID, _ := conn.Locals("recipientID").(string)
		if recipientID == "" {
			_ = conn.Close()
			return
		}
		sessionID := h.Registry.Add(recipientID, conn)
		if sessionID == 0 {
			return
		}
		defer h.Registry.Remove(recipientID, sessionID)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("notification stream %s: %v", recipientID, err)
				}
				return
			}
		}
	})
}
