package server

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openpolls/api.openpolls.dev/auth"
	"github.com/openpolls/api.openpolls.dev/model"
)

const (
	localsTokenData = "tokenData"
	localsUser      = "user"
)

// authenticate is the soft authentication gate. It resolves the caller from
// the x-access-token header when it can and never rejects: any failure just
// leaves the request anonymous.
func (h *handler) authenticate(c *fiber.Ctx) error {
	token := c.Get("x-access-token")
	if token != "" {
		if err := h.resolveToken(c, token); err != nil {
			log.Errorf("auth, err=%v", err)
		}
	}
	return c.Next()
}

func (h *handler) resolveToken(c *fiber.Ctx, token string) error {
	data, err := auth.DecodeToken(token, h.opts.AccessTokenKey)
	if err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(data.UserID)
	if err != nil {
		return err
	}
	user, err := h.opts.Store.FindUserByID(c.Context(), id)
	if err != nil {
		return err
	}
	if user != nil {
		c.Locals(localsTokenData, data)
		c.Locals(localsUser, user)
	}
	return nil
}

// requireAuth is the strict gate for endpoints that reject anonymous callers.
func (h *handler) requireAuth(c *fiber.Ctx) error {
	if c.Locals(localsTokenData) == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(formatErrors(accessDenied("Not authenticated")))
	}
	return c.Next()
}

// caller returns the authenticated user attached by the gate, or nil.
func caller(c *fiber.Ctx) *model.User {
	if u, ok := c.Locals(localsUser).(*model.User); ok {
		return u
	}
	return nil
}
