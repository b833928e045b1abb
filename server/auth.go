package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openpolls/api.openpolls.dev/auth"
	"github.com/openpolls/api.openpolls.dev/model"
	"github.com/openpolls/api.openpolls.dev/store"
)

// defaultRole is assigned at signup; role is never taken from signup input.
const defaultRole = "user"

type signUpInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *handler) signUp(c *fiber.Ctx) error {
	input := &signUpInput{}
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Invalid request body")))
	}

	user := &model.User{
		Email: input.Email,
		Name:  input.Name,
		Role:  defaultRole,
	}
	if err := model.ValidateUser(user, input.Password, true); err != nil {
		return sendValidation(c, err)
	}

	// Hashing happens here at the write boundary, not inside the store.
	hashed, err := auth.Hash(input.Password, h.opts.BcryptCost)
	if err != nil {
		return err
	}
	user.Password = hashed

	if err := h.opts.Store.CreateUser(c.Context(), user); err != nil {
		if err == store.ErrDuplicateEmail {
			return c.Status(fiber.StatusBadRequest).JSON(formatErrors(APIError{
				Error:       "validation_failed",
				Description: "Email is already used",
			}))
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(mutationResult{
		ID: user.ID.Hex(),
		Links: []link{
			resourceLink(c, "login", "/auth/signin"),
		},
	})
}

type signInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) signIn(c *fiber.Ctx) error {
	input := &signInInput{}
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Invalid request body")))
	}

	user, err := h.opts.Store.FindUserByEmail(c.Context(), input.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return sendNotFound(c, "User not found")
	}

	if !auth.Compare(input.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(formatErrors(accessDenied("Invalid password")))
	}

	accessToken, err := auth.EncodeToken(user.ID.Hex(), h.opts.AccessTokenKey, h.opts.AccessTokenTTL)
	if err != nil {
		return err
	}
	refreshToken, err := auth.EncodeToken(user.ID.Hex(), h.opts.RefreshTokenKey, h.opts.RefreshTokenTTL)
	if err != nil {
		return err
	}

	// One refresh token row per sign-in; older ones stay valid until expiry.
	err = h.opts.Store.CreateRefreshToken(c.Context(), &model.RefreshToken{
		Token:      refreshToken,
		Expiration: time.Now().Add(h.opts.RefreshTokenTTL),
		User:       user.ID,
	})
	if err != nil {
		log.Errorf("refresh token, err=%v", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":           user.ID.Hex(),
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

type refreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *handler) refreshAccessToken(c *fiber.Ctx) error {
	input := &refreshInput{}
	if err := c.BodyParser(input); err != nil || input.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Refresh token is required")))
	}

	data, err := auth.DecodeToken(input.RefreshToken, h.opts.RefreshTokenKey)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(formatErrors(accessDenied("Invalid refresh token")))
	}

	stored, err := h.opts.Store.FindRefreshToken(c.Context(), input.RefreshToken)
	if err != nil {
		return err
	}
	if stored == nil || stored.User.Hex() != data.UserID {
		return c.Status(fiber.StatusUnauthorized).JSON(formatErrors(accessDenied("Invalid refresh token")))
	}

	stored.Expiration = time.Now().Add(h.opts.RefreshTokenTTL)
	if err := h.opts.Store.SaveRefreshToken(c.Context(), stored); err != nil {
		return err
	}

	accessToken, err := auth.EncodeToken(data.UserID, h.opts.AccessTokenKey, h.opts.AccessTokenTTL)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":          data.UserID,
		"accessToken": accessToken,
	})
}

func parseObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return id, nil
}
