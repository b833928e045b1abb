package server

import (
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openpolls/api.openpolls.dev/auth"
	"github.com/openpolls/api.openpolls.dev/model"
	"github.com/openpolls/api.openpolls.dev/store"
)

type meInput struct {
	Token string `json:"token"`
}

// getMe resolves the caller from the soft gate, falling back to a token in
// the request body.
func (h *handler) getMe(c *fiber.Ctx) error {
	user := caller(c)
	if user == nil {
		input := &meInput{}
		if err := c.BodyParser(input); err == nil && input.Token != "" {
			data, err := auth.DecodeToken(input.Token, h.opts.AccessTokenKey)
			if err == nil {
				if id, err := primitive.ObjectIDFromHex(data.UserID); err == nil {
					user, err = h.opts.Store.FindUserByID(c.Context(), id)
					if err != nil {
						return err
					}
				}
			}
		}
	}
	if user == nil {
		return sendNotFound(c, "User not found")
	}
	return c.Status(fiber.StatusOK).JSON(projectUser(user, true))
}

func (h *handler) listUsers(c *fiber.Ctx) error {
	users, err := h.opts.Store.FindUsers(c.Context())
	if err != nil {
		return err
	}

	full := h.opts.Perms.Has(caller(c), auth.PermUserListAll)
	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, projectUser(&users[i], full))
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

func (h *handler) getUser(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return sendNotFound(c, "User not found")
	}
	user, err := h.opts.Store.FindUserByID(c.Context(), id)
	if err != nil {
		return err
	}
	if user == nil {
		return sendNotFound(c, "User not found")
	}

	u := caller(c)
	full := h.opts.Perms.Can(u, auth.PermUserViewAll, u != nil && u.ID == user.ID)
	return c.Status(fiber.StatusOK).JSON(projectUser(user, full))
}

type userFieldsInput struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (h *handler) mutateUser(c *fiber.Ctx, base auth.Permission, all auth.Permission, overwrite bool) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return sendNotFound(c, "User not found")
	}
	user, err := h.opts.Store.FindUserByID(c.Context(), id)
	if err != nil {
		return err
	}
	if user == nil {
		return sendNotFound(c, "User not found")
	}

	u := caller(c)
	self := u != nil && u.ID == user.ID
	if !h.opts.Perms.Can(u, base, self) {
		return sendAccessDenied(c, "Insufficient permissions")
	}

	input := &userFieldsInput{}
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Invalid request body")))
	}

	// Email and role are privileged fields; name and password only need the
	// base grant or self-ownership. Ungranted fields are silently skipped.
	if h.opts.Perms.Has(u, all) {
		if input.Email != nil {
			user.Email = *input.Email
		} else if overwrite {
			user.Email = ""
		}
		if input.Role != nil {
			user.Role = *input.Role
		}
	}
	if input.Name != nil {
		user.Name = *input.Name
	} else if overwrite {
		user.Name = ""
	}

	plaintext := ""
	changePassword := input.Password != nil || overwrite
	if input.Password != nil {
		plaintext = *input.Password
	}

	if err := model.ValidateUser(user, plaintext, changePassword); err != nil {
		return sendValidation(c, err)
	}

	if changePassword {
		hashed, err := auth.Hash(plaintext, h.opts.BcryptCost)
		if err != nil {
			return err
		}
		user.Password = hashed
	} else {
		user.Password = ""
	}

	if err := h.opts.Store.SaveUser(c.Context(), user); err != nil {
		if err == store.ErrDuplicateEmail {
			return c.Status(fiber.StatusBadRequest).JSON(formatErrors(APIError{
				Error:       "validation_failed",
				Description: "Email is already used",
			}))
		}
		return err
	}

	return c.Status(fiber.StatusOK).JSON(mutationResult{
		ID: user.ID.Hex(),
		Links: []link{
			resourceLink(c, "gets the user", "/users/"+user.ID.Hex()),
		},
	})
}

func (h *handler) modifyUser(c *fiber.Ctx) error {
	return h.mutateUser(c, auth.PermUserModify, auth.PermUserModifyAll, true)
}

func (h *handler) updateUser(c *fiber.Ctx) error {
	return h.mutateUser(c, auth.PermUserUpdate, auth.PermUserUpdateAll, false)
}

func (h *handler) deleteUser(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return sendNotFound(c, "User not found")
	}
	user, err := h.opts.Store.FindUserByID(c.Context(), id)
	if err != nil {
		return err
	}
	if user == nil {
		return sendNotFound(c, "User not found")
	}

	u := caller(c)
	if !h.opts.Perms.Can(u, auth.PermUserDelete, u != nil && u.ID == user.ID) {
		return sendAccessDenied(c, "Insufficient permissions")
	}

	if _, err := h.opts.Store.DeleteUser(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
