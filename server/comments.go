package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openpolls/api.openpolls.dev/auth"
	"github.com/openpolls/api.openpolls.dev/model"
)

func (h *handler) findPoll(c *fiber.Ctx, param string) (*model.Poll, error) {
	id, err := parseObjectID(c.Params(param))
	if err != nil {
		return nil, sendNotFound(c, "Poll not found")
	}
	poll, err := h.opts.Store.FindPollByID(c.Context(), id)
	if err != nil {
		return nil, err
	}
	if poll == nil {
		return nil, sendNotFound(c, "Poll not found")
	}
	return poll, nil
}

// lockedPoll is findPoll under the poll's write lock. Comment writes share
// the poll document with votes, so the whole read-modify-save sequence has
// to be serialized. The returned unlock is never nil; defer it immediately.
func (h *handler) lockedPoll(c *fiber.Ctx, param string) (*model.Poll, func(), error) {
	id, err := parseObjectID(c.Params(param))
	if err != nil {
		return nil, func() {}, sendNotFound(c, "Poll not found")
	}
	unlock := h.locks.Lock(id.Hex())
	poll, err := h.opts.Store.FindPollByID(c.Context(), id)
	if err != nil {
		return nil, unlock, err
	}
	if poll == nil {
		return nil, unlock, sendNotFound(c, "Poll not found")
	}
	return poll, unlock, nil
}

type addCommentInput struct {
	Content string `json:"content"`
}

func (h *handler) addComment(c *fiber.Ctx) error {
	poll, unlock, err := h.lockedPoll(c, "id")
	defer unlock()
	if poll == nil {
		return err
	}

	input := &addCommentInput{}
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Invalid request body")))
	}

	// The author is always the authenticated caller, never request input.
	comment := model.Comment{
		ID:        primitive.NewObjectID(),
		Author:    caller(c).ID,
		Content:   input.Content,
		CreatedAt: time.Now(),
	}
	comment.UpdatedAt = comment.CreatedAt

	if err := model.ValidateComment(&comment); err != nil {
		return sendValidation(c, err)
	}

	poll.Comments = append(poll.Comments, comment)
	if err := h.opts.Store.SavePoll(c.Context(), poll); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(mutationResult{
		ID: comment.ID.Hex(),
		Links: []link{
			resourceLink(c, "gets the created comment", "/polls/"+poll.ID.Hex()+"/comments/"+comment.ID.Hex()),
		},
	})
}

func (h *handler) listComments(c *fiber.Ctx) error {
	poll, err := h.findPoll(c, "id")
	if poll == nil {
		return err
	}

	views := make([]commentView, 0, len(poll.Comments))
	for _, comment := range poll.Comments {
		views = append(views, projectComment(comment))
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

func (h *handler) findComment(c *fiber.Ctx, poll *model.Poll) (*model.Comment, error) {
	id, err := parseObjectID(c.Params("commentId"))
	if err != nil {
		return nil, sendNotFound(c, "Comment not found")
	}
	comment := poll.Comment(id)
	if comment == nil {
		return nil, sendNotFound(c, "Comment not found")
	}
	return comment, nil
}

func (h *handler) getComment(c *fiber.Ctx) error {
	poll, err := h.findPoll(c, "pollId")
	if poll == nil {
		return err
	}
	comment, err := h.findComment(c, poll)
	if comment == nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(projectComment(*comment))
}

type commentFieldsInput struct {
	Content *string `json:"content"`
}

func (h *handler) mutateComment(c *fiber.Ctx, overwrite bool) error {
	poll, unlock, err := h.lockedPoll(c, "pollId")
	defer unlock()
	if poll == nil {
		return err
	}
	comment, err := h.findComment(c, poll)
	if comment == nil {
		return err
	}

	u := caller(c)
	owner := u != nil && comment.Author == u.ID
	if !h.opts.Perms.Can(u, auth.PermCommentModify, owner) {
		return sendAccessDenied(c, "Insufficient permissions")
	}

	input := &commentFieldsInput{}
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Invalid request body")))
	}

	if input.Content != nil {
		comment.Content = *input.Content
	} else if overwrite {
		comment.Content = ""
	}
	comment.UpdatedAt = time.Now()

	if err := model.ValidateComment(comment); err != nil {
		return sendValidation(c, err)
	}
	if err := h.opts.Store.SavePoll(c.Context(), poll); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(mutationResult{
		ID: comment.ID.Hex(),
		Links: []link{
			resourceLink(c, "gets the comment", "/polls/"+poll.ID.Hex()+"/comments/"+comment.ID.Hex()),
		},
	})
}

func (h *handler) modifyComment(c *fiber.Ctx) error {
	return h.mutateComment(c, true)
}

func (h *handler) updateComment(c *fiber.Ctx) error {
	return h.mutateComment(c, false)
}

func (h *handler) deleteComment(c *fiber.Ctx) error {
	poll, unlock, err := h.lockedPoll(c, "pollId")
	defer unlock()
	if poll == nil {
		return err
	}
	comment, err := h.findComment(c, poll)
	if comment == nil {
		return err
	}

	u := caller(c)
	owner := u != nil && comment.Author == u.ID
	if !h.opts.Perms.Can(u, auth.PermCommentDelete, owner) {
		return sendAccessDenied(c, "Insufficient permissions")
	}

	kept := poll.Comments[:0]
	for _, cm := range poll.Comments {
		if cm.ID != comment.ID {
			kept = append(kept, cm)
		}
	}
	poll.Comments = kept

	if err := h.opts.Store.SavePoll(c.Context(), poll); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
