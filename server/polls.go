package server

import (
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openpolls/api.openpolls.dev/auth"
	"github.com/openpolls/api.openpolls.dev/model"
	"github.com/openpolls/api.openpolls.dev/voting"
)

type pollOptionsInput struct {
	Multiple   *bool `json:"multiple"`
	IPChecking *bool `json:"ipChecking"`
}

type addPollInput struct {
	Title   string           `json:"title"`
	Options pollOptionsInput `json:"options"`
	Choices []string         `json:"choices"`
}

func (h *handler) addPoll(c *fiber.Ctx) error {
	input := &addPollInput{}
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Invalid request body")))
	}

	poll := &model.Poll{
		Title:    input.Title,
		Choices:  make([]model.Choice, 0, len(input.Choices)),
		Comments: []model.Comment{},
	}
	if input.Options.Multiple != nil {
		poll.Options.Multiple = *input.Options.Multiple
	}
	if input.Options.IPChecking != nil {
		poll.Options.IPChecking = *input.Options.IPChecking
	}
	for _, label := range input.Choices {
		poll.Choices = append(poll.Choices, model.Choice{
			ID:     primitive.NewObjectID(),
			Label:  label,
			Voters: []model.Voter{},
		})
	}

	// Anonymous polls are allowed, the author is whoever the gate resolved.
	if u := caller(c); u != nil {
		id := u.ID
		poll.Author = &id
	}

	if err := model.ValidatePoll(poll); err != nil {
		return sendValidation(c, err)
	}

	if err := h.opts.Store.CreatePoll(c.Context(), poll); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(mutationResult{
		ID: poll.ID.Hex(),
		Links: []link{
			resourceLink(c, "gets the created poll", "/polls/"+poll.ID.Hex()),
		},
	})
}

func (h *handler) listPolls(c *fiber.Ctx) error {
	polls, err := h.opts.Store.FindPolls(c.Context())
	if err != nil {
		return err
	}

	full := h.opts.Perms.Has(caller(c), auth.PermPollListAll)
	views := make([]pollView, 0, len(polls))
	for i := range polls {
		v, err := h.projectPoll(c, &polls[i], full)
		if err != nil {
			return err
		}
		views = append(views, v)
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

func (h *handler) getPoll(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return sendNotFound(c, "Poll not found")
	}
	poll, err := h.opts.Store.FindPollByID(c.Context(), id)
	if err != nil {
		return err
	}
	if poll == nil {
		return sendNotFound(c, "Poll not found")
	}

	view, err := h.projectPoll(c, poll, h.opts.Perms.Has(caller(c), auth.PermPollViewAll))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(view)
}

type pollFieldsInput struct {
	Title   *string           `json:"title"`
	Author  *string           `json:"author"`
	Options *pollOptionsInput `json:"options"`
	Choices []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"choices"`
}

// applyPollFields applies the permitted fields of the input to the poll.
// Privileged fields (title, author, choice labels) require the all-fields
// permission; options only need the base grant or ownership. overwrite
// distinguishes PUT from PATCH: PUT writes every permitted field, PATCH only
// the ones present. Ungranted fields are silently skipped.
func (h *handler) applyPollFields(poll *model.Poll, input *pollFieldsInput, privileged bool, overwrite bool) {
	if privileged {
		if input.Title != nil {
			poll.Title = *input.Title
		} else if overwrite {
			poll.Title = ""
		}
		if input.Author != nil {
			if id, err := primitive.ObjectIDFromHex(*input.Author); err == nil {
				poll.Author = &id
			} else {
				poll.Author = nil
			}
		} else if overwrite {
			poll.Author = nil
		}
		// Only labels of existing choices are addressable; the choice set's
		// cardinality is fixed at creation.
		for _, in := range input.Choices {
			id, err := primitive.ObjectIDFromHex(in.ID)
			if err != nil {
				continue
			}
			if choice := poll.Choice(id); choice != nil {
				choice.Label = in.Label
			}
		}
	}

	if input.Options != nil {
		if input.Options.Multiple != nil {
			poll.Options.Multiple = *input.Options.Multiple
		} else if overwrite {
			poll.Options.Multiple = false
		}
		if input.Options.IPChecking != nil {
			poll.Options.IPChecking = *input.Options.IPChecking
		} else if overwrite {
			poll.Options.IPChecking = false
		}
	} else if overwrite {
		poll.Options = model.PollOptions{}
	}
}

func (h *handler) mutatePoll(c *fiber.Ctx, base auth.Permission, all auth.Permission, overwrite bool) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return sendNotFound(c, "Poll not found")
	}

	// Every poll write holds the poll's lock for its read-modify-save
	// sequence, so a concurrent vote cannot be clobbered by a field update.
	unlock := h.locks.Lock(id.Hex())
	defer unlock()

	poll, err := h.opts.Store.FindPollByID(c.Context(), id)
	if err != nil {
		return err
	}
	if poll == nil {
		return sendNotFound(c, "Poll not found")
	}

	u := caller(c)
	if !h.opts.Perms.Can(u, base, poll.IsAuthor(u)) {
		return sendAccessDenied(c, "Insufficient permissions")
	}

	input := &pollFieldsInput{}
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Invalid request body")))
	}

	h.applyPollFields(poll, input, h.opts.Perms.Has(u, all), overwrite)

	if err := model.ValidatePoll(poll); err != nil {
		return sendValidation(c, err)
	}
	if err := h.opts.Store.SavePoll(c.Context(), poll); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(mutationResult{
		ID: poll.ID.Hex(),
		Links: []link{
			resourceLink(c, "gets the poll", "/polls/"+poll.ID.Hex()),
		},
	})
}

func (h *handler) modifyPoll(c *fiber.Ctx) error {
	return h.mutatePoll(c, auth.PermPollModify, auth.PermPollModifyAll, true)
}

func (h *handler) updatePoll(c *fiber.Ctx) error {
	return h.mutatePoll(c, auth.PermPollUpdate, auth.PermPollUpdateAll, false)
}

func (h *handler) deletePoll(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return sendNotFound(c, "Poll not found")
	}

	unlock := h.locks.Lock(id.Hex())
	defer unlock()

	poll, err := h.opts.Store.FindPollByID(c.Context(), id)
	if err != nil {
		return err
	}
	if poll == nil {
		return sendNotFound(c, "Poll not found")
	}

	u := caller(c)
	if !h.opts.Perms.Can(u, auth.PermPollDelete, poll.IsAuthor(u)) {
		return sendAccessDenied(c, "Insufficient permissions")
	}

	if _, err := h.opts.Store.DeletePoll(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type voteInput struct {
	Choices []string `json:"choices"`
}

func (h *handler) vote(c *fiber.Ctx) error {
	id, err := parseObjectID(c.Params("id"))
	if err != nil {
		return sendNotFound(c, "Poll not found")
	}

	input := &voteInput{}
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Choices are required")))
	}

	var voterID *primitive.ObjectID
	if u := caller(c); u != nil {
		uid := u.ID
		voterID = &uid
	}

	// The whole read-validate-append-save sequence runs under the poll's
	// lock, two concurrent submissions cannot both pass the checks.
	unlock := h.locks.Lock(id.Hex())
	defer unlock()

	poll, err := h.opts.Store.FindPollByID(c.Context(), id)
	if err != nil {
		return err
	}
	if poll == nil {
		return sendNotFound(c, "Poll not found")
	}

	switch err := voting.Apply(poll, input.Choices, c.IP(), voterID); err {
	case nil:
	case voting.ErrNoSelection:
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(invalidRequest("Choices are required")))
	case voting.ErrUnknownChoice:
		return sendNotFound(c, "Choice not found")
	case voting.ErrMultipleNotAllowed:
		return sendAccessDenied(c, "Poll does not allow multiple choices")
	case voting.ErrAlreadyVoted:
		return sendAccessDenied(c, "Already voted")
	default:
		return err
	}

	if err := h.opts.Store.SavePoll(c.Context(), poll); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(mutationResult{
		ID: poll.ID.Hex(),
		Links: []link{
			resourceLink(c, "gets the poll", "/polls/"+poll.ID.Hex()),
		},
	})
}
