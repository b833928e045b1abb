package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openpolls/api.openpolls.dev/model"
)

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type mutationResult struct {
	Links []link `json:"links"`
	ID    string `json:"id"`
}

func resourceLink(c *fiber.Ctx, rel string, path string) link {
	return link{
		Rel:  rel,
		Href: fmt.Sprintf("%s://%s%s", c.Protocol(), c.Hostname(), path),
	}
}

// userView is the projection of a user. Email and role only appear in the
// full projection.
type userView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func projectUser(u *model.User, full bool) userView {
	v := userView{ID: u.ID.Hex(), Name: u.Name}
	if full {
		v.Email = u.Email
		v.Role = u.Role
	}
	return v
}

type voterView struct {
	IP    string `json:"ip,omitempty"`
	Voter string `json:"voter,omitempty"`
}

type choiceView struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Voters []voterView `json:"voters"`
}

type commentView struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type pollView struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Author   *userView         `json:"author,omitempty"`
	Options  model.PollOptions `json:"options"`
	Choices  []choiceView      `json:"choices"`
	Comments []commentView     `json:"comments"`
}

// projectPoll renders a poll. The full projection carries the author's whole
// identity and the voter records' IPs; the restricted one reduces the author
// to id and name and drops voter IPs.
func (h *handler) projectPoll(c *fiber.Ctx, p *model.Poll, full bool) (pollView, error) {
	v := pollView{
		ID:       p.ID.Hex(),
		Title:    p.Title,
		Options:  p.Options,
		Choices:  make([]choiceView, 0, len(p.Choices)),
		Comments: make([]commentView, 0, len(p.Comments)),
	}

	if p.Author != nil {
		author, err := h.opts.Store.FindUserByID(c.Context(), *p.Author)
		if err != nil {
			return pollView{}, err
		}
		if author != nil {
			av := projectUser(author, full)
			v.Author = &av
		}
	}

	for _, choice := range p.Choices {
		cv := choiceView{
			ID:     choice.ID.Hex(),
			Label:  choice.Label,
			Voters: make([]voterView, 0, len(choice.Voters)),
		}
		for _, voter := range choice.Voters {
			vv := voterView{}
			if full {
				vv.IP = voter.IP
			}
			if voter.Voter != nil {
				vv.Voter = voter.Voter.Hex()
			}
			cv.Voters = append(cv.Voters, vv)
		}
		v.Choices = append(v.Choices, cv)
	}

	for _, comment := range p.Comments {
		v.Comments = append(v.Comments, projectComment(comment))
	}

	return v, nil
}

func projectComment(c model.Comment) commentView {
	return commentView{
		ID:        c.ID.Hex(),
		Author:    c.Author.Hex(),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
