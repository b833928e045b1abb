package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email string             `json:"email" bson:"email"`
	Name  string             `json:"name" bson:"name"`
	// Password holds the bcrypt hash. Default store projections exclude it,
	// it is only loaded on the sign-in path.
	Password  string               `json:"-" bson:"password,omitempty"`
	Role      string               `json:"role" bson:"role"`
	Polls     []primitive.ObjectID `json:"polls,omitempty" bson:"polls,omitempty"`
	CreatedAt time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time            `json:"updated_at" bson:"updated_at"`
}

type PollOptions struct {
	Multiple   bool `json:"multiple" bson:"multiple"`
	IPChecking bool `json:"ipChecking" bson:"ipChecking"`
}

// Voter is one recorded vote on a choice. Voter is nil for anonymous callers.
type Voter struct {
	IP    string              `json:"ip" bson:"ip"`
	Voter *primitive.ObjectID `json:"voter,omitempty" bson:"voter,omitempty"`
}

type Choice struct {
	ID     primitive.ObjectID `json:"id" bson:"_id"`
	Label  string             `json:"label" bson:"label"`
	Voters []Voter            `json:"voters" bson:"voters"`
}

type Comment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Author    primitive.ObjectID `json:"author" bson:"author"`
	Content   string             `json:"content" bson:"content"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

type Poll struct {
	ID primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	// Author is nil for anonymous polls.
	Author   *primitive.ObjectID `json:"author,omitempty" bson:"author,omitempty"`
	Title    string              `json:"title" bson:"title"`
	Options  PollOptions         `json:"options" bson:"options"`
	Choices  []Choice            `json:"choices" bson:"choices"`
	Comments []Comment           `json:"comments" bson:"comments"`
}

// Choice returns the choice with the given id, or nil.
func (p *Poll) Choice(id primitive.ObjectID) *Choice {
	for i := range p.Choices {
		if p.Choices[i].ID == id {
			return &p.Choices[i]
		}
	}
	return nil
}

// Comment returns the comment with the given id, or nil.
func (p *Poll) Comment(id primitive.ObjectID) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i]
		}
	}
	return nil
}

// IsAuthor reports whether u authored the poll. Anonymous polls have no
// author and nobody owns them.
func (p *Poll) IsAuthor(u *User) bool {
	return u != nil && p.Author != nil && *p.Author == u.ID
}

type RefreshToken struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Token      string             `json:"token" bson:"token"`
	Expiration time.Time          `json:"expiration" bson:"expiration"`
	User       primitive.ObjectID `json:"user" bson:"user"`
}
