// Package store defines the persistence contract the handlers consume.
package store

import (
	"context"
	"errors"

	"github.com/openpolls/api.openpolls.dev/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("email already in use")

// Store is the persistence surface. Find methods return (nil, nil) when the
// document does not exist.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindUsers(ctx context.Context) ([]model.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	// FindUserByEmail projects the password hash, it exists for sign-in only.
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id primitive.ObjectID) (bool, error)

	CreatePoll(ctx context.Context, p *model.Poll) error
	FindPolls(ctx context.Context) ([]model.Poll, error)
	FindPollByID(ctx context.Context, id primitive.ObjectID) (*model.Poll, error)
	SavePoll(ctx context.Context, p *model.Poll) error
	DeletePoll(ctx context.Context, id primitive.ObjectID) (bool, error)

	CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
	SaveRefreshToken(ctx context.Context, t *model.RefreshToken) error
}
