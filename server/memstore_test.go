package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openpolls/api.openpolls.dev/auth"
	"github.com/openpolls/api.openpolls.dev/model"
	"github.com/openpolls/api.openpolls.dev/store"
)

// memStore is an in-memory store.Store for handler tests. Documents are
// cloned on the way in and out so only Save/Create calls persist anything,
// matching the real store's semantics.
type memStore struct {
	mtx    sync.Mutex
	users  map[primitive.ObjectID]*model.User
	polls  map[primitive.ObjectID]*model.Poll
	tokens map[string]*model.RefreshToken
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[primitive.ObjectID]*model.User{},
		polls:  map[primitive.ObjectID]*model.Poll{},
		tokens: map[string]*model.RefreshToken{},
	}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Polls = append([]primitive.ObjectID(nil), u.Polls...)
	return &c
}

func clonePoll(p *model.Poll) *model.Poll {
	c := *p
	if p.Author != nil {
		a := *p.Author
		c.Author = &a
	}
	c.Choices = make([]model.Choice, len(p.Choices))
	for i, ch := range p.Choices {
		cc := ch
		cc.Voters = make([]model.Voter, len(ch.Voters))
		for j, v := range ch.Voters {
			vv := v
			if v.Voter != nil {
				id := *v.Voter
				vv.Voter = &id
			}
			cc.Voters[j] = vv
		}
		c.Choices[i] = cc
	}
	c.Comments = append([]model.Comment(nil), p.Comments...)
	return &c
}

func (s *memStore) CreateUser(_ context.Context, u *model.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return store.ErrDuplicateEmail
		}
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *memStore) FindUsers(_ context.Context) ([]model.User, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := []model.User{}
	for _, u := range s.users {
		c := cloneUser(u)
		c.Password = ""
		out = append(out, *c)
	}
	return out, nil
}

func (s *memStore) FindUserByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := cloneUser(u)
	c.Password = ""
	return c, nil
}

func (s *memStore) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (s *memStore) SaveUser(_ context.Context, u *model.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for id, existing := range s.users {
		if existing.Email == u.Email && id != u.ID {
			return store.ErrDuplicateEmail
		}
	}
	existing, ok := s.users[u.ID]
	if !ok {
		return nil
	}
	c := cloneUser(u)
	if c.Password == "" {
		c.Password = existing.Password
	}
	c.UpdatedAt = time.Now()
	s.users[u.ID] = c
	return nil
}

func (s *memStore) DeleteUser(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.users[id]
	delete(s.users, id)
	return ok, nil
}

func (s *memStore) CreatePoll(_ context.Context, p *model.Poll) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	p.ID = primitive.NewObjectID()
	s.polls[p.ID] = clonePoll(p)
	return nil
}

func (s *memStore) FindPolls(_ context.Context) ([]model.Poll, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := []model.Poll{}
	for _, p := range s.polls {
		out = append(out, *clonePoll(p))
	}
	return out, nil
}

func (s *memStore) FindPollByID(_ context.Context, id primitive.ObjectID) (*model.Poll, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, nil
	}
	return clonePoll(p), nil
}

func (s *memStore) SavePoll(_ context.Context, p *model.Poll) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.polls[p.ID] = clonePoll(p)
	return nil
}

func (s *memStore) DeletePoll(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.polls[id]
	delete(s.polls, id)
	return ok, nil
}

func (s *memStore) CreateRefreshToken(_ context.Context, t *model.RefreshToken) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	t.ID = primitive.NewObjectID()
	c := *t
	s.tokens[t.Token] = &c
	return nil
}

func (s *memStore) FindRefreshToken(_ context.Context, token string) (*model.RefreshToken, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (s *memStore) SaveRefreshToken(_ context.Context, t *model.RefreshToken) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if existing, ok := s.tokens[t.Token]; ok {
		existing.Expiration = t.Expiration
	}
	return nil
}

const (
	testAccessKey  = "test-access-key"
	testRefreshKey = "test-refresh-key"
	testBcryptCost = 4
)

func testPerms() *auth.Table {
	return auth.NewTable(map[string][]string{
		"user": {},
		"admin": {
			"user.list.all", "user.view.all", "user.modify", "user.modify.all",
			"user.update", "user.update.all", "user.delete",
			"poll.list.all", "poll.view.all", "poll.modify", "poll.modify.all",
			"poll.update", "poll.update.all", "poll.delete",
			"poll.comment.modify", "poll.comment.delete",
		},
	})
}

func newTestApp(t *testing.T) (*fiber.App, *memStore) {
	t.Helper()
	st := newMemStore()
	app := newApp(Options{
		AccessTokenKey:  testAccessKey,
		RefreshTokenKey: testRefreshKey,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: time.Hour * 24,
		BcryptCost:      testBcryptCost,
		Perms:           testPerms(),
		Store:           st,
	})
	return app, st
}

// seedUser creates a user directly in the store and returns it with a valid
// access token.
func seedUser(t *testing.T, st *memStore, email string, name string, role string) (*model.User, string) {
	t.Helper()
	hash, err := auth.Hash("secret12", testBcryptCost)
	require.NoError(t, err)
	u := &model.User{Email: email, Name: name, Password: hash, Role: role}
	require.NoError(t, st.CreateUser(context.Background(), u))
	token, err := auth.EncodeToken(u.ID.Hex(), testAccessKey, time.Hour)
	require.NoError(t, err)
	return u, token
}

func seedPoll(t *testing.T, st *memStore, author *primitive.ObjectID, multiple bool, ipChecking bool, labels ...string) *model.Poll {
	t.Helper()
	p := &model.Poll{
		Title:    "Favorite color?",
		Author:   author,
		Options:  model.PollOptions{Multiple: multiple, IPChecking: ipChecking},
		Comments: []model.Comment{},
	}
	for _, l := range labels {
		p.Choices = append(p.Choices, model.Choice{ID: primitive.NewObjectID(), Label: l, Voters: []model.Voter{}})
	}
	require.NoError(t, st.CreatePoll(context.Background(), p))
	return p
}

func doRequest(t *testing.T, app *fiber.App, method string, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("x-access-token", token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func firstErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := errorResponse{}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Errors)
	return body.Errors[0].Error
}
