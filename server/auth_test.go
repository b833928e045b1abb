package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpolls/api.openpolls.dev/auth"
)

func TestSignUp(t *testing.T) {
	app, st := newTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/auth/signup", fiber.Map{
		"email":    "a@x.com",
		"name":     "Alice",
		"password": "secret12",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := mutationResult{}
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.ID)
	require.NotEmpty(t, body.Links)
	assert.Equal(t, "login", body.Links[0].Rel)

	// Password is hashed before persistence and the role defaults to the
	// lowest-privilege one.
	for _, u := range st.users {
		assert.Equal(t, "user", u.Role)
		assert.NotEqual(t, "secret12", u.Password)
		assert.True(t, auth.Compare("secret12", u.Password))
	}
}

func TestSignUp_Validation(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/auth/signup", fiber.Map{
		"email":    "not-an-email",
		"name":     "Al",
		"password": "short",
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := errorResponse{}
	decodeBody(t, resp, &body)
	require.Len(t, body.Errors, 3, "one validation_failed entry per invalid field")
	for _, e := range body.Errors {
		assert.Equal(t, "validation_failed", e.Error)
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	app, st := newTestApp(t)
	seedUser(t, st, "a@x.com", "Alice", "user")

	resp := doRequest(t, app, http.MethodPost, "/auth/signup", fiber.Map{
		"email":    "a@x.com",
		"name":     "Other",
		"password": "secret12",
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", firstErrorCode(t, resp))
}

func TestSignIn(t *testing.T) {
	app, st := newTestApp(t)
	user, _ := seedUser(t, st, "a@x.com", "Alice", "user")

	resp := doRequest(t, app, http.MethodPost, "/auth/signin", fiber.Map{
		"email":    "a@x.com",
		"password": "secret12",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := map[string]string{}
	decodeBody(t, resp, &body)
	assert.Equal(t, user.ID.Hex(), body["id"])
	require.NotEmpty(t, body["accessToken"])
	require.NotEmpty(t, body["refreshToken"])

	// The access token resolves back to the user.
	data, err := auth.DecodeToken(body["accessToken"], testAccessKey)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), data.UserID)

	// A refresh token row was persisted for this sign-in.
	stored, err := st.FindRefreshToken(context.Background(), body["refreshToken"])
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, user.ID, stored.User)
}

func TestSignIn_UnknownEmail(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/auth/signin", fiber.Map{
		"email":    "ghost@x.com",
		"password": "secret12",
	}, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", firstErrorCode(t, resp))
}

func TestSignIn_WrongPassword(t *testing.T) {
	app, st := newTestApp(t)
	seedUser(t, st, "a@x.com", "Alice", "user")

	resp := doRequest(t, app, http.MethodPost, "/auth/signin", fiber.Map{
		"email":    "a@x.com",
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "access_denied", firstErrorCode(t, resp))
}

func TestRefreshAccessToken(t *testing.T) {
	app, st := newTestApp(t)
	user, _ := seedUser(t, st, "a@x.com", "Alice", "user")

	signin := doRequest(t, app, http.MethodPost, "/auth/signin", fiber.Map{
		"email":    "a@x.com",
		"password": "secret12",
	}, "")
	require.Equal(t, http.StatusOK, signin.StatusCode)
	creds := map[string]string{}
	decodeBody(t, signin, &creds)

	resp := doRequest(t, app, http.MethodPost, "/auth/refreshAccessToken", fiber.Map{
		"refreshToken": creds["refreshToken"],
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := map[string]string{}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body["accessToken"])

	data, err := auth.DecodeToken(body["accessToken"], testAccessKey)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), data.UserID)
}

func TestRefreshAccessToken_Missing(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doRequest(t, app, http.MethodPost, "/auth/refreshAccessToken", fiber.Map{}, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", firstErrorCode(t, resp))
}

func TestRefreshAccessToken_Unknown(t *testing.T) {
	app, _ := newTestApp(t)

	// Well-signed token that was never persisted by a sign-in.
	token, err := auth.EncodeToken("60b8d295f1d2ae2a6c6e1b5a", testRefreshKey, time.Hour)
	require.NoError(t, err)

	resp := doRequest(t, app, http.MethodPost, "/auth/refreshAccessToken", fiber.Map{
		"refreshToken": token,
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "access_denied", firstErrorCode(t, resp))
}

func TestSoftGate_GarbageTokenStaysAnonymous(t *testing.T) {
	app, st := newTestApp(t)
	seedPoll(t, st, nil, false, false, "Red", "Blue")

	// A garbage token must not reject the request, it just stays anonymous.
	resp := doRequest(t, app, http.MethodGet, "/polls/", nil, "garbage-token")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStrictGate_RejectsAnonymous(t *testing.T) {
	app, st := newTestApp(t)
	poll := seedPoll(t, st, nil, false, false, "Red", "Blue")

	resp := doRequest(t, app, http.MethodPost, "/polls/"+poll.ID.Hex()+"/comments", fiber.Map{
		"content": "hello",
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "access_denied", firstErrorCode(t, resp))
}
