package router_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signUp = `{"firstname":"Grace","lastname":"Hopper","email":"Grace@Example.com",` +
	`"password":"Secret#123","confirmPassword":"Secret#123","accountType":"user"}`

func TestPanel_RegisterActivateAndSignIn(t *testing.T) {
	srv, b := newPanel(t)

	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/register", signUp, nil))
	assert.Contains(t, srv.Sent(), "activation:grace@example.com")

	rec := b.do(http.MethodPost, "/panel/register", signUp)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already registered")

	var res loginResult
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/login", `{"username":"grace@example.com","password":"Secret#123"}`, &res))
	assert.Equal(t, "inactive_account", res.Attempt.Phase)

	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/activate/act-grace@example.com", "", nil))
	assert.Equal(t, http.StatusBadRequest, b.json(http.MethodPost, "/panel/activate/act-grace@example.com", "", nil))

	res = loginResult{}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/login", `{"username":"grace@example.com","password":"Secret#123"}`, &res))
	assert.Equal(t, "authenticated", res.Attempt.Phase)
}

func TestPanel_RegisterValidation(t *testing.T) {
	srv, b := newPanel(t)

	body := strings.Replace(signUp, `"confirmPassword":"Secret#123"`, `"confirmPassword":"Other#123"`, 1)
	rec := b.do(http.MethodPost, "/panel/register", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")
	assert.Zero(t, srv.Hits("/auth/register"))
}

func TestPanel_PasswordReset(t *testing.T) {
	srv, b := newPanel(t)
	srv.AddUser(gatewaytestUser("ada@example.com", "Secret#123"))

	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/password/forgot", `{"email":" ADA@example.com "}`, nil))
	assert.Contains(t, srv.Sent(), "reset:ada@example.com")

	rec := b.do(http.MethodPost, "/panel/password/reset", `{"token":"reset-ada@example.com","password":"weak","confirmPassword":"weak"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/password/reset",
		`{"token":"reset-ada@example.com","password":"Fresh#456","confirmPassword":"Fresh#456"}`, nil))

	var res loginResult
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/login", `{"username":"ada@example.com","password":"Fresh#456"}`, &res))
	assert.Equal(t, "authenticated", res.Attempt.Phase)
}

func TestPanel_OAuth(t *testing.T) {
	srv, b := newPanel(t)
	srv.AddUser(gatewaytestUser("ada@example.com", "Secret#123"))

	rec := b.do(http.MethodGet, "/panel/oauth/google?lang=en", "")
	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://accounts.google.com/"), loc)
	assert.Contains(t, loc, "http://panel.test/en/oauth")

	rec = b.do(http.MethodGet, "/panel/oauth/github", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.do(http.MethodPost, "/panel/oauth/axmaril/callback", `{"token":"axm-nobody@example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var redirect struct {
		Location string `json:"location"`
	}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/oauth/axmaril/callback", `{"token":"axm-ada@example.com"}`, &redirect))
	assert.Equal(t, "/fr/customer/dashboard", redirect.Location)

	rec = b.do(http.MethodGet, "/fr/customer/dashboard", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
