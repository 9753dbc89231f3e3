package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"expenses/internal/core"
)

// AuthResult is what a successful login or signup yields.
type AuthResult struct {
	Token string
	User  core.User
}

var errNoToken = errors.New("response carried no token")

// Login exchanges credentials for a bearer token.
// If the service omits the user, it is fetched from /me.
func (c *Client) Login(ctx context.Context, username, password string) (AuthResult, error) {
	return c.authenticate(ctx, "/login", username, password)
}

// Signup creates an account and logs it in.
func (c *Client) Signup(ctx context.Context, username, password string) (AuthResult, error) {
	return c.authenticate(ctx, "/signup", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (AuthResult, error) {
	var out authDTO
	err := c.do(ctx, http.MethodPost, path, nil, "", credentialsDTO{Username: username, Password: password}, &out)
	if err != nil {
		return AuthResult{}, err
	}
	token := out.Token
	if token == "" {
		token = out.AccessToken
	}
	if token == "" {
		return AuthResult{}, fmt.Errorf("%s: %w", path, errNoToken)
	}
	if out.User != nil {
		return AuthResult{Token: token, User: out.User.toUser()}, nil
	}
	user, err := c.Me(ctx, token)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: resolve user: %w", path, err)
	}
	return AuthResult{Token: token, User: user}, nil
}

// Me resolves the user a token belongs to. It is how a stored token is
// checked before the session is trusted.
func (c *Client) Me(ctx context.Context, token string) (core.User, error) {
	var out userDTO
	if err := c.do(ctx, http.MethodGet, "/me", nil, token, nil, &out); err != nil {
		return core.User{}, err
	}
	return out.toUser(), nil
}

// Logout tells the service the token is done with. Callers clear local
// state regardless of the outcome.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/logout", nil, token, nil, nil)
}
