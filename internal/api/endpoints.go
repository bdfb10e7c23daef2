package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/api/auth/login",
		body:      map[string]string{"username": username, "password": password},
		anonymous: true,
		fallback:  "Login failed",
	}, &out)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", ErrNoTokenReceived
	}
	return out.Token, nil
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (User, error) {
	var user User
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/auth/register",
		body:     in,
		fallback: "Registration failed",
	}, &user)
	return user, err
}

// WhoAmI resolves the user behind token. An empty token falls back to the
// client's token source.
func (c *Client) WhoAmI(ctx context.Context, token string) (User, error) {
	var user User
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/auth/me",
		token:    token,
		fallback: "Authentication error",
	}, &user)
	return user, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/auth/logout",
		fallback: "Logout failed",
	}, nil)
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/dashboard/stats",
		fallback: "Failed to load dashboard stats",
	}, &stats)
	return stats, err
}

func (c *Client) History(ctx context.Context, status Status) ([]Email, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/email/history",
		query:    url.Values{"status": {string(status)}},
		fallback: "Failed to load emails",
	}, &raw)
	if err != nil {
		return nil, err
	}
	emails, err := decodeList[Email](raw)
	if err != nil {
		return nil, fmt.Errorf("decode email history: %w", err)
	}
	return emails, nil
}

func (c *Client) Send(ctx context.Context, in SendRequest) (Email, error) {
	var email Email
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/email/send",
		body:     in,
		fallback: "Failed to send email",
	}, &email)
	return email, err
}

// Trash soft-deletes an email and returns its trashed representation.
func (c *Client) Trash(ctx context.Context, id int64) (Email, error) {
	var email Email
	err := c.do(ctx, request{
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/api/email/%d", id),
		fallback: "Failed to move email to trash",
	}, &email)
	return email, err
}

func (c *Client) DeletePermanently(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/api/email/%d/permanent", id),
		fallback: "Failed to permanently delete email",
	}, nil)
}

func (c *Client) Credentials(ctx context.Context) (SMTPSettings, error) {
	var out struct {
		Settings *SMTPSettings `json:"settings"`
	}
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/email/credentials",
		fallback: "Failed to load SMTP settings",
	}, &out)
	if err != nil {
		return SMTPSettings{}, err
	}
	if out.Settings == nil {
		return SMTPSettings{}, nil
	}
	return *out.Settings, nil
}

func (c *Client) UpdateCredentials(ctx context.Context, in SMTPUpdate) error {
	return c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/email/credentials",
		body:     in,
		fallback: "Failed to update SMTP credentials",
	}, nil)
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/users",
		fallback: "Failed to load users",
	}, &raw)
	if err != nil {
		return nil, err
	}
	users, err := decodeList[User](raw)
	if err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		path:     fmt.Sprintf("/api/users/%d", id),
		fallback: "Failed to delete user",
	}, nil)
}
