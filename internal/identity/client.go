// Package identity resolves login tokens against the external user API.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNoUser is returned when the user API answers without a resolvable user.
var ErrNoUser = errors.New("identity lookup returned no user")

// User is the identity record returned by the user API.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Client looks up user identities over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a lookup client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Lookup resolves a login token to a user identity. A response without a user
// id is ErrNoUser; transport and decode failures are returned as-is.
func (c *Client) Lookup(ctx context.Context, token string) (*User, error) {
	endpoint := fmt.Sprintf("%s/user?username=%s", c.baseURL, url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("identity lookup: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity lookup: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		UserData *User `json:"userData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("identity lookup: decode: %w", err)
	}

	if body.UserData == nil || body.UserData.ID == "" {
		return nil, ErrNoUser
	}
	return body.UserData, nil
}
