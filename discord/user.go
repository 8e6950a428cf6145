package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/snowgate-dev/snowgate/internal/errors"
)

// User is the raw user record returned by Discord's identity endpoint.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
	Locale     string `json:"locale"`
	Email      string `json:"email"`
	Verified   bool   `json:"verified"`
}

// Guild is one server the user is a member of.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DisplayName returns the user's display name, falling back to the username
// for accounts without one.
func (u *User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL derives the CDN picture URL from the avatar hash. Animated
// avatars (hash prefixed a_) are GIFs, everything else is PNG. Returns ""
// for users without an avatar.
func (u *User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	ext := "png"
	if strings.HasPrefix(u.Avatar, "a_") {
		ext = "gif"
	}
	return fmt.Sprintf("%s/avatars/%s/%s.%s", CDNBaseURL, u.ID, u.Avatar, ext)
}

// FetchUser retrieves the authenticated user's identity record.
func (c *Client) FetchUser(ctx context.Context, discordToken *oauth2.Token) (*User, error) {
	var user User
	if err := c.get(ctx, discordToken, "/users/@me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchGuilds retrieves the guilds the authenticated user is a member of.
func (c *Client) FetchGuilds(ctx context.Context, discordToken *oauth2.Token) ([]Guild, error) {
	var guilds []Guild
	if err := c.get(ctx, discordToken, "/users/@me/guilds", &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

// get performs one authenticated GET against the Discord API. Requests are
// bounded by the factory's HTTP client timeout and cancelled with ctx.
func (c *Client) get(ctx context.Context, discordToken *oauth2.Token, path string, out any) error {
	httpClient := oauth2.NewClient(c.withHTTPClient(ctx), oauth2.StaticTokenSource(discordToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %s", path)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUpstream, "GET %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(errors.ErrUpstream, "GET %s returned %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(errors.ErrUpstream, "decoding %s response", path)
	}
	return nil
}
