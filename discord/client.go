package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/four20hq/clanhub/config"
	"go.uber.org/zap"
)

// API is the Discord surface the services depend on. Tests substitute a fake.
type API interface {
	// GuildMembers fetches the full member directory, following the
	// after-cursor until the guild is exhausted.
	GuildMembers(ctx context.Context) ([]GuildMember, error)
	// GuildMember fetches a single member; returns nil (no error) when the
	// user is not in the guild.
	GuildMember(ctx context.Context, userID string) (*GuildMember, error)
	// AddMemberRole grants a role. Discord treats the PUT as idempotent.
	AddMemberRole(ctx context.Context, userID, roleID string) error
	// RemoveMemberRole revokes a role.
	RemoveMemberRole(ctx context.Context, userID, roleID string) error
	// PostMessage posts plain content to a channel.
	PostMessage(ctx context.Context, channelID, content string) error
}

// Client is a thin REST wrapper over the Discord HTTP API.
type Client struct {
	base    string
	token   string
	guildID string
	cfg     config.DiscordConfig
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Client from config.
func NewClient(cfg config.DiscordConfig, logger *zap.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(cfg.APIBase, "/"),
		token:   cfg.BotToken,
		guildID: cfg.GuildID,
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, auth string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", auth)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord: %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var errNotFound = fmt.Errorf("discord: not found")

func (c *Client) botAuth() string { return "Bot " + c.token }

// GuildMembers pages through /guilds/{id}/members with limit 1000.
func (c *Client) GuildMembers(ctx context.Context) ([]GuildMember, error) {
	var all []GuildMember
	after := ""
	for {
		path := fmt.Sprintf("/guilds/%s/members?limit=1000", c.guildID)
		if after != "" {
			path += "&after=" + after
		}
		var page []GuildMember
		if err := c.do(ctx, http.MethodGet, path, nil, c.botAuth(), &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < 1000 {
			return all, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// GuildMember fetches one member; nil means the user is not in the guild.
func (c *Client) GuildMember(ctx context.Context, userID string) (*GuildMember, error) {
	var m GuildMember
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/guilds/%s/members/%s", c.guildID, userID), nil, c.botAuth(), &m)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AddMemberRole grants roleID to userID.
func (c *Client) AddMemberRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, http.MethodPut,
		fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guildID, userID, roleID),
		nil, c.botAuth(), nil)
}

// RemoveMemberRole revokes roleID from userID.
func (c *Client) RemoveMemberRole(ctx context.Context, userID, roleID string) error {
	err := c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guildID, userID, roleID),
		nil, c.botAuth(), nil)
	if err == errNotFound {
		return nil
	}
	return err
}

// PostMessage posts content to a channel.
func (c *Client) PostMessage(ctx context.Context, channelID, content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/messages", channelID),
		strings.NewReader(string(payload)), c.botAuth(), nil)
}

// ---- OAuth ----

// AuthorizeURL builds the Discord OAuth2 consent URL for the identify scope.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "identify")
	q.Set("state", state)
	return "https://discord.com/oauth2/authorize?" + q.Encode()
}

// ExchangeCode trades an OAuth2 authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("discord: token exchange: status %d: %s", resp.StatusCode, string(data))
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Me fetches /users/@me with the user's OAuth access token.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, "Bearer "+accessToken, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
