package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"ecselfservice/internal/ports"
)

const (
	DefaultAuthorizeURL = "https://github.com/login/oauth/authorize"
	DefaultTokenURL     = "https://github.com/login/oauth/access_token"
	DefaultGraphQLURL   = "https://api.github.com/graphql"

	maxResponseBytes = 1 << 20
)

var ErrNoAccessToken = errors.New("github did not return an access token")

type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	GraphQLURL   string
	// Org owning the evaluated teams.
	Org string
	// Teams are the team slugs queried for every user.
	Teams []string
	// Token authenticates directory queries, which run without a user token.
	Token      string
	HTTPClient *http.Client
}

// Client is the OAuth identity provider and the team directory.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultAuthorizeURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.GraphQLURL == "" {
		cfg.GraphQLURL = DefaultGraphQLURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("state", state)
	q.Set("allow_signup", "false")
	return c.cfg.AuthorizeURL + "?" + q.Encode()
}

// Exchange trades an OAuth code for a user access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("client_secret", c.cfg.ClientSecret)
	q.Set("code", code)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	body, err := c.send(req)
	if err != nil {
		return "", err
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		if desc := gjson.GetBytes(body, "error_description").String(); desc != "" {
			return "", fmt.Errorf("%w: %s", ErrNoAccessToken, desc)
		}
		return "", ErrNoAccessToken
	}
	return token, nil
}

const viewerQuery = `query {
  self: viewer {
    login
    avatar: avatarUrl(size: 30)
  }
}`

func (c *Client) Viewer(ctx context.Context, accessToken string) (string, string, error) {
	data, err := c.query(ctx, accessToken, viewerQuery, nil)
	if err != nil {
		return "", "", err
	}
	login := data.Get("self.login").String()
	if login == "" {
		return "", "", errors.New("github viewer query returned no login")
	}
	return login, data.Get("self.avatar").String(), nil
}

const teamMembershipFragment = `
fragment teamMembership on Team {
  team_name: name
  team_slug: slug
  team_description: description
  team_memberships: members(first: 100, query: $user) {
    total: totalCount
    members: edges {
      member_role: role
      member_url: memberAccessUrl
      member: node {
        login
        name
      }
    }
  }
}`

func teamAlias(slug string) string {
	return strings.ReplaceAll(slug, "-", "_")
}

func (c *Client) teamsQuery() string {
	var b strings.Builder
	b.WriteString("query ($org: String!, $user: String!) {\n")
	b.WriteString("  user_memberships: user(login: $user) {\n")
	b.WriteString("    avatar: avatarUrl(size: 30)\n")
	b.WriteString("    teams: organization(login: $org) {\n")
	for _, slug := range c.cfg.Teams {
		fmt.Fprintf(&b, "      %s: team(slug: %q) { ...teamMembership }\n", teamAlias(slug), slug)
	}
	b.WriteString("    }\n  }\n}\n")
	b.WriteString(teamMembershipFragment)
	return b.String()
}

// UserTeams queries the configured teams of the org for login. Teams the
// org does not expose are reported with a nil record.
func (c *Client) UserTeams(ctx context.Context, login string) (ports.UserTeams, error) {
	data, err := c.query(ctx, c.cfg.Token, c.teamsQuery(), map[string]any{"org": c.cfg.Org, "user": login})
	if err != nil {
		return ports.UserTeams{}, err
	}
	root := data.Get("user_memberships")
	out := ports.UserTeams{
		Avatar: root.Get("avatar").String(),
		Teams:  make(map[string]*ports.TeamRecord, len(c.cfg.Teams)),
	}
	teams := root.Get("teams")
	for _, slug := range c.cfg.Teams {
		team := teams.Get(teamAlias(slug))
		if !team.Exists() || team.Type == gjson.Null {
			out.Teams[slug] = nil
			continue
		}
		record := &ports.TeamRecord{
			Name:        team.Get("team_name").String(),
			Slug:        team.Get("team_slug").String(),
			Description: team.Get("team_description").String(),
			Total:       int(team.Get("team_memberships.total").Int()),
		}
		for _, edge := range team.Get("team_memberships.members").Array() {
			record.Members = append(record.Members, ports.TeamMember{
				Login: edge.Get("member.login").String(),
				Name:  edge.Get("member.name").String(),
				Role:  edge.Get("member_role").String(),
			})
		}
		out.Teams[slug] = record
	}
	return out, nil
}

func (c *Client) query(ctx context.Context, token, query string, variables map[string]any) (gjson.Result, error) {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return gjson.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphQLURL, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}
	body, err := c.send(req)
	if err != nil {
		return gjson.Result{}, err
	}
	if msg := gjson.GetBytes(body, "errors.0.message"); msg.Exists() {
		return gjson.Result{}, fmt.Errorf("github graphql: %s", msg.String())
	}
	return gjson.GetBytes(body, "data"), nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("github query failure: code=[%d]", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("github returned a non-JSON response")
	}
	return body, nil
}
