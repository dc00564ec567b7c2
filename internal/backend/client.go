/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gochessstudio/internal/domain"
)

// Client is a minimal HTTP client for the sharing API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		if e.Error != "" {
			return nil, fmt.Errorf("server %s %s: %s: %s", method, u.Path, resp.Status, e.Error)
		}
		return nil, fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, dest any) error {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Login requests a token for subject and stores it on the client.
func (c *Client) Login(ctx context.Context, subject string, ttl time.Duration) (string, time.Time, error) {
	b, err := json.Marshal(map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)})
	if err != nil {
		return "", time.Time{}, err
	}
	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", bytes.NewReader(b), "application/json", &out); err != nil {
		return "", time.Time{}, err
	}
	c.Token = out.Token
	return out.Token, out.ExpiresAt, nil
}

// ListGames searches published games.
func (c *Client) ListGames(ctx context.Context, f GameFilter) ([]GameSummary, error) {
	q := url.Values{}
	if f.Text != "" {
		q.Set("q", f.Text)
	}
	if f.Player != "" {
		q.Set("player", f.Player)
	}
	if f.ECO != "" {
		q.Set("eco", f.ECO)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	path := "/api/games"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list []GameSummary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, "", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GamePGN downloads the PGN of a published game.
func (c *Client) GamePGN(ctx context.Context, id int64) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/games/%d/pgn", id), nil, "")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PublishGame uploads one PGN game.
func (c *Client) PublishGame(ctx context.Context, pgnText string) (GameSummary, error) {
	var sum GameSummary
	err := c.doJSON(ctx, http.MethodPost, "/api/games", strings.NewReader(pgnText), "application/x-chess-pgn", &sum)
	return sum, err
}

// Engines lists the default engines published for os.
func (c *Client) Engines(ctx context.Context, os string) ([]domain.Engine, error) {
	var list []domain.Engine
	if err := c.doJSON(ctx, http.MethodGet, "/api/engines?os="+url.QueryEscape(os), nil, "", &list); err != nil {
		return nil, err
	}
	return list, nil
}
