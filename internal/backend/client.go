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
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"goscriptwriter/internal/storage"
)

// Client reads published projects from a backend server.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient returns a client for baseURL; a trailing slash is ignored.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("server %s %s: %s: %s", method, path, resp.Status, e.Error)
		}
		return fmt.Errorf("server %s %s: %s", method, path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Login requests a token for subject and stores it on the client.
func (c *Client) Login(ctx context.Context, subject string) error {
	var res struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", map[string]any{"subject": subject}, &res); err != nil {
		return err
	}
	c.Token = res.Token
	return nil
}

// ListProjects returns the published projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var list []Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// LatestRevision fetches the newest revision of a project.
func (c *Client) LatestRevision(ctx context.Context, projectID int64) (*Revision, error) {
	var rev Revision
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/revision", projectID), nil, &rev); err != nil {
		return nil, err
	}
	return &rev, nil
}

// Search runs q against the published blocks of a project.
func (c *Client) Search(ctx context.Context, projectID int64, q storage.SearchQuery) ([]storage.SearchResult, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Speaker != "" {
		v.Set("speaker", q.Speaker)
	}
	for _, t := range q.Types {
		v.Add("type", t)
	}
	for key, n := range map[string]int{"from": q.SceneFrom, "to": q.SceneTo, "limit": q.Limit, "offset": q.Offset} {
		if n > 0 {
			v.Set(key, strconv.Itoa(n))
		}
	}
	path := fmt.Sprintf("/api/projects/%d/search", projectID)
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}
	var res []storage.SearchResult
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}
