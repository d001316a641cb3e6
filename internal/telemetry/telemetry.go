/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in, anonymous usage events and crash reports.
// Nothing leaves the machine unless the user opted in and an endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "goscriptwriter/internal/log"
	"goscriptwriter/internal/version"
)

const defaultTimeout = 1500 * time.Millisecond

// Config holds runtime configuration for telemetry and crash uploads.
//
// Environment variables (read by FromEnv):
//   - GSW_TELEMETRY_OPT_IN: "1", "true", "yes" or "on" enables events
//   - GSW_TELEMETRY_URL: endpoint that receives JSON events
//   - GSW_CRASH_UPLOAD_URL: endpoint that receives crash reports
//   - GSW_TELEMETRY_TIMEOUT_MS: request timeout, 1500ms when unset
//   - GSW_TELEMETRY_DEBUG: logs every send attempt when non-empty
//
// Without URLs every call is a no-op, even when opted in.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

// FromEnv reads Config from the GSW_TELEMETRY_* variables.
func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("GSW_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("GSW_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("GSW_CRASH_UPLOAD_URL")),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv("GSW_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("GSW_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

// WithOptIn returns cfg with OptIn forced on when the stored preference asks for it.
// The environment can enable telemetry but the config file never disables it.
func (cfg Config) WithOptIn(pref bool) Config {
	cfg.OptIn = cfg.OptIn || pref
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// event is the wire shape of one usage event. Props must never carry script text.
type event struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Session string         `json:"session"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client sends events from a background goroutine through a bounded queue.
// Send errors and a full queue drop events silently.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	session string
	q       chan event
	once    sync.Once
	closed  chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// InitDefault installs a default client built from the environment unless one exists.
func InitDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
}

// NewDefault replaces the default client with one built from cfg.
func NewDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Default returns the package client, creating it from the environment on first use.
func Default() *Client {
	InitDefault()
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:     cfg,
		log:     applog.WithComponent("telemetry"),
		cli:     &http.Client{Timeout: cfg.Timeout},
		session: uuid.NewString(),
		q:       make(chan event, 64),
		closed:  make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Session returns the random identifier attached to every event of this client.
func (c *Client) Session() string { return c.session }

// Enabled reports whether the default client sends events.
func Enabled() bool { return Default().Enabled() }

// Event queues a named event. Safe to call from any goroutine.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := event{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Session: c.session,
		Version: version.Version,
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		ev.Props = make(map[string]any, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	select {
	case c.q <- ev:
	default:
	}
}

// Event queues an event on the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// Flush waits up to half a second for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the sender. Queued events are discarded.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.q:
			buf, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			c.post(c.cfg.EventsURL, "application/json", buf, "event")
		}
	}
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Session", c.session)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.String("what", what), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry sent", slog.String("what", what), slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a rendered crash report when opted in and a crash URL is set.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", append([]byte(nil), report...), "crash")
}

// UploadCrash posts report through the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
