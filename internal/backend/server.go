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
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	applog "goscriptwriter/internal/log"
	"goscriptwriter/internal/storage"
	"goscriptwriter/internal/version"
)

const devSecret = "dev-secret-change-me"

// ServerConfig holds the HTTP side of the backend.
type ServerConfig struct {
	Addr   string // bind address, e.g. ":8080"
	Secret string // HMAC key for bearer tokens
}

// ServerConfigFromEnv reads GSW_ADDR (or PORT) and GSW_AUTH_SECRET. A missing secret
// falls back to an insecure development key and logs a warning.
func ServerConfigFromEnv() ServerConfig {
	cfg := ServerConfig{Addr: ":8080", Secret: os.Getenv("GSW_AUTH_SECRET")}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("GSW_ADDR"); v != "" {
		cfg.Addr = v
	}
	if cfg.Secret == "" {
		applog.WithComponent("backend").Warn("GSW_AUTH_SECRET not set; using insecure dev secret")
		cfg.Secret = devSecret
	}
	return cfg
}

// Handler returns the backend API. Routes under /api/projects require a bearer token
// issued by POST /api/auth/token.
func Handler(store *Store, secret string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if store == nil || store.db.PingContext(ctx) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})

	mux.HandleFunc("POST /api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Subject    string `json:"subject"`
			TTLSeconds int64  `json:"ttl_seconds"`
		}
		b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		_ = json.Unmarshal(b, &req)
		if req.Subject == "" {
			req.Subject = "dev"
		}
		if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
			req.TTLSeconds = 3600
		}
		exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		tok, err := signToken(secret, req.Subject, exp)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      tok,
			"expires_at": exp.UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("GET /api/projects", withAuth(secret, func(w http.ResponseWriter, r *http.Request, _ string) {
		list, err := store.ListProjects(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if list == nil {
			list = []Project{}
		}
		writeJSON(w, http.StatusOK, list)
	}))

	mux.HandleFunc("GET /api/projects/{id}/revision", withAuth(secret, func(w http.ResponseWriter, r *http.Request, _ string) {
		pid, ok := projectID(w, r)
		if !ok {
			return
		}
		rev, found, err := store.LatestRevision(r.Context(), pid)
		switch {
		case err != nil:
			writeError(w, http.StatusInternalServerError, err)
		case !found:
			writeError(w, http.StatusNotFound, errors.New("no revision"))
		default:
			writeJSON(w, http.StatusOK, rev)
		}
	}))

	mux.HandleFunc("GET /api/projects/{id}/search", withAuth(secret, func(w http.ResponseWriter, r *http.Request, _ string) {
		pid, ok := projectID(w, r)
		if !ok {
			return
		}
		q, err := searchQueryFromURL(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		res, err := SearchPG(r.Context(), store.db, pid, q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if res == nil {
			res = []storage.SearchResult{}
		}
		writeJSON(w, http.StatusOK, res)
	}))
	return mux
}

// Serve runs h on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	l := applog.WithComponent("backend")
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	l.Info("backend listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pid, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid project id"))
		return 0, false
	}
	return pid, true
}

func searchQueryFromURL(r *http.Request) (storage.SearchQuery, error) {
	v := r.URL.Query()
	q := storage.SearchQuery{Text: v.Get("q"), Speaker: v.Get("speaker"), Types: v["type"]}
	for key, dst := range map[string]*int{"from": &q.SceneFrom, "to": &q.SceneTo, "limit": &q.Limit, "offset": &q.Offset} {
		s := v.Get(key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("invalid %s: %q", key, s)
		}
		*dst = n
	}
	return q, nil
}

type tokenClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"` // unix seconds
}

func signToken(secret, subject string, exp time.Time) (string, error) {
	b, err := json.Marshal(tokenClaims{Sub: subject, Exp: exp.Unix()})
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(b)
	return base64.RawURLEncoding.EncodeToString(b) + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func verifyToken(secret, token string) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", errors.New("invalid token format")
	}
	payloadB, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", errors.New("invalid token payload")
	}
	sigB, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", errors.New("invalid token signature")
	}
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write(payloadB)
	if !hmac.Equal(h.Sum(nil), sigB) {
		return "", errors.New("bad signature")
	}
	var claims tokenClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return "", errors.New("bad claims")
	}
	if claims.Exp < time.Now().Unix() {
		return "", errors.New("token expired")
	}
	if claims.Sub == "" {
		claims.Sub = "dev"
	}
	return claims.Sub, nil
}

func withAuth(secret string, next func(w http.ResponseWriter, r *http.Request, subject string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) < len(prefix) || strings.ToLower(auth[:len(prefix)]) != prefix {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("missing bearer token"))
			return
		}
		sub, err := verifyToken(secret, strings.TrimSpace(auth[len(prefix):]))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("invalid token"))
			return
		}
		next(w, r, sub)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
