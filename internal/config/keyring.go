/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const (
	keyringService       = "GoScriptWriter"
	keyringBackendSecret = "backend_password"
)

// TokenStore abstracts the OS keychain so tests can swap in an in-memory store.
type TokenStore interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
	Delete(service, user string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, user string) (string, error) {
	s, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return s, err
}

func (osKeyring) Set(service, user, secret string) error { return keyring.Set(service, user, secret) }

func (osKeyring) Delete(service, user string) error {
	err := keyring.Delete(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

var tokenStore TokenStore = osKeyring{}

// SetTokenStore replaces the secret store and returns the previous one.
func SetTokenStore(ts TokenStore) TokenStore {
	prev := tokenStore
	if ts == nil {
		ts = osKeyring{}
	}
	tokenStore = ts
	return prev
}

// ClearSecret removes the backend password from the keychain.
func ClearSecret() error { return tokenStore.Delete(keyringService, keyringBackendSecret) }
