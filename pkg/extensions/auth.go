// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnauthorized is returned when a credential is missing or rejected.
// Implementations wrap it with context.
var ErrUnauthorized = errors.New("unauthorized")

// LocalClientID identifies callers when authentication is disabled.
const LocalClientID = "local-client"

// AuthInfo identifies an authenticated API client.
type AuthInfo struct {
	// ClientID is never empty.
	ClientID string

	// Roles drive authorization decisions made by callers.
	Roles []string
}

// HasRole reports whether the client holds role.
func (a *AuthInfo) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// AuthProvider validates a credential and returns the client identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type AuthProvider interface {
	// Validate checks the credential taken from the request. An empty
	// credential means the request carried none.
	//
	// Returns ErrUnauthorized (or a wrapped form) for rejected credentials.
	Validate(ctx context.Context, credential string) (*AuthInfo, error)
}

// NopAuthProvider accepts every request as the local client.
type NopAuthProvider struct{}

// Validate ignores the credential and returns the local client.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{ClientID: LocalClientID, Roles: []string{"client"}}, nil
}

// APIKeyAuthProvider accepts a fixed set of API keys.
//
// Thread-safe: the key table is never modified after construction.
type APIKeyAuthProvider struct {
	keys map[string]string // key -> client ID
}

// NewAPIKeyAuthProvider builds a provider from a client ID -> key table.
func NewAPIKeyAuthProvider(clients map[string]string) *APIKeyAuthProvider {
	p := &APIKeyAuthProvider{keys: make(map[string]string, len(clients))}
	for client, key := range clients {
		p.keys[key] = client
	}
	return p
}

// ParseAPIKeys parses "client:key" pairs separated by commas, the format
// of the RISKAPI_API_KEYS variable.
func ParseAPIKeys(s string) (map[string]string, error) {
	clients := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		client, key, ok := strings.Cut(pair, ":")
		client, key = strings.TrimSpace(client), strings.TrimSpace(key)
		if !ok || client == "" || key == "" {
			return nil, fmt.Errorf("invalid API key entry %q: want client:key", pair)
		}
		if _, dup := clients[client]; dup {
			return nil, fmt.Errorf("client %q has more than one API key", client)
		}
		clients[client] = key
	}
	if len(clients) == 0 {
		return nil, errors.New("no API keys given")
	}
	return clients, nil
}

// Validate looks the credential up in the key table. Comparison is
// constant-time per key.
func (p *APIKeyAuthProvider) Validate(_ context.Context, credential string) (*AuthInfo, error) {
	if credential == "" {
		return nil, fmt.Errorf("missing API key: %w", ErrUnauthorized)
	}
	for key, client := range p.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(credential)) == 1 {
			return &AuthInfo{ClientID: client, Roles: []string{"client"}}, nil
		}
	}
	return nil, fmt.Errorf("unknown API key: %w", ErrUnauthorized)
}

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*APIKeyAuthProvider)(nil)
)
