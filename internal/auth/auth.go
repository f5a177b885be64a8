// Copyright 2025 EarthFocus Labs
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth exchanges long-lived offline tokens for short-lived
// access tokens against the archive's OAuth2 IAM and caches them until
// shortly before expiry.
package auth

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	homedir "github.com/mitchellh/go-homedir"

	maaperrors "github.com/earthfocus/maap-client/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// refreshBuffer is how long before expiry a cached token is treated as
// stale, so an in-flight request never rides a token that dies mid-way.
const refreshBuffer = 60 * time.Second

// Credentials holds the OAuth2 client identity and the offline token
// issued by the archive portal.
type Credentials struct {
	ClientID     string
	ClientSecret string
	OfflineToken string
}

// LoadCredentials reads a KEY=VALUE credentials file. Blank lines and
// #-comments are skipped. All three of CLIENT_ID, CLIENT_SECRET and
// OFFLINE_TOKEN must be present.
func LoadCredentials(path string) (Credentials, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("expanding credentials path: %w", err)
	}

	f, err := os.Open(expanded)
	if err != nil {
		return Credentials{}, fmt.Errorf("credentials file %s: %v: %w", expanded, err, maaperrors.ErrInvalidCredentials)
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}

	creds := Credentials{
		ClientID:     values["CLIENT_ID"],
		ClientSecret: values["CLIENT_SECRET"],
		OfflineToken: values["OFFLINE_TOKEN"],
	}
	var missing []string
	if creds.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if creds.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if creds.OfflineToken == "" {
		missing = append(missing, "OFFLINE_TOKEN")
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("missing credentials: %s: %w",
			strings.Join(missing, ", "), maaperrors.ErrInvalidCredentials)
	}
	return creds, nil
}

// TokenManager caches one access token and refreshes it on demand.
// Safe for concurrent use.
type TokenManager struct {
	creds      Credentials
	tokenURL   string
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	// now is stubbed in tests.
	now func() time.Time
}

// NewTokenManager creates a token manager for the given IAM token
// endpoint.
func NewTokenManager(creds Credentials, tokenURL string) *TokenManager {
	return &TokenManager{
		creds:      creds,
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// Token returns a valid access token, refreshing the cached one when it
// is absent or within the refresh buffer of expiry.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt.Add(-refreshBuffer)) {
		return m.token, nil
	}
	return m.refresh(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// refresh exchanges the offline token for a fresh access token. Caller
// holds m.mu.
func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {m.creds.ClientID},
		"client_secret": {m.creds.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {m.creds.OfflineToken},
		"scope":         {"offline_access openid"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("token endpoint: %v: %w", err, maaperrors.ErrNetworkFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %w",
			resp.StatusCode, maaperrors.ErrInvalidCredentials)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding token response: %v: %w", err, maaperrors.ErrInvalidCredentials)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("no access_token in IAM response: %w", maaperrors.ErrInvalidCredentials)
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = 300
	}

	m.token = tr.AccessToken
	m.expiresAt = m.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return m.token, nil
}
