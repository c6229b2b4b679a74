// Package onelogin implements the DirectoryClient contract over the
// OneLogin REST API (v2 users and MFA endpoints).
//
// The client deliberately stays narrow: one client-credentials token fetch
// at construction, single-page queries, no transport retries. Token refresh
// and pagination are out of scope for a per-session authentication plugin.
package onelogin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/authenticator"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/config"
	"github.com/OneIdentity/safeguard-sessions-plugin-onelogin/errors"
)

const requestTimeout = 30 * time.Second

// Client is a DirectoryClient backed by the OneLogin REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

var _ authenticator.DirectoryClient = (*Client)(nil)

// New builds a Client from the plugin configuration and obtains an API
// access token. A failed token fetch is a CONFIGURATION_ERROR: the plugin
// must not start without a working provider client.
func New(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://api.%s.onelogin.com", cfg.APIRegion)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		logger:     logger,
	}
	token, err := c.fetchAccessToken(cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, errors.NewConfigurationError("OneLogin access token request failed", err)
	}
	c.token = token
	logger.Debug("OneLogin client ready", zap.String("base_url", baseURL))
	return c, nil
}

// fetchAccessToken performs the client-credentials grant. The token is
// fetched once; the plugin serves short sessions, not long-lived daemons.
func (c *Client) fetchAccessToken(clientID, clientSecret string) (string, error) {
	body, err := json.Marshal(map[string]string{"grant_type": "client_credentials"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/auth/oauth2/v2/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}
	return payload.AccessToken, nil
}

// FindUsers implements authenticator.DirectoryClient. It queries
// /api/2/users filtered by the given attribute; only the id field is
// requested since identity resolution needs nothing else.
func (c *Client) FindUsers(ctx context.Context, attribute, value string) ([]authenticator.UserIdentity, error) {
	query := url.Values{}
	query.Set(attribute, value)
	query.Set("fields", "id")

	var users []struct {
		ID int `json:"id"`
	}
	if err := c.get(ctx, "/api/2/users?"+query.Encode(), &users); err != nil {
		return nil, err
	}

	out := make([]authenticator.UserIdentity, 0, len(users))
	for _, u := range users {
		out = append(out, authenticator.UserIdentity{ID: u.ID, Attribute: value})
	}
	return out, nil
}

// ListFactors implements authenticator.DirectoryClient via
// /api/2/mfa/users/:id/devices.
func (c *Client) ListFactors(ctx context.Context, userID int) ([]authenticator.EnrolledFactor, error) {
	var devices []struct {
		DeviceID    int    `json:"device_id"`
		DisplayName string `json:"user_display_name"`
		Default     bool   `json:"default"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/2/mfa/users/%d/devices", userID), &devices); err != nil {
		return nil, err
	}

	out := make([]authenticator.EnrolledFactor, 0, len(devices))
	for _, d := range devices {
		out = append(out, authenticator.EnrolledFactor{
			ID:          d.DeviceID,
			DisplayName: d.DisplayName,
			Default:     d.Default,
		})
	}
	return out, nil
}

// VerifyFactor implements authenticator.DirectoryClient. The provider
// answers 200 for a valid code and 401 for a wrong one; a wrong code is a
// legitimate false, not an error.
func (c *Client) VerifyFactor(ctx context.Context, userID, factorID int, code string) (bool, error) {
	body := map[string]any{"device_id": factorID, "otp": code}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/2/mfa/users/%d/verifications", userID), body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized:
		return false, nil
	default:
		return false, unexpectedStatus(resp)
	}
}

// StartPushChallenge implements authenticator.DirectoryClient. It creates
// an asynchronous verification on the push device with the given lifetime.
func (c *Client) StartPushChallenge(ctx context.Context, userID, factorID, expiresIn int) (authenticator.PushActivation, error) {
	body := map[string]any{"device_id": factorID, "expires_in": expiresIn}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/2/mfa/users/%d/verifications", userID), body)
	if err != nil {
		return authenticator.PushActivation{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return authenticator.PushActivation{}, unexpectedStatus(resp)
	}

	var payload struct {
		ID        string    `json:"id"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return authenticator.PushActivation{}, fmt.Errorf("decoding activation response: %w", err)
	}
	if payload.ID == "" {
		return authenticator.PushActivation{}, fmt.Errorf("activation response carries no id")
	}
	return authenticator.PushActivation{ID: payload.ID, ExpiresAt: payload.ExpiresAt}, nil
}

// PollPushChallenge implements authenticator.DirectoryClient via
// /api/2/mfa/users/:id/verifications/:activation_id.
func (c *Client) PollPushChallenge(ctx context.Context, userID int, activationID string) (authenticator.PushStatus, error) {
	var payload struct {
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/api/2/mfa/users/%d/verifications/%s", userID, url.PathEscape(activationID))
	if err := c.get(ctx, path, &payload); err != nil {
		return "", err
	}
	return authenticator.PushStatus(payload.Status), nil
}

// get performs an authenticated GET and decodes a 200 response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func unexpectedStatus(resp *http.Response) error {
	return fmt.Errorf("%s %s returned status %d",
		resp.Request.Method, resp.Request.URL.Path, resp.StatusCode)
}
