package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"groupchat/internal/models"
	"groupchat/internal/types"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Login resolves username on the server and returns the user and, when the
// server signs tokens, a token for the websocket.
func Login(ctx context.Context, serverURL, username string) (types.AuthResponse, error) {
	var out types.AuthResponse

	body, err := json.Marshal(types.LoginRequest{Username: username})
	if err != nil {
		return out, err
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/api/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e types.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return out, fmt.Errorf("login as %q: %s: %s", username, resp.Status, e.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode login response: %w", err)
	}
	return out, nil
}

// Users fetches the roster with live presence.
func Users(ctx context.Context, serverURL string) ([]models.User, error) {
	endpoint := strings.TrimRight(serverURL, "/") + "/api/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build users request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users: %s", resp.Status)
	}

	var users []models.User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}
