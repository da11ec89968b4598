// Package viewer implements the live-channel viewer session: the state
// poller, the playback presenter, the admin control bridge and the realtime
// feed a live page runs on.
package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// ErrNoActiveVideo is returned when the server reports the channel has
// nothing to play.
var ErrNoActiveVideo = errors.New("live channel has no active video")

// Identity is the whoami response.
type Identity struct {
	Authenticated bool `json:"autenticado"`
	User          *struct {
		DisplayName string `json:"display_name"`
		AvatarEmoji string `json:"avatar_emoji"`
		IsAdmin     bool   `json:"es_admin"`
	} `json:"usuario,omitempty"`
}

// ControlResult is the response of the admin control endpoints.
type ControlResult struct {
	OK        bool   `json:"ok"`
	YoutubeID string `json:"youtube_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// APIClient talks to the CarnavalPlay HTTP API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates an API client for the given base URL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *APIClient) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *APIClient) post(ctx context.Context, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	// Control endpoints report failures in the body; decode regardless of
	// status so the caller sees the server's error message.
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("API returned status code: %d", resp.StatusCode)
		}
	}
	return nil
}

// FetchState fetches the current live state. A 404 maps to ErrNoActiveVideo.
func (c *APIClient) FetchState(ctx context.Context) (*models.LiveState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/live/estado", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoActiveVideo
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}

	var state models.LiveState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode live state: %w", err)
	}
	return &state, nil
}

// Advance asks the server to pick and commit the next video.
func (c *APIClient) Advance(ctx context.Context) (*ControlResult, error) {
	var result ControlResult
	if err := c.post(ctx, "/live/siguiente", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Schedule asks the server to queue a specific video next.
func (c *APIClient) Schedule(ctx context.Context, youtubeID string) (*ControlResult, error) {
	var result ControlResult
	body := map[string]string{"youtube_id": youtubeID}
	if err := c.post(ctx, "/live/programar", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Whoami fetches the current identity.
func (c *APIClient) Whoami(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.get(ctx, "/api/auth/yo", &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// History fetches the recent transcript of a room.
func (c *APIClient) History(ctx context.Context, room string, limit int) ([]models.ChatMessage, error) {
	endpoint := fmt.Sprintf("/api/chat/historial?sala=%s&limit=%d", url.QueryEscape(room), limit)
	var messages []models.ChatMessage
	if err := c.get(ctx, endpoint, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
