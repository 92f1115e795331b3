// Package videosdk integrates with the hosted video provider: webhook
// verification and decoding, token issuing, and the server-side call API.
package videosdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultBaseURL  = "https://video.stream-io-api.com"
	DefaultCallType = "default"
)

// Client talks to the video provider's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient builds a provider client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, apiKey, apiSecret string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("video api key and secret are required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}, nil
}

// APIKey is the public key clients need alongside a user token.
func (c *Client) APIKey() string { return c.apiKey }

// ServerToken signs a short-lived token with server privileges.
func (c *Client) ServerToken() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"server": true,
		"iat":    now.Add(-5 * time.Second).Unix(),
		"exp":    now.Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.apiSecret))
}

// UserToken signs a token the browser uses to join calls as userID.
func (c *Client) UserToken(userID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := c.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Add(-60 * time.Second).Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.apiSecret))
}

// User is a provider-side user record.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Image string `json:"image,omitempty"`
}

// UpsertUsers creates or updates provider users.
func (c *Client) UpsertUsers(ctx context.Context, users ...User) error {
	if len(users) == 0 {
		return nil
	}
	byID := make(map[string]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return c.post(ctx, "/api/v2/users", map[string]any{"users": byID})
}

// CallSpec describes a call to create for a meeting.
type CallSpec struct {
	MeetingID   string
	MeetingName string
	CreatedByID string
}

// CreateCall creates the meeting's call with automatic transcription and
// recording. The meeting id is stored in call.custom so session webhooks can
// route back to it.
func (c *Client) CreateCall(ctx context.Context, spec CallSpec) error {
	body := map[string]any{
		"data": map[string]any{
			"created_by_id": spec.CreatedByID,
			"custom": map[string]string{
				"meetingId":   spec.MeetingID,
				"meetingName": spec.MeetingName,
			},
			"settings_override": map[string]any{
				"transcription": map[string]string{
					"language":            "en",
					"mode":                "auto-on",
					"closed_caption_mode": "auto-on",
				},
				"recording": map[string]string{
					"mode":    "auto-on",
					"quality": "1080p",
				},
			},
		},
	}
	return c.post(ctx, callPath(DefaultCallType, spec.MeetingID, ""), body)
}

// EndCall marks the call ended for every participant.
func (c *Client) EndCall(ctx context.Context, callType, callID string) error {
	if callType == "" {
		callType = DefaultCallType
	}
	return c.post(ctx, callPath(callType, callID, "/mark_ended"), map[string]any{})
}

func callPath(callType, callID, suffix string) string {
	return "/api/v2/video/call/" + url.PathEscape(callType) + "/" + url.PathEscape(callID) + suffix
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token, err := c.ServerToken()
	if err != nil {
		return fmt.Errorf("sign server token: %w", err)
	}
	endpoint := c.baseURL + path + "?api_key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	req.Header.Set("Stream-Auth-Type", "jwt")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("video request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Message
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("video api error: %s", msg)
	}
	return nil
}
