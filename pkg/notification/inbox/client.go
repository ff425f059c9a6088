package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/learnhub/learnhub/pkg/notification"
)

// TokenSource returns the bearer token of the signed-in user.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// APIError is a non-2xx answer from the notification API.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notification api: %d %s: %s", e.Status, e.Code, e.Message)
}

// HTTPClient calls the notification REST API.
type HTTPClient struct {
	baseURL string
	token   TokenSource
	client  *http.Client
}

// NewHTTPClient creates a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, token TokenSource, client *http.Client) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	if token == nil {
		return nil, errors.New("token source is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{baseURL: baseURL, token: token, client: client}, nil
}

// List fetches one page of notifications.
func (c *HTTPClient) List(ctx context.Context, page, limit int) (*notification.Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	var out notification.Page
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications?"+query.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks one notification as read.
func (c *HTTPClient) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/notifications/"+url.PathEscape(id)+"/read", nil)
}

// MarkAllRead marks every notification as read.
func (c *HTTPClient) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/notifications/read-all", nil)
}

// SendTest asks the server to push a diagnostic notification.
func (c *HTTPClient) SendTest(ctx context.Context) (*notification.Notification, error) {
	var out notification.Notification
	if err := c.do(ctx, http.MethodPost, "/api/v1/notifications/test", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var envelope struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.RequestID = envelope.Error.RequestID
	}
	return apiErr
}
