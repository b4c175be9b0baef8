package fibaro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a Home Center controller over its REST API. It is a pure
// transport with no caching.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a client for the controller at baseURL, e.g.
// "http://192.168.1.10". A nil httpClient gets one with a 10s timeout.
func NewClient(baseURL, username, password string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close closes idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fibaro: decoding %s: %w", path, err)
	}
	return nil
}

// Info fetches the controller's identity. It doubles as a connectivity and
// credentials check.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.request(ctx, http.MethodGet, "/api/settings/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Rooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.request(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) Devices(ctx context.Context) ([]DeviceInfo, error) {
	var devices []DeviceInfo
	if err := c.request(ctx, http.MethodGet, "/api/devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

func (c *Client) Device(ctx context.Context, id int) (*DeviceInfo, error) {
	var device DeviceInfo
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("/api/devices/%d", id), nil, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// CallAction invokes a device action such as turnOn or setValue.
func (c *Client) CallAction(ctx context.Context, id int, name string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	body := struct {
		Args []any `json:"args"`
	}{Args: args}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/api/devices/%d/action/%s", id, name), body, nil)
}
