package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/hcbridge/internal/infrastructure/config"
)

const (
	// defaultTimeout applies when the config leaves hub.timeout unset.
	defaultTimeout = 10 * time.Second

	// maxResponseSize caps how much of a hub response is read (8 MB).
	maxResponseSize = 8 << 20
)

// Client talks to the Fibaro Home Center REST API.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	http     *http.Client
}

// NewClient builds a client from the hub configuration.
//
// Returns:
//   - *Client: Ready-to-use client (no connection is opened yet)
//   - error: ErrInvalidConfig if the URL is missing or malformed
func NewClient(cfg config.HubConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: malformed url %q", ErrInvalidConfig, cfg.URL)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Devices lists every visible, enabled device on the hub.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var all []Device
	if err := c.get(ctx, "/api/devices", &all); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(all))
	for _, d := range all {
		if !d.Visible || !d.Enabled {
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// Scenes lists the visible scenes on the hub.
func (c *Client) Scenes(ctx context.Context) ([]Scene, error) {
	var all []Scene
	if err := c.get(ctx, "/api/scenes", &all); err != nil {
		return nil, err
	}

	scenes := make([]Scene, 0, len(all))
	for _, s := range all {
		if s.Visible {
			scenes = append(scenes, s)
		}
	}
	return scenes, nil
}

// GlobalVariable fetches one global variable by name.
func (c *Client) GlobalVariable(ctx context.Context, name string) (Variable, error) {
	var v Variable
	if err := c.get(ctx, "/api/globalVariables/"+url.PathEscape(name), &v); err != nil {
		return Variable{}, err
	}
	if v.Name == "" {
		v.Name = name
	}
	return v, nil
}

// CallAction invokes a device action such as turnOn or setValue.
func (c *Client) CallAction(ctx context.Context, deviceID, action string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	body := map[string]any{"args": args}
	path := fmt.Sprintf("/api/devices/%s/action/%s", url.PathEscape(deviceID), url.PathEscape(action))
	return c.send(ctx, http.MethodPost, path, body)
}

// StartScene executes a scene.
func (c *Client) StartScene(ctx context.Context, sceneID string) error {
	return c.send(ctx, http.MethodPost, "/api/scenes/"+url.PathEscape(sceneID)+"/execute", map[string]any{})
}

// SetGlobalVariable writes a global variable value.
func (c *Client) SetGlobalVariable(ctx context.Context, name, value string) error {
	body := map[string]any{"name": name, "value": value}
	return c.send(ctx, http.MethodPut, "/api/globalVariables/"+url.PathEscape(name), body)
}

// get performs a GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidResponse, path, err)
	}
	return nil
}

// send performs a request with a JSON body and discards the response.
func (c *Client) send(ctx context.Context, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	resp, err := c.do(ctx, method, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize)) //nolint:errcheck // drain for connection reuse
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	// path segments are already escaped by the callers.
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
