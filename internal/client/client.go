// Package client is the CLI's HTTP client for the Kaitiaki API.
//
// It implements custody.Registry so the key custody manager can fetch the
// server public key and register keys. Error codes returned by the server
// are mapped back to the sentinel errors in internal/errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
)

// Client talks to one Kaitiaki server. It never retries.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default clean HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a client for baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: cleanhttp.DefaultClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	return c.do(ctx, http.MethodGet, "/health", nil, &resp)
}

// ServerPublicKey returns the server's key-transport public key.
func (c *Client) ServerPublicKey(ctx context.Context) (string, error) {
	var resp api.PublicKeyResponse
	if err := c.do(ctx, http.MethodGet, "/keys/public", nil, &resp); err != nil {
		return "", err
	}
	if resp.PublicKey == "" {
		return "", fmt.Errorf("%w: server returned an empty public key", kerrors.ErrServerKeyMissing)
	}
	return resp.PublicKey, nil
}

// SyncKey registers the caller's public key and wrapped symmetric key.
func (c *Client) SyncKey(ctx context.Context, req api.KeySyncRequest) error {
	var resp api.SyncResponse
	return c.do(ctx, http.MethodPost, "/keys/sync", req, &resp)
}

// UserKey returns the caller's registration status.
func (c *Client) UserKey(ctx context.Context) (*api.UserKey, error) {
	var resp api.UserKeyResponse
	if err := c.do(ctx, http.MethodGet, "/keys", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Upload sends one sealed file.
func (c *Client) Upload(ctx context.Context, req api.UploadRequest) (*api.File, error) {
	var resp api.FileResponse
	if err := c.do(ctx, http.MethodPost, "/files/upload", req, &resp); err != nil {
		return nil, err
	}
	return &resp.File, nil
}

// Verify asks the server to check a signature over sealed content.
func (c *Client) Verify(ctx context.Context, req api.VerifyRequest) (bool, error) {
	var resp api.VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/keys/verify", req, &resp); err != nil {
		return false, err
	}
	return resp.IsValid, nil
}

// ListFiles returns the caller's files, newest first.
func (c *Client) ListFiles(ctx context.Context) ([]api.File, error) {
	var resp api.FilesResponse
	if err := c.do(ctx, http.MethodGet, "/files", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// GetFile returns one file's metadata.
func (c *Client) GetFile(ctx context.Context, id string) (*api.File, error) {
	var resp api.FileResponse
	if err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.File, nil
}

// Download returns the zip bundle for a file and the filename the server suggests.
func (c *Client) Download(ctx context.Context, id string) ([]byte, string, error) {
	httpResp, err := c.send(ctx, http.MethodGet, "/files/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return nil, "", err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, "", decodeError(httpResp)
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read download: %w", err)
	}

	filename := id + ".zip"
	if _, params, err := mime.ParseMediaType(httpResp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return data, filename, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	httpResp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return decodeError(httpResp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, kerrors.ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}

// decodeError turns a non-2xx response into an error wrapping the matching sentinel.
func decodeError(resp *http.Response) error {
	var body api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if sentinel := api.ErrorOf(body.Error); sentinel != nil {
		return fmt.Errorf("%w: server returned %s", sentinel, body.Error)
	}
	return fmt.Errorf("server returned %s: %s", resp.Status, body.Error)
}
