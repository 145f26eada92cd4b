package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Client talks to a Server over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the store at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the store address the client was created with.
func (c *Client) BaseURL() string { return c.baseURL }

// Upload sends data as the "image" field of a multipart POST /storeImage.
func (c *Client) Upload(ctx context.Context, filename, mimeType string, data []byte) (Stored, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return Stored{}, fmt.Errorf("create part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Stored{}, fmt.Errorf("write part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Stored{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/storeImage", &body)
	if err != nil {
		return Stored{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp response
	if err := c.do(req, &resp); err != nil {
		return Stored{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	if resp.UploadedFile == nil {
		return Stored{}, fmt.Errorf("upload %s: response missing uploadedFile", filename)
	}
	return *resp.UploadedFile, nil
}

// List fetches GET /getImages.
func (c *Client) List(ctx context.Context) ([]Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getImages", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	var resp response
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if resp.Images == nil {
		return []Image{}, nil
	}
	return *resp.Images, nil
}

// Health calls GET /health and returns the server timestamp.
func (c *Client) Health(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("create request: %w", err)
	}
	var resp response
	if err := c.do(req, &resp); err != nil {
		return time.Time{}, fmt.Errorf("health: %w", err)
	}
	return time.Parse(time.RFC3339, resp.Timestamp)
}

// Fetch downloads the bytes behind an image URL.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, res.StatusCode)
	}
	return io.ReadAll(res.Body)
}

func (c *Client) do(req *http.Request, out *response) error {
	req.Header.Set("Accept", "application/json")
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK || !out.Success {
		return fmt.Errorf("store error (status %d): %s", res.StatusCode, out.Message)
	}
	return nil
}
